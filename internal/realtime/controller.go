package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/slate-cms/internal/auth"
	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
	"github.com/nerrad567/slate-cms/internal/infrastructure/logging"
)

// sweepInterval is the cadence of the expiry sweep. Expiry timers are
// only armed for connections whose token expires within one sweep
// period; everything further out is caught by a later sweep. This
// keeps the timer population proportional to imminent expiries rather
// than to total connections.
const sweepInterval = 15 * time.Minute

// Authenticator resolves gateway credentials into accountability.
// *auth.Resolver satisfies it.
type Authenticator interface {
	ResolveToken(ctx context.Context, raw string, meta auth.SessionMeta) (*auth.Accountability, int64, error)
	Login(ctx context.Context, email, password string, meta auth.SessionMeta) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta auth.SessionMeta) (*auth.AuthResult, error)
}

// Metrics receives gateway telemetry. *telemetry.Client satisfies it;
// a no-op implementation is used when telemetry is disabled.
type Metrics interface {
	ConnectionOpened(authMode string)
	ConnectionClosed(authMode, reason string)
	ConnectionRejected(authMode, reason string)
	FrameReceived(frameType string)
	AuthOutcome(authMode string, success bool)
	RateLimited()
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened(string)           {}
func (noopMetrics) ConnectionClosed(string, string)   {}
func (noopMetrics) ConnectionRejected(string, string) {}
func (noopMetrics) FrameReceived(string)              {}
func (noopMetrics) AuthOutcome(string, bool)          {}
func (noopMetrics) RateLimited()                      {}

// Controller owns the websocket gateway: it negotiates upgrades
// according to the configured auth mode, tracks every live connection
// and its authentication state, enforces the frame rate limit, and
// runs the periodic expiry sweep.
//
// Thread Safety:
//   - mu guards the client set and each client's auth fields.
//   - Each connection has exactly one reader goroutine, so frames from
//     one client are processed strictly in arrival order.
type Controller struct {
	cfg     config.GatewayConfig
	auth    Authenticator
	handler Handler
	limiter *Limiter
	logger  *logging.Logger
	metrics Metrics

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// ControllerOptions configures a Controller. Handler, Limiter and
// Metrics are optional.
type ControllerOptions struct {
	Config  config.GatewayConfig
	Auth    Authenticator
	Handler Handler
	Limiter *Limiter
	Logger  *logging.Logger
	Metrics Metrics
}

// NewController creates a gateway controller and starts its expiry
// sweep. Call Terminate to release it.
func NewController(opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Handler == nil {
		opts.Handler = NopHandler{}
	}

	c := &Controller{
		cfg:     opts.Config,
		auth:    opts.Auth,
		handler: opts.Handler,
		limiter: opts.Limiter,
		logger:  opts.Logger.With("component", "gateway"),
		metrics: opts.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens at session level, not transport
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*Client]struct{}),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	go c.sweepLoop()

	return c
}

// ClientCount returns the number of live connections.
func (c *Controller) ClientCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// ServeHTTP negotiates a websocket upgrade. Requests for other paths
// are ignored without writing a response, so the gateway can share a
// mux with the REST surface and another handler may claim them.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != c.cfg.Path {
		return
	}

	if c.cfg.ConnLimit > 0 && c.ClientCount() >= c.cfg.ConnLimit {
		c.metrics.ConnectionRejected(string(c.cfg.Auth), "conn_limit")
		http.Error(w, "connection limit reached", http.StatusForbidden)
		return
	}

	meta := sessionMeta(r)

	// Strict mode authenticates before the upgrade: a bad token never
	// becomes a websocket connection.
	var accountability *auth.Accountability
	var expiresAt int64
	if c.cfg.Auth == config.AuthModeStrict {
		token := r.URL.Query().Get("access_token")
		acc, exp, err := c.auth.ResolveToken(r.Context(), token, meta)
		if err != nil {
			c.metrics.ConnectionRejected(string(c.cfg.Auth), "auth")
			c.metrics.AuthOutcome(string(c.cfg.Auth), false)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		accountability = acc
		expiresAt = exp
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		id:            uuid.New().String(),
		controller:    c,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		meta:          meta,
		subscriptions: make(map[string]struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	// Re-check the limit under the lock: concurrent upgrades can race
	// past the pre-upgrade count.
	if c.cfg.ConnLimit > 0 && len(c.clients) >= c.cfg.ConnLimit {
		c.mu.Unlock()
		c.metrics.ConnectionRejected(string(c.cfg.Auth), "conn_limit")
		conn.Close()
		return
	}
	switch c.cfg.Auth {
	case config.AuthModePublic:
		client.state = stateUnauthenticated
		client.accountability = auth.Anonymous(meta)
	case config.AuthModeStrict:
		client.state = stateAuthenticated
		client.accountability = accountability
		client.expiresAt = expiresAt
		c.scheduleExpiryLocked(client)
	default: // handshake
		client.state = stateUnauthenticated
		c.armTimerLocked(client, c.cfg.AuthTimeoutDuration(), func() {
			c.handshakeTimeout(client)
		})
	}
	c.clients[client] = struct{}{}
	c.mu.Unlock()

	c.metrics.ConnectionOpened(string(c.cfg.Auth))
	if c.cfg.Auth == config.AuthModeStrict {
		c.metrics.AuthOutcome(string(c.cfg.Auth), true)
	}
	c.logger.Debug("websocket connected", "client", client.id, "remote", meta.IP, "mode", c.cfg.Auth)

	go client.writePump()
	go client.readPump()
}

// sessionMeta captures transport metadata for accountability records.
func sessionMeta(r *http.Request) auth.SessionMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return auth.SessionMeta{
		IP:        ip,
		UserAgent: r.Header.Get("User-Agent"),
		Origin:    r.Header.Get("Origin"),
	}
}

// handleFrame runs the per-frame pipeline: rate limit, decode,
// dispatch. Called from the client's read pump, one frame at a time.
func (c *Controller) handleFrame(client *Client, data []byte) {
	// The rate limit charges every frame before any decode work. An
	// over-limit frame is dropped, not fatal: the client is told when
	// to come back and the connection stays open.
	if retryAfter, ok := c.limiter.Allow(client.id); !ok {
		c.metrics.RateLimited()
		msg := fmt.Sprintf("too many requests, retry in %dms", retryAfter.Milliseconds())
		client.SendError(TypeError, CodeRequestsExceeded, msg, nil)
		return
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		client.SendError(TypeError, CodeInvalidPayload, err.Error(), nil)
		// Inside the handshake window the only acceptable frame is a
		// decodable auth message; an undecodable one fails the
		// handshake outright.
		if c.handshakePending(client) {
			c.closeClient(client, "handshake_failed")
		}
		return
	}

	c.metrics.FrameReceived(msg.Type)

	if msg.Type == TypeAuth {
		c.handleAuth(client, msg)
		return
	}

	// Handshake mode admits exactly one kind of first frame. Anything
	// else before authentication is a failed handshake.
	if c.handshakePending(client) {
		client.SendError(TypeError, CodeAuthFailed, "authentication required", msg.UID)
		c.closeClient(client, "auth_required")
		return
	}

	c.handler.OnMessage(client, msg)
}

// handshakePending reports whether the connection is still inside the
// handshake window, where only a valid auth frame is acceptable.
func (c *Controller) handshakePending(client *Client) bool {
	if c.cfg.Auth != config.AuthModeHandshake {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return client.state == stateUnauthenticated
}

// handleAuth processes an auth frame: resolve the presented
// credentials, then either promote the connection or tear it down
// (soft-downgrading to anonymous in public mode).
func (c *Controller) handleAuth(client *Client, msg Message) {
	payload, err := DecodeAuthPayload(msg.Raw)
	if err != nil {
		client.SendError(TypeAuth, CodeInvalidPayload, err.Error(), msg.UID)
		if c.handshakePending(client) {
			c.closeClient(client, "handshake_failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		accountability *auth.Accountability
		expiresAt      int64
		refreshToken   string
	)

	switch {
	case payload.AccessToken != "":
		accountability, expiresAt, err = c.auth.ResolveToken(ctx, payload.AccessToken, client.meta)
	case payload.Email != "" && payload.Password != "":
		var result *auth.AuthResult
		result, err = c.auth.Login(ctx, payload.Email, payload.Password, client.meta)
		if err == nil {
			refreshToken = result.RefreshToken
			accountability, expiresAt, err = c.auth.ResolveToken(ctx, result.AccessToken, client.meta)
		}
	case payload.RefreshToken != "":
		var result *auth.AuthResult
		result, err = c.auth.Refresh(ctx, payload.RefreshToken, client.meta)
		if err == nil {
			refreshToken = result.RefreshToken
			accountability, expiresAt, err = c.auth.ResolveToken(ctx, result.AccessToken, client.meta)
		}
	default:
		err = auth.ErrInvalidCredentials
	}

	if err != nil {
		c.authFailure(client, msg.UID)
		return
	}

	c.mu.Lock()
	if client.state == stateClosed {
		c.mu.Unlock()
		return
	}
	client.state = stateAuthenticated
	client.accountability = accountability
	client.expiresAt = expiresAt
	c.scheduleExpiryLocked(client)
	c.mu.Unlock()

	c.metrics.AuthOutcome(string(c.cfg.Auth), true)
	client.Send(NewAuthSuccessFrame(refreshToken, msg.UID))
	c.handler.OnAuthSuccess(client)

	user := ""
	if accountability != nil {
		user = accountability.User
	}
	c.logger.Debug("websocket authenticated", "client", client.id, "user", user)
}

// authFailure handles a rejected auth frame. Public mode downgrades to
// anonymous and keeps the connection; every other mode closes it.
func (c *Controller) authFailure(client *Client, uid json.RawMessage) {
	c.metrics.AuthOutcome(string(c.cfg.Auth), false)
	c.handler.OnAuthFailure(client)

	c.mu.Lock()
	client.accountability = nil
	client.expiresAt = 0
	c.clearTimerLocked(client)
	if c.cfg.Auth == config.AuthModePublic {
		client.state = stateUnauthenticated
		client.accountability = auth.Anonymous(client.meta)
		c.mu.Unlock()
		client.SendError(TypeAuth, CodeAuthFailed, "authentication failed", uid)
		return
	}
	c.mu.Unlock()

	client.SendError(TypeAuth, CodeAuthFailed, "authentication failed", uid)
	c.closeClient(client, "auth_failed")
}

// scheduleExpiryLocked maintains the one-timer-per-connection
// invariant for token expiry. Any previous timer is cleared; a new one
// is armed only when the token expires within the next sweep period.
// Longer-lived tokens are picked up by a later sweep. Caller holds mu.
func (c *Controller) scheduleExpiryLocked(client *Client) {
	c.clearTimerLocked(client)

	if client.expiresAt == 0 {
		return // static tokens never expire
	}

	remaining := time.Until(time.Unix(client.expiresAt, 0))
	if remaining > sweepInterval {
		return
	}
	if remaining < 0 {
		remaining = 0
	}

	c.armTimerLocked(client, remaining, func() {
		c.tokenExpired(client)
	})
}

// armTimerLocked installs the connection's single timer slot, clearing
// any previous occupant. Caller holds mu.
func (c *Controller) armTimerLocked(client *Client, d time.Duration, fn func()) {
	c.clearTimerLocked(client)
	client.timer = time.AfterFunc(d, fn)
}

// clearTimerLocked stops and removes the connection's timer, if any.
// Caller holds mu.
func (c *Controller) clearTimerLocked(client *Client) {
	if client.timer != nil {
		client.timer.Stop()
		client.timer = nil
	}
}

// handshakeTimeout fires when a handshake-mode connection never sent
// an auth frame within the allowed window.
func (c *Controller) handshakeTimeout(client *Client) {
	c.mu.Lock()
	if client.state != stateUnauthenticated {
		c.mu.Unlock()
		return
	}
	client.timer = nil
	c.mu.Unlock()

	client.SendError(TypeError, CodeAuthTimeout, "authentication timeout", nil)
	c.closeClient(client, "auth_timeout")
}

// tokenExpired fires when an authenticated connection's token reaches
// its expiry. Accountability is withdrawn immediately; the client gets
// a bounded window to present fresh credentials in every mode.
func (c *Controller) tokenExpired(client *Client) {
	c.mu.Lock()
	if client.state != stateAuthenticated {
		c.mu.Unlock()
		return
	}
	client.state = stateExpired
	client.accountability = nil
	client.expiresAt = 0
	c.armTimerLocked(client, c.cfg.AuthTimeoutDuration(), func() {
		c.reauthTimeout(client)
	})
	c.mu.Unlock()

	client.SendError(TypeError, CodeTokenExpired, "token expired", nil)
}

// reauthTimeout fires when an expired connection never re-authenticated
// within the allowed window. Public mode downgrades to anonymous and
// keeps the connection; every other mode closes it.
func (c *Controller) reauthTimeout(client *Client) {
	c.mu.Lock()
	if client.state != stateExpired {
		c.mu.Unlock()
		return
	}
	client.timer = nil
	if c.cfg.Auth == config.AuthModePublic {
		client.state = stateUnauthenticated
		client.accountability = auth.Anonymous(client.meta)
		c.mu.Unlock()
		client.SendError(TypeError, CodeAuthTimeout, "authentication timeout", nil)
		return
	}
	c.mu.Unlock()

	client.SendError(TypeError, CodeAuthTimeout, "authentication timeout", nil)
	c.closeClient(client, "auth_timeout")
}

// sweepLoop periodically re-evaluates every connection's expiry so
// that tokens outliving one sweep period still get a timer once their
// expiry comes into range.
func (c *Controller) sweepLoop() {
	defer close(c.sweepDone)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.sweepStop:
			return
		}
	}
}

// sweep arms expiry timers for connections whose token now expires
// within the next sweep period.
func (c *Controller) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for client := range c.clients {
		if client.state != stateAuthenticated || client.expiresAt == 0 || client.timer != nil {
			continue
		}
		remaining := time.Until(time.Unix(client.expiresAt, 0))
		if remaining > sweepInterval {
			continue
		}
		if remaining < 0 {
			remaining = 0
		}
		cl := client
		c.armTimerLocked(cl, remaining, func() {
			c.tokenExpired(cl)
		})
	}
}

// closeClient tears a single connection down: timer cleared, limiter
// bucket released, send channel closed so the write pump sends a close
// frame and exits, which in turn ends the read pump.
func (c *Controller) closeClient(client *Client, reason string) {
	c.mu.Lock()
	if _, ok := c.clients[client]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.clients, client)
	client.state = stateClosed
	c.clearTimerLocked(client)
	c.mu.Unlock()

	c.limiter.Forget(client.id)
	close(client.send)
	c.handler.OnClose(client)
	c.metrics.ConnectionClosed(string(c.cfg.Auth), reason)
	c.logger.Debug("websocket disconnected", "client", client.id, "reason", reason)
}

// unregister is the read pump's exit hook, covering closes initiated
// by the peer rather than the controller.
func (c *Controller) unregister(client *Client) {
	c.closeClient(client, "peer_closed")
}

// Broadcast delivers an event frame to every connection subscribed to
// the named channel.
func (c *Controller) Broadcast(channel string, data []byte) {
	c.mu.RLock()
	targets := make([]*Client, 0, len(c.clients))
	for client := range c.clients {
		if client.IsSubscribed(channel) {
			targets = append(targets, client)
		}
	}
	c.mu.RUnlock()

	for _, client := range targets {
		client.Send(data)
	}
}

// Terminate shuts the gateway down: the sweep stops, every
// connection's timer is cleared, and every transport is closed without
// a farewell frame.
func (c *Controller) Terminate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	clients := make([]*Client, 0, len(c.clients))
	for client := range c.clients {
		c.clearTimerLocked(client)
		client.state = stateClosed
		clients = append(clients, client)
		delete(c.clients, client)
	}
	c.mu.Unlock()

	close(c.sweepStop)
	<-c.sweepDone

	for _, client := range clients {
		c.limiter.Forget(client.id)
		// Transport first so no farewell frame goes out, then the
		// channel so the write pump exits.
		client.conn.Close()
		close(client.send)
	}

	c.logger.Info("websocket gateway terminated", "connections", len(clients))
}
