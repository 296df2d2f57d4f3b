package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/slate-cms/internal/auth"
)

// Connection authentication states. Transitions are driven solely by
// the controller: auth frames, expiry timers, and transport events.
type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateExpired
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateExpired:
		return "expired"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// sendBufferSize is the per-client outbound message buffer size.
const sendBufferSize = 256

// Client is one live websocket connection and its authentication
// state. The auth fields (state, accountability, expiresAt, timer) are
// guarded by the controller mutex — only transition methods on the
// controller touch them. Subscriptions have their own lock because the
// broadcast path reads them without involving the controller.
type Client struct {
	id         string
	controller *Controller
	conn       *websocket.Conn
	send       chan []byte
	meta       auth.SessionMeta

	// Guarded by controller.mu.
	state          connState
	accountability *auth.Accountability
	expiresAt      int64 // epoch seconds; 0 = never expires
	timer          *time.Timer

	// Subscription registry for the handler layer.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex
}

// ID returns the connection's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Meta returns the transport metadata captured at upgrade time.
func (c *Client) Meta() auth.SessionMeta {
	return c.meta
}

// Accountability returns the connection's current accountability, or
// nil while unauthenticated in handshake mode.
func (c *Client) Accountability() *auth.Accountability {
	c.controller.mu.RLock()
	defer c.controller.mu.RUnlock()
	return c.accountability
}

// Authenticated reports whether the connection currently holds
// non-anonymous accountability.
func (c *Client) Authenticated() bool {
	c.controller.mu.RLock()
	defer c.controller.mu.RUnlock()
	return c.state == stateAuthenticated
}

// Subscribe registers the client's interest in a channel.
func (c *Client) Subscribe(channel string) {
	c.subMu.Lock()
	c.subscriptions[channel] = struct{}{}
	c.subMu.Unlock()
}

// Unsubscribe removes the client's interest in a channel.
func (c *Client) Unsubscribe(channel string) {
	c.subMu.Lock()
	delete(c.subscriptions, channel)
	c.subMu.Unlock()
}

// IsSubscribed checks if the client is subscribed to a channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// Send queues data for delivery to the client. It silently handles
// closed channels (connection torn down during a broadcast) and full
// buffers (slow client) — a late frame for a dead transport must no-op.
func (c *Client) Send(data []byte) {
	if data == nil {
		return
	}

	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// SendError delivers a structured error frame to this client.
func (c *Client) SendError(frameType, code, message string, uid json.RawMessage) {
	c.Send(NewErrorFrame(frameType, code, message, uid))
}

// readPump reads frames from the websocket connection and feeds them
// through the controller pipeline: rate limit, decode, dispatch.
// Frames are handled one at a time in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.controller.unregister(c)
		c.conn.Close()
	}()

	cfg := c.controller.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.controller.logger.Warn("websocket read error", "client", c.id, "error", err)
			} else {
				c.controller.logger.Debug("websocket closed", "client", c.id, "error", err)
			}
			return
		}
		// Any client frame resets the read deadline (keeps the connection
		// alive even if the peer never answers protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.controller.handleFrame(c, data)
	}
}

// writePump writes queued frames to the websocket connection and sends
// protocol-level pings on the configured interval.
func (c *Client) writePump() {
	cfg := c.controller.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Controller closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
