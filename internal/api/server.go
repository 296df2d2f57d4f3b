// Package api provides the HTTP surface for Slate: the REST auth
// endpoints, the realtime WebSocket gateway mount, and system
// observability routes.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/slate-cms/internal/activity"
	"github.com/nerrad567/slate-cms/internal/auth"
	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
	"github.com/nerrad567/slate-cms/internal/infrastructure/logging"
	"github.com/nerrad567/slate-cms/internal/infrastructure/mqtt"
	"github.com/nerrad567/slate-cms/internal/realtime"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Gateway  config.GatewayConfig
	Logger   *logging.Logger
	Resolver *auth.Resolver
	Users    auth.UserRepository
	Roles    auth.RoleRepository
	Realtime *realtime.Controller // optional: gateway disabled when nil
	MQTT     *mqtt.Client         // optional: content events not relayed when nil
	Activity activity.Repository  // optional: actions not recorded when nil
	DB       *sql.DB              // optional: for metrics only
	Version  string
}

// Server is the HTTP API server for Slate.
//
// It manages the HTTP listener, routes, middleware, and the MQTT
// subscription that relays content change events into the websocket
// gateway. The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	gwCfg    config.GatewayConfig
	logger   *logging.Logger
	resolver *auth.Resolver
	users    auth.UserRepository
	roles    auth.RoleRepository
	realtime *realtime.Controller
	mqtt     *mqtt.Client
	activity activity.Repository
	db       *sql.DB
	version  string

	server    *http.Server
	startTime time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("auth resolver is required")
	}
	// MQTT and the gateway are both optional: a REST-only deployment
	// still serves auth and health.

	return &Server{
		cfg:      deps.Config,
		gwCfg:    deps.Gateway,
		logger:   deps.Logger.With("component", "api"),
		resolver: deps.Resolver,
		users:    deps.Users,
		roles:    deps.Roles,
		realtime: deps.Realtime,
		mqtt:     deps.MQTT,
		activity: deps.Activity,
		db:       deps.DB,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, subscribes to content change topics for
// websocket relay, and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.startTime = time.Now()

	if err := s.subscribeContentEvents(); err != nil {
		s.logger.Warn("failed to subscribe to content events for websocket relay", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// subscribeContentEvents relays MQTT content change events to gateway
// subscribers. The MQTT topic names the action and collection; the
// payload is forwarded untouched.
func (s *Server) subscribeContentEvents() error {
	if s.mqtt == nil || s.realtime == nil {
		return nil
	}

	topics := mqtt.Topics{}
	return s.mqtt.Subscribe(topics.AllContentEvents(), func(topic string, payload []byte) error {
		action, collection, err := mqtt.ParseContentTopic(topic)
		if err != nil {
			return fmt.Errorf("unparseable content topic %q: %w", topic, err)
		}
		s.realtime.Broadcast(collection, realtime.NewEventFrame(action, collection, payload))
		return nil
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections. The gateway controller has
// its own Terminate and is not owned by the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
