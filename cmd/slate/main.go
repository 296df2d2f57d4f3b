// Slate - Headless CMS with a realtime edge
//
// This is the main entry point for the Slate server. It wires the
// infrastructure (SQLite, MQTT event bus, telemetry), the auth
// resolver, the websocket gateway, and the REST API into one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/slate-cms/migrations"

	"github.com/nerrad567/slate-cms/internal/activity"
	"github.com/nerrad567/slate-cms/internal/api"
	"github.com/nerrad567/slate-cms/internal/auth"
	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
	"github.com/nerrad567/slate-cms/internal/infrastructure/database"
	"github.com/nerrad567/slate-cms/internal/infrastructure/logging"
	"github.com/nerrad567/slate-cms/internal/infrastructure/mqtt"
	"github.com/nerrad567/slate-cms/internal/infrastructure/telemetry"
	"github.com/nerrad567/slate-cms/internal/realtime"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Slate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Auth repositories and resolver
	users := auth.NewUserRepository(db.DB)
	roles := auth.NewRoleRepository(db.DB)
	sessions := auth.NewSessionRepository(db.DB)
	activityLog := activity.NewRepository(db.DB)

	// First boot: create the administrator account if no users exist
	if _, seedErr := auth.SeedAdmin(ctx, users, roles, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	resolver := auth.NewResolver(auth.ResolverOptions{
		Users:      users,
		Roles:      roles,
		Sessions:   sessions,
		Secret:     cfg.Security.JWT.Secret,
		AccessTTL:  minutes(cfg.Security.JWT.AccessTokenTTL),
		RefreshTTL: minutes(cfg.Security.JWT.RefreshTokenTTL),
	})

	// Connect to the MQTT event bus (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log.Logger)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, content events will not be relayed")
	}

	// Connect to telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)

		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
	} else {
		log.Info("telemetry disabled")
	}

	// Websocket gateway (optional)
	var gateway *realtime.Controller
	if cfg.WebSockets.Enabled {
		opts := realtime.ControllerOptions{
			Config:  cfg.WebSockets,
			Auth:    resolver,
			Handler: realtime.NewCollectionHandler(log),
			Limiter: realtime.NewLimiter(cfg.Security.RateLimit),
			Logger:  log,
		}
		if telemetryClient != nil {
			opts.Metrics = telemetryClient
		}
		gateway = realtime.NewController(opts)
		defer func() {
			log.Info("terminating websocket gateway")
			gateway.Terminate()
		}()
		log.Info("websocket gateway ready",
			"path", cfg.WebSockets.Path,
			"auth_mode", cfg.WebSockets.Auth,
		)
	} else {
		log.Info("websocket gateway disabled")
	}

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Gateway:  cfg.WebSockets,
		Logger:   log,
		Resolver: resolver,
		Users:    users,
		Roles:    roles,
		Realtime: gateway,
		MQTT:     mqttClient,
		Activity: activityLog,
		DB:       db.DB,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Websocket gateway
	// 3. Telemetry (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Slate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SLATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SLATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// minutes converts a config value in minutes to a Duration, leaving
// zero as zero so resolver defaults apply.
func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and telemetry clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}
