package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Slate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database   DatabaseConfig  `yaml:"database"`
	API        APIConfig       `yaml:"api"`
	WebSockets GatewayConfig   `yaml:"websockets"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Logging    LoggingConfig   `yaml:"logging"`
	Security   SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// AuthMode is the gateway authentication policy.
type AuthMode string

const (
	// AuthModePublic accepts every upgrade with anonymous accountability.
	// Clients may still escalate with auth frames later.
	AuthModePublic AuthMode = "public"

	// AuthModeHandshake upgrades unconditionally, then requires the first
	// inbound frame to be an auth frame within the configured timeout.
	AuthModeHandshake AuthMode = "handshake"

	// AuthModeStrict requires a valid access_token query parameter before
	// the upgrade completes.
	AuthModeStrict AuthMode = "strict"
)

// IsValidAuthMode returns true if the mode is a recognised gateway auth mode.
func IsValidAuthMode(m AuthMode) bool {
	switch m {
	case AuthModePublic, AuthModeHandshake, AuthModeStrict:
		return true
	}
	return false
}

// GatewayConfig contains realtime WebSocket gateway settings.
//
// Environment overrides: SLATE_WEBSOCKETS_PATH, SLATE_WEBSOCKETS_AUTH,
// SLATE_WEBSOCKETS_AUTH_TIMEOUT (seconds), SLATE_WEBSOCKETS_CONN_LIMIT.
type GatewayConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP upgrade endpoint. Requests on other paths are
	// ignored by the gateway so another handler may claim them.
	Path string `yaml:"path"`

	// Auth is the authentication mode: public, handshake, or strict.
	Auth AuthMode `yaml:"auth"`

	// AuthTimeout bounds the handshake wait and the re-auth window after
	// token expiry (seconds).
	AuthTimeout int `yaml:"auth_timeout"`

	// ConnLimit caps concurrent connections. 0 means unbounded.
	ConnLimit int `yaml:"conn_limit"`

	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// AuthTimeoutDuration returns the auth timeout as a Duration.
func (g GatewayConfig) AuthTimeoutDuration() time.Duration {
	return time.Duration(g.AuthTimeout) * time.Second
}

// MQTTConfig contains MQTT broker connection settings for the content-event bus.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// TelemetryConfig contains InfluxDB connection settings for gateway metrics.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`  // minutes
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"` // minutes
}

// RateLimitConfig contains the process-wide frame rate limiter settings.
// Applied per connection: Points frames per Duration seconds.
type RateLimitConfig struct {
	Enabled  bool `yaml:"enabled"`
	Points   int  `yaml:"points"`
	Duration int  `yaml:"duration"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SLATE_SECTION_KEY
// For example: SLATE_DATABASE_PATH, SLATE_WEBSOCKETS_AUTH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/slate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8055,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSockets: GatewayConfig{
			Enabled:        true,
			Path:           "/websocket",
			Auth:           AuthModeHandshake,
			AuthTimeout:    10,
			ConnLimit:      0,
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "slate-gateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 10080,
			},
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Points:   50,
				Duration: 1,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SLATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SLATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("SLATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("SLATE_API_PORT"); ok {
		cfg.API.Port = v
	}

	// WebSocket gateway
	if v := os.Getenv("SLATE_WEBSOCKETS_PATH"); v != "" {
		cfg.WebSockets.Path = v
	}
	if v := os.Getenv("SLATE_WEBSOCKETS_AUTH"); v != "" {
		cfg.WebSockets.Auth = AuthMode(strings.ToLower(v))
	}
	if v, ok := envInt("SLATE_WEBSOCKETS_AUTH_TIMEOUT"); ok {
		cfg.WebSockets.AuthTimeout = v
	}
	if v, ok := envInt("SLATE_WEBSOCKETS_CONN_LIMIT"); ok {
		cfg.WebSockets.ConnLimit = v
	}

	// Rate limiter
	if v := os.Getenv("SLATE_RATE_LIMIT_ENABLED"); v != "" {
		cfg.Security.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v, ok := envInt("SLATE_RATE_LIMIT_POINTS"); ok {
		cfg.Security.RateLimit.Points = v
	}
	if v, ok := envInt("SLATE_RATE_LIMIT_DURATION"); ok {
		cfg.Security.RateLimit.Duration = v
	}

	// MQTT
	if v := os.Getenv("SLATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SLATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SLATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Telemetry
	if v := os.Getenv("SLATE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("SLATE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// envInt reads an integer environment variable. The second return value is
// false when the variable is unset or not a valid integer.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Gateway validation
	if c.WebSockets.Enabled {
		if !strings.HasPrefix(c.WebSockets.Path, "/") {
			errs = append(errs, "websockets.path must start with /")
		}
		if !IsValidAuthMode(c.WebSockets.Auth) {
			errs = append(errs, "websockets.auth must be public, handshake, or strict")
		}
		if c.WebSockets.AuthTimeout < 1 {
			errs = append(errs, "websockets.auth_timeout must be at least 1 second")
		}
		if c.WebSockets.ConnLimit < 0 {
			errs = append(errs, "websockets.conn_limit must not be negative")
		}
	}

	// Rate limiter validation
	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Points < 1 {
			errs = append(errs, "security.rate_limit.points must be at least 1")
		}
		if c.Security.RateLimit.Duration < 1 {
			errs = append(errs, "security.rate_limit.duration must be at least 1 second")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Security validation - JWT secret is REQUIRED.
	// The gateway trusts any token signed with this secret; an empty or
	// weak secret would let anyone forge accountability.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SLATE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
