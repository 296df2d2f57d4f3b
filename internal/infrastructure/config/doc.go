// Package config handles loading and validating Slate configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (SLATE_SECTION_KEY)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - JWT secrets must be changed from defaults before production use
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.WebSockets.Path)
//
// The realtime gateway reads its endpoint path, auth mode, handshake timeout
// and connection limit from the websockets section; each can be overridden
// with SLATE_WEBSOCKETS_PATH, SLATE_WEBSOCKETS_AUTH,
// SLATE_WEBSOCKETS_AUTH_TIMEOUT and SLATE_WEBSOCKETS_CONN_LIMIT.
package config
