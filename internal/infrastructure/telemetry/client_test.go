package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
	"github.com/nerrad567/slate-cms/internal/infrastructure/telemetry"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "slate-dev-token",
		Org:           "slate",
		Bucket:        "gateway",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *telemetry.Client {
	t.Helper()

	client, err := telemetry.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := telemetry.Connect(cfg)
	if !errors.Is(err, telemetry.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // nothing listens here

	_, err := telemetry.Connect(cfg)
	if !errors.Is(err, telemetry.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheckAfterClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, telemetry.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteHelpersAfterClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	client.Close()

	// Writes on a closed client are silently dropped, never a panic.
	client.ConnectionOpened("handshake")
	client.ConnectionClosed("handshake", "normal")
	client.ConnectionRejected("strict", "limit")
	client.FrameReceived("auth")
	client.AuthOutcome("strict", false)
	client.RateLimited()
	client.Flush()
}

func TestGatewayMetricsRoundtrip(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	client.ConnectionOpened("public")
	client.AuthOutcome("public", true)
	client.FrameReceived("subscribe")
	client.RateLimited()
	client.WritePoint("gateway_custom",
		map[string]string{"instance": "test"},
		map[string]interface{}{"value": 1.0})

	// Flush must not error or block indefinitely.
	client.Flush()
}
