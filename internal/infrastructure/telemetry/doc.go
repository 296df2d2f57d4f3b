// Package telemetry records realtime gateway metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// This package handles time-series data for gateway observability:
//   - Connection churn (opened, closed, rejected)
//   - Frame throughput and rate-limit hits
//   - Authentication outcomes per auth mode
//
// # Usage
//
//	client, err := telemetry.Connect(cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.ConnectionOpened("handshake")
//	client.AuthOutcome("handshake", true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes, so a slow
// or absent InfluxDB never stalls the gateway's hot path.
//
// # Error Handling
//
// Write errors arrive asynchronously via the SetOnError callback.
// Connection and health check errors are returned directly.
package telemetry
