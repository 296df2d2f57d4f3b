package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ConnectionOpened records a websocket connection being accepted.
//
// The authMode tag carries the gateway's configured mode (public,
// handshake, strict) so churn can be broken down per deployment style.
func (c *Client) ConnectionOpened(authMode string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_connections",
		map[string]string{"auth_mode": authMode, "event": "opened"},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// ConnectionClosed records a websocket connection ending.
//
// The reason tag distinguishes normal closes from forced teardowns
// (auth_timeout, token_expired, server_shutdown, limit).
func (c *Client) ConnectionClosed(authMode, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_connections",
		map[string]string{"auth_mode": authMode, "event": "closed", "reason": reason},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// ConnectionRejected records an upgrade refused before the socket was
// established (connection limit, strict-mode auth failure).
func (c *Client) ConnectionRejected(authMode, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_connections",
		map[string]string{"auth_mode": authMode, "event": "rejected", "reason": reason},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// FrameReceived records an inbound client frame of the given type.
func (c *Client) FrameReceived(frameType string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_frames",
		map[string]string{"type": frameType, "direction": "in"},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// AuthOutcome records an authentication attempt over the socket.
func (c *Client) AuthOutcome(authMode string, success bool) {
	if !c.IsConnected() {
		return
	}

	outcome := "failure"
	if success {
		outcome = "success"
	}

	point := write.NewPoint(
		"gateway_auth",
		map[string]string{"auth_mode": authMode, "outcome": outcome},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RateLimited records a frame refused by the per-connection rate limiter.
func (c *Client) RateLimited() {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_rate_limit",
		map[string]string{},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
