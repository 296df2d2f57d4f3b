package mqtt

import (
	"encoding/json"
	"time"
)

// Presence statuses announced on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonShutdown   = "graceful_shutdown"
	reasonUnexpected = "unexpected_disconnect"
)

// presence is the JSON body published to slate/system/status. It is
// retained so peers always see each instance's last known state.
type presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presencePayload(status, clientID, reason string) []byte {
	body, _ := json.Marshal(presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return body
}

// lastWill is the retained crash notice the broker publishes on this
// instance's behalf when the session dies without a graceful
// disconnect.
func lastWill(clientID string) (topic, payload string) {
	return Topics{}.SystemStatus(), string(presencePayload(statusOffline, clientID, reasonUnexpected))
}

func (c *Client) publishPresence(status, reason string) {
	payload := presencePayload(status, c.cfg.Broker.ClientID, reason)
	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}
