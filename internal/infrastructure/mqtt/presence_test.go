package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPresencePayload(t *testing.T) {
	var got presence
	if err := json.Unmarshal(presencePayload(statusOffline, "slate-1", reasonShutdown), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Status != statusOffline {
		t.Errorf("status = %q, want %q", got.Status, statusOffline)
	}
	if got.ClientID != "slate-1" {
		t.Errorf("client_id = %q, want slate-1", got.ClientID)
	}
	if got.Reason != reasonShutdown {
		t.Errorf("reason = %q, want %q", got.Reason, reasonShutdown)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", got.Timestamp, err)
	}
}

func TestPresencePayloadOmitsEmptyReason(t *testing.T) {
	if strings.Contains(string(presencePayload(statusOnline, "slate-1", "")), "reason") {
		t.Error("online payload should omit the reason field")
	}
}

func TestLastWill(t *testing.T) {
	topic, payload := lastWill("slate-1")
	if topic != (Topics{}).SystemStatus() {
		t.Errorf("topic = %q, want system status topic", topic)
	}

	var got presence
	if err := json.Unmarshal([]byte(payload), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != statusOffline || got.Reason != reasonUnexpected {
		t.Errorf("will payload = %+v, want offline/unexpected_disconnect", got)
	}
}
