package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/slate-cms/internal/infrastructure/mqtt"
)

// validActions are the content change actions accepted on the publish
// endpoint. They mirror the actions carried in MQTT topic segments.
var validActions = map[string]bool{
	mqtt.ActionCreate: true,
	mqtt.ActionUpdate: true,
	mqtt.ActionDelete: true,
}

// handlePublishContentEvent publishes a content change event onto the
// broker. Connected gateway subscribers receive it through the MQTT
// relay; other Slate nodes sharing the broker receive it the same way.
func (s *Server) handlePublishContentEvent(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if collection == "" {
		writeBadRequest(w, "collection is required")
		return
	}

	action := r.URL.Query().Get("action")
	if action == "" {
		action = mqtt.ActionUpdate
	}
	if !validActions[action] {
		writeBadRequest(w, "action must be create, update or delete")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}

	if s.mqtt == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "event bus unavailable")
		return
	}

	topics := mqtt.Topics{}
	if err := s.mqtt.Publish(topics.ContentEvent(action, collection), payload); err != nil {
		s.logger.Error("content event publish failed", "collection", collection, "error", err)
		writeInternalError(w, "publish failed")
		return
	}

	userID := ""
	if acc := accountabilityFrom(r.Context()); acc != nil {
		userID = acc.User
	}
	s.recordActivity(r.Context(), action, collection, "", userID, r)

	w.WriteHeader(http.StatusAccepted)
}
