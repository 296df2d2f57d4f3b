package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/slate-cms/internal/activity"
)

// recordActivity appends an entry to the activity log. Failures are
// logged, never surfaced: the action itself already succeeded.
func (s *Server) recordActivity(ctx context.Context, action, collection, item, userID string, r *http.Request) {
	if s.activity == nil {
		return
	}

	meta := sessionMeta(r)
	err := s.activity.Create(ctx, &activity.Entry{
		Action:     action,
		Collection: collection,
		Item:       item,
		UserID:     userID,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Origin:     meta.Origin,
	})
	if err != nil {
		s.logger.Error("recording activity", "action", action, "error", err)
	}
}

// handleListActivity returns the activity log, filtered and paginated.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, &activity.ListResult{Entries: []activity.Entry{}})
		return
	}

	q := r.URL.Query()
	filter := activity.Filter{
		Action:     q.Get("action"),
		Collection: q.Get("collection"),
		UserID:     q.Get("user_id"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "listing activity failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
