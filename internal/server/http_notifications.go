package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// handleCreateNotification handles POST /v1/notifications.
func (s *NotifyServer) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var in model.NewNotification
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := s.orch.Submit(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// handleGeofenceAlert handles POST /v1/notifications/geofence-alert and its
// public alias used by the tracking pipeline.
func (s *NotifyServer) handleGeofenceAlert(w http.ResponseWriter, r *http.Request) {
	var alert model.GeofenceAlert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := s.orch.HandleGeofenceAlert(r.Context(), alert)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// handleGetNotification handles GET /v1/notifications/{id}.
func (s *NotifyServer) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.orch.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// handleListByOwner handles GET /v1/notifications/owner/{ownerId}.
func (s *NotifyServer) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.PathValue("ownerId"))
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	list, err := s.orch.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// Ensure notifications is never null in JSON output.
	if list == nil {
		list = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"total":         len(list),
	})
}

// handleUnreadCount handles GET /v1/notifications/owner/{ownerId}/unread-count.
func (s *NotifyServer) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.PathValue("ownerId"))
	n, err := s.orch.UnreadCount(r.Context(), ownerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id":     ownerID,
		"unread_count": n,
	})
}

// handleMarkRead handles PATCH /v1/notifications/{id}/read.
func (s *NotifyServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if _, err := s.orch.MarkRead(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMarkDelivered handles POST /v1/notifications/{id}/delivered.
func (s *NotifyServer) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	if _, err := s.orch.MarkDelivered(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRetry handles POST /v1/notifications/{id}/retry.
func (s *NotifyServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	n, err := s.orch.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// handleCleanup handles DELETE /v1/notifications?older_than_days=N.
func (s *NotifyServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "older_than_days")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.retention.Run(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// queryInt parses an optional non-negative integer query parameter. An
// absent parameter yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, inputError(name + " must be a non-negative integer")
	}
	return n, nil
}
