package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// broadcastRequest is the body of POST /v1/presence/broadcast.
type broadcastRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleListPresence handles GET /v1/presence.
func (s *NotifyServer) handleListPresence(w http.ResponseWriter, _ *http.Request) {
	entries := s.presence.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"recipients":  entries,
		"total":       len(entries),
		"connections": s.presence.Connections(),
	})
}

// handleGetPresence handles GET /v1/presence/{userId}.
func (s *NotifyServer) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userId"))
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"present":     s.presence.IsPresent(userID),
		"connections": len(s.presence.HandlesFor(userID)),
	})
}

// handleBroadcast handles POST /v1/presence/broadcast. The event goes to
// every open stream and is not stored.
func (s *NotifyServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Event == EventConnected {
		s.writeServiceError(w, r, inputError("event name "+EventConnected+" is reserved"))
		return
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	res, err := s.orch.Broadcast(r.Context(), req.Event, data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":     strings.TrimSpace(req.Event),
		"outcome":   res.Outcome,
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
	})
}
