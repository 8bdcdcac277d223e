package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPHandler returns an http.Handler with all routes registered,
// wrapped in the CORS policy for the configured origins.
func (s *NotifyServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notifications", s.handleCreateNotification)
	mux.HandleFunc("POST /v1/notifications/geofence-alert", s.handleGeofenceAlert)
	mux.HandleFunc("POST /v1/public/notifications/geofence-alert", s.handleGeofenceAlert)
	mux.HandleFunc("GET /v1/notifications/stream", s.handleNotificationStream)
	mux.HandleFunc("GET /v1/notifications/{id}", s.handleGetNotification)
	mux.HandleFunc("GET /v1/notifications/owner/{ownerId}", s.handleListByOwner)
	mux.HandleFunc("GET /v1/notifications/owner/{ownerId}/unread-count", s.handleUnreadCount)
	mux.HandleFunc("PATCH /v1/notifications/{id}/read", s.handleMarkRead)
	mux.HandleFunc("POST /v1/notifications/{id}/delivered", s.handleMarkDelivered)
	mux.HandleFunc("POST /v1/notifications/{id}/retry", s.handleRetry)
	if s.retention != nil {
		mux.HandleFunc("DELETE /v1/notifications", s.handleCleanup)
	}
	mux.HandleFunc("GET /v1/presence", s.handleListPresence)
	mux.HandleFunc("GET /v1/presence/{userId}", s.handleGetPresence)
	mux.HandleFunc("POST /v1/presence/broadcast", s.handleBroadcast)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return CORSMiddleware(s.corsOrigins, mux)
}

// handleHealth handles GET /v1/health.
func (s *NotifyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"present_recipients": s.presence.Count(),
		"open_connections":   s.presence.Connections(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
