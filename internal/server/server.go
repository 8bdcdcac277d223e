package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/delivery"
	"github.com/alfredjeanlab/notifyd/internal/metrics"
	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/presence"
	"github.com/alfredjeanlab/notifyd/internal/retention"
	"github.com/alfredjeanlab/notifyd/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultConnBuffer = 32

// Options wires the optional collaborators of a NotifyServer.
type Options struct {
	// Retention backs DELETE /v1/notifications; nil disables the route.
	Retention *retention.Job
	Metrics   *metrics.Metrics
	// Gatherer backs GET /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// ConnBuffer is the number of frames queued per stream. Default: 32.
	ConnBuffer  int
	CORSOrigins []string
	// Keepalive is the interval between stream keepalive comments.
	// Default: 15s.
	Keepalive time.Duration
}

// NotifyServer serves the notification HTTP API and the live streams that
// make recipients present.
type NotifyServer struct {
	orch      *delivery.Orchestrator
	presence  *presence.Registry
	retention *retention.Job
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	log       *slog.Logger

	connBuffer  int
	corsOrigins []string
	keepalive   time.Duration
}

// NewNotifyServer returns a NotifyServer submitting through orch and
// registering stream connections in reg. reg must be the registry the
// orchestrator's dispatcher reads from.
func NewNotifyServer(orch *delivery.Orchestrator, reg *presence.Registry, opts Options) *NotifyServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConnBuffer <= 0 {
		opts.ConnBuffer = defaultConnBuffer
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = sseKeepaliveInterval
	}
	return &NotifyServer{
		orch:        orch,
		presence:    reg,
		retention:   opts.Retention,
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		log:         opts.Logger,
		connBuffer:  opts.ConnBuffer,
		corsOrigins: opts.CORSOrigins,
		keepalive:   opts.Keepalive,
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// writeServiceError maps an orchestrator error onto an HTTP status.
func (s *NotifyServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *model.ValidationError
		ie inputError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": ve.Errors,
		})
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	case errors.Is(err, delivery.ErrUnknownCollar):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, delivery.ErrRetriesExhausted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// updatePresenceMetrics refreshes the presence gauges after a stream
// connects or disconnects.
func (s *NotifyServer) updatePresenceMetrics() {
	s.metrics.SetPresence(s.presence.Count(), s.presence.Connections())
}
