package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/notifyd/internal/delivery"
	"github.com/alfredjeanlab/notifyd/internal/events"
	"github.com/alfredjeanlab/notifyd/internal/model"
)

// AlertHandler turns a geofence alert into a delivered notification.
// *delivery.Orchestrator satisfies it.
type AlertHandler interface {
	HandleGeofenceAlert(ctx context.Context, alert model.GeofenceAlert) (*model.Notification, error)
}

// AlertIntake consumes geofence alerts published on the message bus and
// handles them like POST /v1/notifications/geofence-alert.
type AlertIntake struct {
	sub     events.Subscriber
	subject string
	handler AlertHandler
	log     *slog.Logger
}

// NewAlertIntake returns an intake reading subject from sub.
func NewAlertIntake(sub events.Subscriber, subject string, h AlertHandler, log *slog.Logger) *AlertIntake {
	if log == nil {
		log = slog.Default()
	}
	return &AlertIntake{sub: sub, subject: subject, handler: h, log: log}
}

// Run handles alerts until ctx is done or the subscription closes. Malformed
// or rejected alerts are logged and skipped.
func (a *AlertIntake) Run(ctx context.Context) error {
	ch, cancel, err := a.sub.Subscribe(a.subject)
	if err != nil {
		return fmt.Errorf("alert intake: %w", err)
	}
	defer cancel()
	a.log.Info("alert intake started", "subject", a.subject)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			a.handle(ctx, data)
		}
	}
}

func (a *AlertIntake) handle(ctx context.Context, data []byte) {
	var alert model.GeofenceAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		a.log.Warn("alert intake: malformed alert", "subject", a.subject, "error", err)
		return
	}

	n, err := a.handler.HandleGeofenceAlert(ctx, alert)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) || errors.Is(err, delivery.ErrUnknownCollar) {
			a.log.Warn("alert intake: alert rejected", "collar_id", alert.CollarID, "error", err)
			return
		}
		a.log.Error("alert intake: handle alert", "collar_id", alert.CollarID, "error", err)
		return
	}
	a.log.Debug("alert intake: alert handled", "id", n.ID, "status", n.Status)
}
