// Package events publishes notification lifecycle events to the message bus
// and consumes inbound alerts from it.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// Event topic constants
const (
	TopicNotificationCreated   = "notifications.notification.created"
	TopicNotificationSent      = "notifications.notification.sent"
	TopicNotificationDelivered = "notifications.notification.delivered"
	TopicNotificationRead      = "notifications.notification.read"
	TopicNotificationFailed    = "notifications.notification.failed"
	TopicNotificationRearmed   = "notifications.notification.rearmed"

	// Retention sweep results.
	TopicCleanupCompleted = "notifications.retention.cleanup"

	// TopicAll matches every event this service emits.
	TopicAll = "notifications.>"
)

// TopicForStatus returns the topic announcing a transition into s.
func TopicForStatus(s model.Status) string {
	switch s {
	case model.StatusSent:
		return TopicNotificationSent
	case model.StatusDelivered:
		return TopicNotificationDelivered
	case model.StatusRead:
		return TopicNotificationRead
	case model.StatusFailed:
		return TopicNotificationFailed
	case model.StatusPending:
		return TopicNotificationRearmed
	}
	return ""
}

// HeaderNotificationID carries the id of the notification an event is about,
// so consumers can route or deduplicate without decoding the body.
const HeaderNotificationID = "Notify-Notification-Id"

// Keyed is implemented by events that concern a single notification.
type Keyed interface {
	NotificationID() string
}

// Event types

type NotificationCreated struct {
	Notification *model.Notification `json:"notification"`
}

func (e NotificationCreated) NotificationID() string {
	if e.Notification == nil {
		return ""
	}
	return e.Notification.ID
}

// StatusChanged is emitted after a transition is persisted. Attempted and
// Succeeded are set for transitions driven by a dispatch.
type StatusChanged struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	From      model.Status `json:"from"`
	To        model.Status `json:"to"`
	Reason    string       `json:"reason,omitempty"`
	Attempted int          `json:"attempted,omitempty"`
	Succeeded int          `json:"succeeded,omitempty"`
	At        time.Time    `json:"at"`
}

func (e StatusChanged) NotificationID() string { return e.ID }

type CleanupCompleted struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
	Deleted  int64     `json:"deleted"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
