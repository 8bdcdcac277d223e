// Package client provides a transport-agnostic interface for the notifyd
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// NotifyClient is the interface that all nd CLI commands use to communicate
// with the notification server. It is implemented by HTTPClient.
type NotifyClient interface {
	// Submission
	Send(ctx context.Context, in *model.NewNotification) (*model.Notification, error)
	GeofenceAlert(ctx context.Context, alert *model.GeofenceAlert) (*model.Notification, error)

	// Queries
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) (*ListResponse, error)
	UnreadCount(ctx context.Context, ownerID string) (int, error)

	// Lifecycle
	MarkRead(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) (*model.Notification, error)
	Cleanup(ctx context.Context, olderThanDays int) (*CleanupResponse, error)

	// Presence
	ListPresence(ctx context.Context) (*PresenceList, error)
	GetPresence(ctx context.Context, userID string) (*UserPresence, error)
	Broadcast(ctx context.Context, event string, data any) (*BroadcastResponse, error)

	// Streaming
	Watch(ctx context.Context, userID string, fn func(StreamEvent) error) error

	// Health
	Health(ctx context.Context) (*HealthResponse, error)

	Close() error
}

// ListResponse is the response from ListByOwner.
type ListResponse struct {
	Notifications []*model.Notification `json:"notifications"`
	Total         int                   `json:"total"`
}

// CleanupResponse is the response from Cleanup.
type CleanupResponse struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
	Deleted  int64     `json:"deleted"`
}

// PresenceEntry describes one present recipient.
type PresenceEntry struct {
	Recipient   string    `json:"recipient"`
	Connections int       `json:"connections"`
	Since       time.Time `json:"since"`
}

// PresenceList is the response from ListPresence.
type PresenceList struct {
	Recipients  []PresenceEntry `json:"recipients"`
	Total       int             `json:"total"`
	Connections int             `json:"connections"`
}

// UserPresence is the response from GetPresence.
type UserPresence struct {
	UserID      string `json:"user_id"`
	Present     bool   `json:"present"`
	Connections int    `json:"connections"`
}

// BroadcastResponse is the response from Broadcast.
type BroadcastResponse struct {
	Event     string `json:"event"`
	Outcome   string `json:"outcome"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
}

// HealthResponse is the response from Health.
type HealthResponse struct {
	Status            string `json:"status"`
	PresentRecipients int    `json:"present_recipients"`
	OpenConnections   int    `json:"open_connections"`
}

// StreamEvent is one event read from a notification stream.
type StreamEvent struct {
	Event string
	Data  []byte
}
