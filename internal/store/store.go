package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

var (
	// ErrNotFound is returned when a notification does not exist.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict is returned by UpdateStatus when the stored status no
	// longer matches the status the caller transitioned from.
	ErrConflict = errors.New("notification status changed concurrently")
)

// StatusUpdate carries the lifecycle fields written by a status change.
type StatusUpdate struct {
	Status        model.Status
	DeliveredAt   *time.Time
	ReadAt        *time.Time
	FailedAt      *time.Time
	FailureReason string
	RetryCount    int
	UpdatedAt     time.Time
}

// UpdateOf extracts the lifecycle fields of n.
func UpdateOf(n *model.Notification) StatusUpdate {
	return StatusUpdate{
		Status:        n.Status,
		DeliveredAt:   n.DeliveredAt,
		ReadAt:        n.ReadAt,
		FailedAt:      n.FailedAt,
		FailureReason: n.FailureReason,
		RetryCount:    n.RetryCount,
		UpdatedAt:     n.UpdatedAt,
	}
}

// Store defines the persistence interface for delivery records.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)

	// UpdateStatus writes u only if the record is still in status from,
	// returning ErrConflict otherwise and ErrNotFound if id is unknown.
	UpdateStatus(ctx context.Context, id string, from model.Status, u StatusUpdate) error

	// ListByOwner returns the owner's records, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Notification, error)
	CountByStatus(ctx context.Context, ownerID string, statuses ...model.Status) (int, error)

	// ListRetryable returns FAILED records below their retry ceiling, oldest failure first.
	ListRetryable(ctx context.Context, limit int) ([]*model.Notification, error)
	// ListStalePending returns PENDING records created before cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Notification, error)

	// ListOlderThan and DeleteOlderThan select records in status created before cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time, status model.Status, limit int) ([]*model.Notification, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, status model.Status) (int64, error)

	Close() error
}
