package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

// notificationColumns is the column list used for SELECT statements on the
// notifications table.
const notificationColumns = `id, type, priority, status, owner_id, pet_id, pet_name,
	collar_id, title, message, payload, metadata, read_at, delivered_at,
	failed_at, failure_reason, retry_count, max_retries, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateNotification(ctx context.Context, db executor, n *model.Notification) error {
	payload, err := payloadBytes(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, type, priority, status, owner_id, pet_id, pet_name,
			collar_id, title, message, payload, metadata, read_at, delivered_at,
			failed_at, failure_reason, retry_count, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20
		)`,
		n.ID,
		string(n.Type),
		string(n.Priority),
		string(n.Status),
		n.OwnerID,
		nullString(n.PetID),
		nullString(n.PetName),
		nullString(n.CollarID),
		n.Title,
		n.Message,
		payload,
		jsonbBytes(n.Metadata),
		nullTimePtr(n.ReadAt),
		nullTimePtr(n.DeliveredAt),
		nullTimePtr(n.FailedAt),
		nullString(n.FailureReason),
		n.RetryCount,
		n.MaxRetries,
		n.CreatedAt,
		n.UpdatedAt,
	)
	return err
}

func queryGetNotification(ctx context.Context, db executor, id string) (*model.Notification, error) {
	row := db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

func queryNotificationExists(ctx context.Context, db executor, id string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// queryUpdateStatus returns sql.ErrNoRows when no row with the given id is in
// status from.
func queryUpdateStatus(ctx context.Context, db executor, id string, from model.Status, u store.StatusUpdate) error {
	res, err := db.ExecContext(ctx, `
		UPDATE notifications SET
			status = $3,
			delivered_at = $4,
			read_at = $5,
			failed_at = $6,
			failure_reason = $7,
			retry_count = $8,
			updated_at = $9
		WHERE id = $1 AND status = $2`,
		id,
		string(from),
		string(u.Status),
		nullTimePtr(u.DeliveredAt),
		nullTimePtr(u.ReadAt),
		nullTimePtr(u.FailedAt),
		nullString(u.FailureReason),
		u.RetryCount,
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListByOwner(ctx context.Context, db executor, ownerID string, limit int) ([]*model.Notification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, ownerID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func queryCountByStatus(ctx context.Context, db executor, ownerID string, statuses []model.Status) (int, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE owner_id = $1 AND status = ANY($2)`,
		ownerID, pq.Array(values),
	).Scan(&count)
	return count, err
}

func queryListRetryable(ctx context.Context, db executor, limit int) ([]*model.Notification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND retry_count < max_retries
		ORDER BY failed_at ASC NULLS FIRST, id ASC
		LIMIT $2`, string(model.StatusFailed), limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func queryListOlderThan(ctx context.Context, db executor, cutoff time.Time, status model.Status, limit int) ([]*model.Notification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3`, string(status), cutoff, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func queryDeleteOlderThan(ctx context.Context, db executor, cutoff time.Time, status model.Status) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM notifications WHERE status = $1 AND created_at < $2`,
		string(status), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// limitOrAll maps a non-positive limit to NULL, which Postgres treats as
// LIMIT ALL.
func limitOrAll(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}
