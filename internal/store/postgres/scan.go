package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanNotification scans a single row into a model.Notification.
// The row must contain columns in the order defined by notificationColumns.
func scanNotification(row scannable) (*model.Notification, error) {
	var n model.Notification
	var (
		petID         sql.NullString
		petName       sql.NullString
		collarID      sql.NullString
		payload       []byte
		metadata      []byte
		readAt        sql.NullTime
		deliveredAt   sql.NullTime
		failedAt      sql.NullTime
		failureReason sql.NullString
	)

	err := row.Scan(
		&n.ID,
		&n.Type,
		&n.Priority,
		&n.Status,
		&n.OwnerID,
		&petID,
		&petName,
		&collarID,
		&n.Title,
		&n.Message,
		&payload,
		&metadata,
		&readAt,
		&deliveredAt,
		&failedAt,
		&failureReason,
		&n.RetryCount,
		&n.MaxRetries,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.PetID = petID.String
	n.PetName = petName.String
	n.CollarID = collarID.String
	n.FailureReason = failureReason.String
	n.ReadAt = timePtr(readAt)
	n.DeliveredAt = timePtr(deliveredAt)
	n.FailedAt = timePtr(failedAt)

	if len(payload) > 0 {
		var p model.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		n.Payload = &p
	}
	if len(metadata) > 0 {
		n.Metadata = json.RawMessage(metadata)
	}

	return &n, nil
}

// scanNotifications scans multiple rows into a slice of model.Notification pointers.
func scanNotifications(rows *sql.Rows) ([]*model.Notification, error) {
	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// payloadBytes encodes the structured payload for the payload JSONB column.
func payloadBytes(p *model.Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
