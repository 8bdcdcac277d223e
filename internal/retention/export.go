package retention

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	Cutoff            time.Time `json:"cutoff"`
	NotificationCount int       `json:"notification_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes a header followed by one line per notification to w.
func ExportJSONL(w io.Writer, notifications []*model.Notification, cutoff, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         now.UTC(),
		Cutoff:            cutoff.UTC(),
		NotificationCount: len(notifications),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, n := range notifications {
		if err := enc.Encode(record{Type: "notification", Data: n}); err != nil {
			return fmt.Errorf("encode notification %s: %w", n.ID, err)
		}
	}
	return nil
}
