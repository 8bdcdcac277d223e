package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNotification_CloneIsDeep(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := newRecord(StatusSent)
	n.DeliveredAt = &ts
	n.Metadata = json.RawMessage(`{"geofenceId":"gf-1"}`)
	n.Payload = &Payload{
		PetName:  "Zeus",
		Location: &Location{Latitude: 40.4, Longitude: -3.7, Timestamp: &ts},
		Metadata: map[string]any{
			"zone": map[string]any{"name": "Home"},
			"tags": []any{"a"},
		},
	}

	c := n.Clone()
	c.Payload.PetName = "Luna"
	c.Payload.Location.Latitude = 0
	*c.Payload.Location.Timestamp = time.Time{}
	c.Payload.Metadata["zone"].(map[string]any)["name"] = "Park"
	c.Payload.Metadata["tags"].([]any)[0] = "b"
	c.Metadata[2] = 'X'
	*c.DeliveredAt = time.Time{}

	if n.Payload.PetName != "Zeus" || n.Payload.Location.Latitude != 40.4 {
		t.Errorf("payload shared with clone: %+v", n.Payload)
	}
	if !n.Payload.Location.Timestamp.Equal(ts) || !n.DeliveredAt.Equal(ts) {
		t.Error("time pointers shared with clone")
	}
	if got := n.Payload.Metadata["zone"].(map[string]any)["name"]; got != "Home" {
		t.Errorf("nested payload metadata shared: zone.name = %v", got)
	}
	if got := n.Payload.Metadata["tags"].([]any)[0]; got != "a" {
		t.Errorf("payload metadata slice shared: tags[0] = %v", got)
	}
	if string(n.Metadata) != `{"geofenceId":"gf-1"}` {
		t.Errorf("metadata bytes shared: %s", n.Metadata)
	}
}

func TestNotification_CloneNilFields(t *testing.T) {
	c := newRecord(StatusPending).Clone()
	if c.Payload != nil || c.Metadata != nil || c.ReadAt != nil {
		t.Errorf("nil fields should stay nil: %+v", c)
	}
}
