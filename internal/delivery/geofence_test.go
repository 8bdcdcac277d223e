package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

func float64Ptr(v float64) *float64 { return &v }

func TestHandleGeofenceAlert(t *testing.T) {
	for _, tc := range []struct {
		name         string
		action       model.GeofenceAction
		distance     *float64
		wantType     model.NotificationType
		wantPriority model.Priority
		wantTitle    string
		wantMessage  string
	}{
		{
			name:         "exit",
			action:       model.GeofenceExit,
			distance:     float64Ptr(120.6),
			wantType:     model.TypeGeofenceExit,
			wantPriority: model.PriorityHigh,
			wantTitle:    "Alert: your pet left Home",
			wantMessage:  `Your pet has left the zone "Home" (121m away). Check its current location.`,
		},
		{
			name:         "entry without distance",
			action:       model.GeofenceEntry,
			wantType:     model.TypeGeofenceEntry,
			wantPriority: model.PriorityMedium,
			wantTitle:    "Alert: your pet entered Home",
			wantMessage:  `Your pet has entered the zone "Home". Check its current location.`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.reg.Register("owner-1", &testHandle{id: "phone"})

			n, err := f.orch.HandleGeofenceAlert(context.Background(), model.GeofenceAlert{
				CollarID:     "123456",
				GeofenceID:   "gf-1",
				GeofenceName: "Home",
				Action:       tc.action,
				Location:     model.Location{Latitude: -34.6, Longitude: -58.4},
				Distance:     tc.distance,
			})
			if err != nil {
				t.Fatalf("HandleGeofenceAlert: %v", err)
			}
			if n.Type != tc.wantType || n.Priority != tc.wantPriority {
				t.Errorf("got type=%s priority=%s", n.Type, n.Priority)
			}
			if n.Title != tc.wantTitle {
				t.Errorf("title = %q, want %q", n.Title, tc.wantTitle)
			}
			if n.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", n.Message, tc.wantMessage)
			}
			if n.OwnerID != "owner-1" || n.PetName != "Zeus" || n.PetID != "pet-zeus" {
				t.Errorf("collar not resolved: owner=%s pet=%s/%s", n.OwnerID, n.PetID, n.PetName)
			}
			if n.Payload == nil || n.Payload.Location == nil || n.Payload.Location.Timestamp == nil {
				t.Fatalf("payload location not stamped: %+v", n.Payload)
			}
			if !n.Payload.Location.Timestamp.Equal(f.clock) {
				t.Errorf("location timestamp = %v, want %v", n.Payload.Location.Timestamp, f.clock)
			}

			var meta map[string]any
			if err := json.Unmarshal(n.Metadata, &meta); err != nil {
				t.Fatalf("decode metadata: %v", err)
			}
			if meta["geofence_id"] != "gf-1" || meta["action"] != string(tc.action) {
				t.Errorf("unexpected metadata: %v", meta)
			}
			if n.Status != model.StatusSent {
				t.Errorf("status = %s, want SENT", n.Status)
			}
		})
	}
}

func TestHandleGeofenceAlert_UnknownCollar(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.HandleGeofenceAlert(context.Background(), model.GeofenceAlert{
		CollarID: "999", GeofenceID: "gf-1", GeofenceName: "Home", Action: model.GeofenceExit,
	})
	if !errors.Is(err, ErrUnknownCollar) {
		t.Fatalf("expected ErrUnknownCollar, got %v", err)
	}
}

func TestHandleGeofenceAlert_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.HandleGeofenceAlert(context.Background(), model.GeofenceAlert{
		CollarID: "123456", GeofenceID: "gf-1", GeofenceName: "Home", Action: "WANDER",
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *model.ValidationError, got %v", err)
	}
}

func TestStaticDirectory_CopiesInput(t *testing.T) {
	pets := map[string]Pet{"c1": {PetName: "Luna", OwnerID: "o1"}}
	d := NewStaticDirectory(pets)
	delete(pets, "c1")

	p, err := d.Lookup(context.Background(), "c1")
	if err != nil || p.PetName != "Luna" {
		t.Fatalf("Lookup = %+v, %v", p, err)
	}
}
