package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// ErrUnknownCollar is returned when a collar has no registered pet.
var ErrUnknownCollar = errors.New("unknown collar")

// Pet is what a collar resolves to.
type Pet struct {
	PetID   string
	PetName string
	OwnerID string
}

// CollarDirectory resolves a collar to the pet wearing it and its owner.
type CollarDirectory interface {
	Lookup(ctx context.Context, collarID string) (Pet, error)
}

// StaticDirectory is a CollarDirectory over a fixed map, loaded from config.
type StaticDirectory struct {
	pets map[string]Pet
}

// NewStaticDirectory copies pets, keyed by collar id.
func NewStaticDirectory(pets map[string]Pet) *StaticDirectory {
	m := make(map[string]Pet, len(pets))
	for id, p := range pets {
		m[id] = p
	}
	return &StaticDirectory{pets: m}
}

func (d *StaticDirectory) Lookup(_ context.Context, collarID string) (Pet, error) {
	p, ok := d.pets[collarID]
	if !ok {
		return Pet{}, fmt.Errorf("collar %s: %w", collarID, ErrUnknownCollar)
	}
	return p, nil
}

// HandleGeofenceAlert turns a geofence crossing into a notification for the
// collar's owner and submits it. Leaving a zone is HIGH priority, entering
// one is MEDIUM.
func (o *Orchestrator) HandleGeofenceAlert(ctx context.Context, alert model.GeofenceAlert) (*model.Notification, error) {
	if err := model.ValidateGeofenceAlert(&alert); err != nil {
		return nil, err
	}
	pet, err := o.collars.Lookup(ctx, alert.CollarID)
	if err != nil {
		o.log.Warn("geofence alert for unresolved collar", "collar", alert.CollarID, "error", err)
		return nil, err
	}

	typ, priority := model.TypeGeofenceEntry, model.PriorityMedium
	if alert.Action == model.GeofenceExit {
		typ, priority = model.TypeGeofenceExit, model.PriorityHigh
	}

	stamped := o.now().UTC()
	loc := alert.Location
	loc.Timestamp = &stamped

	meta := geofenceMetadata{
		GeofenceID:   alert.GeofenceID,
		GeofenceName: alert.GeofenceName,
		Action:       alert.Action,
		Distance:     alert.Distance,
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode geofence metadata: %w", err)
	}

	return o.Submit(ctx, model.NewNotification{
		Type:     typ,
		Priority: priority,
		OwnerID:  pet.OwnerID,
		PetID:    pet.PetID,
		PetName:  pet.PetName,
		CollarID: alert.CollarID,
		Title:    geofenceTitle(alert),
		Message:  geofenceMessage(alert),
		Payload: &model.Payload{
			PetID:    pet.PetID,
			PetName:  pet.PetName,
			CollarID: alert.CollarID,
			OwnerID:  pet.OwnerID,
			Location: &loc,
		},
		Metadata: rawMeta,
	})
}

type geofenceMetadata struct {
	GeofenceID   string               `json:"geofence_id"`
	GeofenceName string               `json:"geofence_name"`
	Action       model.GeofenceAction `json:"action"`
	Distance     *float64             `json:"distance,omitempty"`
}

func geofenceTitle(a model.GeofenceAlert) string {
	verb := "entered"
	if a.Action == model.GeofenceExit {
		verb = "left"
	}
	return fmt.Sprintf("Alert: your pet %s %s", verb, a.GeofenceName)
}

func geofenceMessage(a model.GeofenceAlert) string {
	verb := "has entered"
	if a.Action == model.GeofenceExit {
		verb = "has left"
	}
	distance := ""
	if a.Distance != nil && *a.Distance != 0 {
		distance = fmt.Sprintf(" (%dm away)", int64(math.Round(*a.Distance)))
	}
	return fmt.Sprintf("Your pet %s the zone %q%s. Check its current location.", verb, a.GeofenceName, distance)
}
