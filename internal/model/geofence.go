package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// GeofenceAction is the direction of a geofence crossing.
type GeofenceAction string

const (
	GeofenceExit  GeofenceAction = "EXIT"
	GeofenceEntry GeofenceAction = "ENTRY"
)

// IsValid checks whether the action is a known value.
func (a GeofenceAction) IsValid() bool {
	return a == GeofenceExit || a == GeofenceEntry
}

// GeofenceAlert is reported by the tracking pipeline when a collar crosses
// the boundary of a geofence.
type GeofenceAlert struct {
	CollarID     string         `json:"collar_id" validate:"required"`
	GeofenceID   string         `json:"geofence_id" validate:"required"`
	GeofenceName string         `json:"geofence_name" validate:"required"`
	Action       GeofenceAction `json:"action" validate:"required"`
	Location     Location       `json:"location"`
	Distance     *float64       `json:"distance,omitempty"`
}

// ValidateGeofenceAlert checks an inbound geofence alert.
func ValidateGeofenceAlert(a *GeofenceAlert) error {
	var ve ValidationError
	if err := validate.Struct(a); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				ve.Errors = append(ve.Errors, FieldError{Field: jsonFieldName(fe.Field()), Message: tagMessage(fe)})
			}
		} else {
			return err
		}
	}
	if a.Action != "" && !a.Action.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "action",
			Message: fmt.Sprintf("must be EXIT or ENTRY, got %q", a.Action),
		})
	}
	if a.Location.Latitude < -90 || a.Location.Latitude > 90 {
		ve.Errors = append(ve.Errors, FieldError{Field: "location.latitude", Message: "out of range"})
	}
	if a.Location.Longitude < -180 || a.Location.Longitude > 180 {
		ve.Errors = append(ve.Errors, FieldError{Field: "location.longitude", Message: "out of range"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
