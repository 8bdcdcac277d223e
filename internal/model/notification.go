package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// NotificationType classifies what happened to the pet or its collar.
type NotificationType string

const (
	TypeGeofenceExit  NotificationType = "GEOFENCE_EXIT"
	TypeGeofenceEntry NotificationType = "GEOFENCE_ENTRY"
	TypeLowBattery    NotificationType = "LOW_BATTERY"
	TypeHealthAlert   NotificationType = "HEALTH_ALERT"
	TypeDeviceOffline NotificationType = "DEVICE_OFFLINE"
	TypeEmergency     NotificationType = "EMERGENCY"
)

// String returns the string representation of the notification type.
func (t NotificationType) String() string {
	return string(t)
}

// IsValid checks whether the type is a known value.
func (t NotificationType) IsValid() bool {
	switch t {
	case TypeGeofenceExit, TypeGeofenceEntry, TypeLowBattery,
		TypeHealthAlert, TypeDeviceOffline, TypeEmergency:
		return true
	}
	return false
}

// Priority ranks how urgently the owner should look at a notification.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// DefaultMaxRetries is the retry ceiling given to records that don't set one.
const DefaultMaxRetries = 3

// Location is a point reported by a collar.
type Location struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Payload is the domain data attached to a notification.
type Payload struct {
	PetID    string         `json:"pet_id"`
	PetName  string         `json:"pet_name"`
	CollarID string         `json:"collar_id"`
	OwnerID  string         `json:"owner_id"`
	Location *Location      `json:"location,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Notification is the durable delivery record of one alert sent to an owner.
// Its Status only moves along the transitions in status.go.
type Notification struct {
	ID       string           `json:"id"`
	Type     NotificationType `json:"type"`
	Priority Priority         `json:"priority"`
	Status   Status           `json:"status"`
	OwnerID  string           `json:"owner_id"`
	PetID    string           `json:"pet_id"`
	PetName  string           `json:"pet_name"`
	CollarID string           `json:"collar_id"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Payload  *Payload         `json:"payload,omitempty"`
	Metadata json.RawMessage  `json:"metadata,omitempty"`

	ReadAt        *time.Time `json:"read_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of n that shares no memory with it.
func (n *Notification) Clone() *Notification {
	c := *n
	c.Payload = n.Payload.Clone()
	c.Metadata = bytes.Clone(n.Metadata)
	c.ReadAt = cloneTime(n.ReadAt)
	c.DeliveredAt = cloneTime(n.DeliveredAt)
	c.FailedAt = cloneTime(n.FailedAt)
	return &c
}

// Clone returns a deep copy of p. A nil payload clones to nil.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	if p.Location != nil {
		loc := *p.Location
		loc.Timestamp = cloneTime(p.Location.Timestamp)
		c.Location = &loc
	}
	if p.Metadata != nil {
		c.Metadata = cloneValue(p.Metadata).(map[string]any)
	}
	return &c
}

// cloneValue copies the maps and slices of a decoded JSON value.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	}
	return v
}

// CanRetry reports whether a failed record is still below its retry ceiling.
func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.RetryCount < n.MaxRetries
}

// Projection is the client-visible shape of a notification pushed over a
// live connection as the "notification" event.
type Projection struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	PetName   string           `json:"pet_name"`
	CreatedAt time.Time        `json:"created_at"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
}

// Project builds the client-visible projection of n.
func (n *Notification) Project() Projection {
	return Projection{
		ID:        n.ID,
		Type:      n.Type,
		Priority:  n.Priority,
		Title:     n.Title,
		Message:   n.Message,
		PetName:   n.PetName,
		CreatedAt: n.CreatedAt,
		Metadata:  n.Metadata,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
