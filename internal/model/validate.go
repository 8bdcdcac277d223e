package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// NewNotification is the input accepted when an alert is submitted.
type NewNotification struct {
	Type       NotificationType `json:"type" validate:"required"`
	Priority   Priority         `json:"priority,omitempty"`
	OwnerID    string           `json:"owner_id" validate:"required,max=128"`
	PetID      string           `json:"pet_id" validate:"max=128"`
	PetName    string           `json:"pet_name" validate:"max=200"`
	CollarID   string           `json:"collar_id" validate:"max=128"`
	Title      string           `json:"title" validate:"required,max=500"`
	Message    string           `json:"message" validate:"required"`
	Payload    *Payload         `json:"payload,omitempty"`
	Metadata   json.RawMessage  `json:"metadata,omitempty"`
	MaxRetries *int             `json:"max_retries,omitempty" validate:"omitempty,min=0,max=20"`
}

// Normalize trims identifiers and fills in defaults (MEDIUM priority,
// DefaultMaxRetries).
func (in *NewNotification) Normalize() {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.PetID = strings.TrimSpace(in.PetID)
	in.CollarID = strings.TrimSpace(in.CollarID)
	in.Title = strings.TrimSpace(in.Title)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.MaxRetries == nil {
		n := DefaultMaxRetries
		in.MaxRetries = &n
	}
}

// ValidateNewNotification checks the submission for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the input is valid.
func ValidateNewNotification(in *NewNotification) error {
	var ve ValidationError

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   jsonFieldName(fe.Field()),
				Message: tagMessage(fe),
			})
		}
	}

	// Classification: closed sets.
	if in.Type != "" && !in.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", in.Type),
		})
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "priority",
			Message: fmt.Sprintf("invalid value %q", in.Priority),
		})
	}

	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "metadata",
			Message: "contains invalid JSON",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// jsonFieldName maps a Go field name to its snake_case JSON key.
func jsonFieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
