// Package idgen generates notification identifiers: a short type prefix
// followed by a nanoid drawn from an alphanumeric alphabet.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// NotificationPrefix is prepended to every notification ID.
const NotificationPrefix = "nt-"

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
// 16 characters of a 62-symbol alphabet is ~95 bits.
const Length = 16

// NewNotificationID returns a fresh notification ID.
func NewNotificationID() (string, error) {
	return WithPrefix(NotificationPrefix)
}

// WithPrefix returns a new unique ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// IsNotificationID reports whether s looks like an ID produced by
// NewNotificationID. It is a cheap syntactic check used to reject
// garbage path parameters before they reach the store.
func IsNotificationID(s string) bool {
	rest, ok := strings.CutPrefix(s, NotificationPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
