package ui

import (
	"fmt"

	"github.com/alfredjeanlab/notifyd/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorAlert  = 203 // red
	colorUrgent = 197 // magenta-red
)

var noColor bool

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderPriority returns the priority label colored by urgency.
func RenderPriority(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return render(colorUrgent, string(p))
	case model.PriorityHigh:
		return render(colorAlert, string(p))
	case model.PriorityMedium:
		return render(colorWarn, string(p))
	}
	return RenderMuted(string(p))
}

// RenderStatus returns the status label colored by outcome.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusSent, model.StatusDelivered:
		return render(colorOK, string(s))
	case model.StatusFailed:
		return render(colorAlert, string(s))
	case model.StatusPending:
		return render(colorWarn, string(s))
	}
	return RenderMuted(string(s))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
