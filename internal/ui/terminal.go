package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
func ShouldUseColor() bool {
	return ColorFor(os.Stdout)
}

// ColorFor reports whether ANSI colors should be written to f. In order it
// honors NOTIFY_COLOR (always|never|auto), NO_COLOR, CLICOLOR_FORCE,
// CLICOLOR and TERM=dumb, then falls back to TTY detection.
func ColorFor(f *os.File) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}
