package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/notifyd/internal/ui"
	"github.com/spf13/cobra"
)

// helpStyle colors every match of re in Cobra's plain help text.
type helpStyle struct {
	re    *regexp.Regexp
	apply func(parts []string) string
}

var helpStyles = []helpStyle{
	// Section headers such as "Notifications:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`), func(p []string) string {
		return ui.RenderAccent(strings.TrimSpace(p[1]))
	}},
	// Command names in the command listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(p []string) string {
		return p[1] + ui.RenderCommand(p[2]) + p[3]
	}},
	// Flag value types, e.g. "--limit int".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|float64|duration|stringToString)\b`), func(p []string) string {
		return p[1] + ui.RenderMuted(p[2])
	}},
	// Defaults, e.g. (default "http://localhost:3003").
	{regexp.MustCompile(`\(default "[^"]*"\)`), func(p []string) string {
		return ui.RenderMuted(p[0])
	}},
}

// colorizedHelpFunc returns a Cobra help function that colors the default
// help text when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		if !ui.ShouldUseColor() || noColor {
			_ = cmd.Usage()
			return
		}

		orig := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		fmt.Fprint(orig, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, st := range helpStyles {
		s = st.re.ReplaceAllStringFunc(s, func(match string) string {
			return st.apply(st.re.FindStringSubmatch(match))
		})
	}
	return s
}
