package main

import (
	"os"

	"github.com/alfredjeanlab/notifyd/internal/client"
	"github.com/alfredjeanlab/notifyd/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	jsonOutput bool
	noColor    bool

	notifyClient client.NotifyClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("NOTIFY_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:3003"
}

var rootCmd = &cobra.Command{
	Use:           "nd <command>",
	Short:         "CLI for the notifyd alert delivery service",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		notifyClient = client.NewHTTPClient(httpURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if notifyClient != nil {
			notifyClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "notifyd HTTP URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "notifications", Title: "Notifications:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Notifications
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(geofenceCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(unreadCmd)

	// Views
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
