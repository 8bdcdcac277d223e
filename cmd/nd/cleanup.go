package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Delete read notifications older than the retention window",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("older-than-days")
		if days < 0 {
			return fmt.Errorf("--older-than-days must not be negative")
		}
		res, err := notifyClient.Cleanup(context.Background(), days)
		if err != nil {
			return fmt.Errorf("running cleanup: %w", err)
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("Deleted %d read notifications created before %s", res.Deleted, res.Cutoff.Local().Format(timeLayout))
		if res.Archived > 0 {
			fmt.Printf(" (%d archived)", res.Archived)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Int("older-than-days", 0, "retention window in days (server default when unset)")
}
