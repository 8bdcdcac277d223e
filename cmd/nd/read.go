package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:     "read <id>...",
	Short:   "Mark notifications as read",
	GroupID: "notifications",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delivered, _ := cmd.Flags().GetBool("delivered")
		mark, verb := notifyClient.MarkRead, "read"
		if delivered {
			mark, verb = notifyClient.MarkDelivered, "delivered"
		}

		var failed int
		for _, id := range args {
			if err := mark(context.Background(), id); err != nil {
				fmt.Fprintf(os.Stderr, "Error marking %s %s: %v\n", id, verb, err)
				failed++
				continue
			}
			if !jsonOutput {
				fmt.Printf("Marked %s %s\n", id, verb)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d notifications not marked %s", failed, len(args), verb)
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:     "retry <id>",
	Short:   "Re-arm a failed notification and deliver it again",
	GroupID: "notifications",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := notifyClient.Retry(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("retrying notification: %w", err)
		}
		if jsonOutput {
			return printJSON(n)
		}
		printNotification(os.Stdout, n)
		return nil
	},
}

func init() {
	readCmd.Flags().Bool("delivered", false, "acknowledge receipt only (SENT -> DELIVERED)")
}
