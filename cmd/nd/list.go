package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <owner-id>",
	Short:   "List an owner's notifications, newest first",
	GroupID: "notifications",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := notifyClient.ListByOwner(context.Background(), args[0], limit)
		if err != nil {
			return fmt.Errorf("listing notifications: %w", err)
		}
		if jsonOutput {
			return printJSON(resp.Notifications)
		}
		printNotificationList(os.Stdout, resp.Notifications, resp.Total)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show one notification",
	GroupID: "notifications",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := notifyClient.GetNotification(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting notification: %w", err)
		}
		if jsonOutput {
			return printJSON(n)
		}
		printNotification(os.Stdout, n)
		return nil
	},
}

var unreadCmd = &cobra.Command{
	Use:     "unread <owner-id>",
	Short:   "Count an owner's unread notifications",
	GroupID: "notifications",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := notifyClient.UnreadCount(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("counting unread: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"owner_id": args[0], "unread_count": n})
		}
		fmt.Printf("%d unread\n", n)
		return nil
	},
}

func init() {
	listCmd.Flags().Int("limit", 0, "maximum notifications to return (server default 50)")
}
