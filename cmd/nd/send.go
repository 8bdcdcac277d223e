package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send",
	Short:   "Submit a notification for delivery",
	GroupID: "notifications",
	Example: `  nd send --owner owner-1 --type LOW_BATTERY --title "Battery low" --message "Collar at 5%"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := model.NewNotification{
			Type:     model.NotificationType(mustString(cmd, "type")),
			Priority: model.Priority(mustString(cmd, "priority")),
			OwnerID:  mustString(cmd, "owner"),
			PetID:    mustString(cmd, "pet-id"),
			PetName:  mustString(cmd, "pet-name"),
			CollarID: mustString(cmd, "collar"),
			Title:    mustString(cmd, "title"),
			Message:  mustString(cmd, "message"),
		}
		if meta, _ := cmd.Flags().GetStringToString("meta"); len(meta) > 0 {
			data, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("encoding metadata: %w", err)
			}
			in.Metadata = data
		}
		if cmd.Flags().Changed("max-retries") {
			n, _ := cmd.Flags().GetInt("max-retries")
			in.MaxRetries = &n
		}

		n, err := notifyClient.Send(context.Background(), &in)
		if err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		if jsonOutput {
			return printJSON(n)
		}
		printNotification(os.Stdout, n)
		return nil
	},
}

func init() {
	sendCmd.Flags().String("type", "", "notification type (GEOFENCE_EXIT, GEOFENCE_ENTRY, LOW_BATTERY, HEALTH_ALERT, DEVICE_OFFLINE, EMERGENCY)")
	sendCmd.Flags().String("priority", "", "priority (LOW, MEDIUM, HIGH, CRITICAL; default MEDIUM)")
	sendCmd.Flags().String("owner", "", "recipient owner id")
	sendCmd.Flags().String("pet-id", "", "pet id")
	sendCmd.Flags().String("pet-name", "", "pet name")
	sendCmd.Flags().String("collar", "", "collar id")
	sendCmd.Flags().String("title", "", "title")
	sendCmd.Flags().String("message", "", "message body")
	sendCmd.Flags().StringToString("meta", nil, "metadata key=value pairs")
	sendCmd.Flags().Int("max-retries", 0, "retry budget (server default when unset)")
	_ = sendCmd.MarkFlagRequired("type")
	_ = sendCmd.MarkFlagRequired("owner")
	_ = sendCmd.MarkFlagRequired("title")
	_ = sendCmd.MarkFlagRequired("message")
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
