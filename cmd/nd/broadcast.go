package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var broadcastCmd = &cobra.Command{
	Use:     "broadcast <event> [json-data]",
	Short:   "Push a transient event to every open stream",
	GroupID: "system",
	Example: `  nd broadcast maintenance '{"message":"Tracking paused for 5 minutes"}'`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data any = map[string]any{}
		if len(args) == 2 {
			raw := json.RawMessage(args[1])
			if !json.Valid(raw) {
				return fmt.Errorf("json-data is not valid JSON")
			}
			data = raw
		}

		resp, err := notifyClient.Broadcast(context.Background(), args[0], data)
		if err != nil {
			return fmt.Errorf("broadcasting: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Printf("Broadcast %s: %s (%d/%d connections)\n", resp.Event, resp.Outcome, resp.Succeeded, resp.Attempted)
		return nil
	},
}
