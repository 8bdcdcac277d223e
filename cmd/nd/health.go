package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/client"
	"github.com/alfredjeanlab/notifyd/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the notifyd service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if addr, _ := cmd.Flags().GetString("grpc"); addr != "" {
			status, err := client.CheckGRPCHealth(ctx, addr, server.HealthService)
			if err != nil {
				return fmt.Errorf("checking gRPC health: %w", err)
			}
			if jsonOutput {
				return printJSON(map[string]string{"status": status})
			}
			fmt.Printf("gRPC health: %s\n", status)
			if status != "SERVING" {
				return fmt.Errorf("unhealthy: %s", status)
			}
			return nil
		}

		resp, err := notifyClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(resp); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s (%d users present, %d connections)\n",
				resp.Status, resp.PresentRecipients, resp.OpenConnections)
		}
		if resp.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", resp.Status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "probe the gRPC health service at this address instead")
}
