package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/alfredjeanlab/notifyd/internal/client"
	"github.com/alfredjeanlab/notifyd/internal/delivery"
	"github.com/alfredjeanlab/notifyd/internal/events"
	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/server"
	"github.com/alfredjeanlab/notifyd/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <user-id> | watch --events",
	Short: "Stream a user's notifications live, or follow lifecycle events",
	Long: `Opens a live stream for the user, making them present, and prints each
notification as it arrives. With --events, follows the status-change events
published on NATS instead.`,
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if followEvents, _ := cmd.Flags().GetBool("events"); followEvents {
			natsURL, _ := cmd.Flags().GetString("nats-url")
			if natsURL == "" {
				return fmt.Errorf("--events needs --nats-url or NOTIFY_NATS_URL")
			}
			return watchEvents(ctx, natsURL)
		}

		if len(args) != 1 {
			return fmt.Errorf("watch needs a user id")
		}
		ack, _ := cmd.Flags().GetBool("ack")
		return notifyClient.Watch(ctx, args[0], func(e client.StreamEvent) error {
			p, line, err := formatStreamEvent(e)
			if err != nil {
				return err
			}
			if jsonOutput {
				fmt.Printf("{\"event\":%q,\"data\":%s}\n", e.Event, e.Data)
			} else {
				fmt.Println(line)
			}
			if ack && p != nil {
				if err := notifyClient.MarkDelivered(ctx, p.ID); err != nil {
					fmt.Fprintf(os.Stderr, "Error acknowledging %s: %v\n", p.ID, err)
				}
			}
			return nil
		})
	},
}

// formatStreamEvent renders one stream event as a line of text. For
// notification events it also returns the decoded projection.
func formatStreamEvent(e client.StreamEvent) (*model.Projection, string, error) {
	switch e.Event {
	case delivery.EventNotification:
		var p model.Projection
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, "", fmt.Errorf("decoding notification: %w", err)
		}
		line := fmt.Sprintf("%s %s [%s] %s: %s",
			p.CreatedAt.Local().Format(timeLayout),
			ui.RenderAccent(p.ID),
			ui.RenderPriority(p.Priority),
			p.Title,
			p.Message,
		)
		return &p, line, nil
	case server.EventConnected:
		return nil, ui.RenderMuted("connected, waiting for notifications..."), nil
	}
	return nil, ui.RenderMuted(fmt.Sprintf("%s: %s", e.Event, e.Data)), nil
}

// watchEvents subscribes to every notification topic on NATS and prints
// each lifecycle event until ctx is done.
func watchEvents(ctx context.Context, natsURL string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.SubscribeBuffered(events.TopicAll, 256)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Println(string(data))
				continue
			}
			fmt.Println(formatStatusEvent(data))
		}
	}
}

// formatStatusEvent renders a lifecycle event payload. Payloads that are
// not status changes are printed as-is.
func formatStatusEvent(data []byte) string {
	var ev events.StatusChanged
	if err := json.Unmarshal(data, &ev); err != nil || ev.To == "" {
		return ui.RenderMuted(string(data))
	}
	line := fmt.Sprintf("%s %s %s -> %s owner=%s",
		ev.At.Local().Format(timeLayout),
		ui.RenderAccent(ev.ID),
		ev.From,
		ui.RenderStatus(ev.To),
		ev.OwnerID,
	)
	if ev.Reason != "" {
		line += " reason=" + ev.Reason
	}
	return line
}

func init() {
	watchCmd.Flags().Bool("ack", false, "acknowledge each notification as delivered")
	watchCmd.Flags().Bool("events", false, "follow lifecycle events on NATS instead of a user stream")
	watchCmd.Flags().String("nats-url", os.Getenv("NOTIFY_NATS_URL"), "NATS URL for --events")
}
