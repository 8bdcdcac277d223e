package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printNotification(w io.Writer, n *model.Notification) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(n.ID))
	fmt.Fprintf(w, "Type:        %s\n", n.Type)
	fmt.Fprintf(w, "Priority:    %s\n", ui.RenderPriority(n.Priority))
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(n.Status))
	fmt.Fprintf(w, "Owner:       %s\n", n.OwnerID)
	if n.PetName != "" {
		fmt.Fprintf(w, "Pet:         %s\n", n.PetName)
	}
	if n.CollarID != "" {
		fmt.Fprintf(w, "Collar:      %s\n", n.CollarID)
	}
	fmt.Fprintf(w, "Title:       %s\n", n.Title)
	fmt.Fprintf(w, "Message:     %s\n", n.Message)
	fmt.Fprintf(w, "Retries:     %d/%d\n", n.RetryCount, n.MaxRetries)
	if n.FailureReason != "" {
		fmt.Fprintf(w, "Failure:     %s\n", n.FailureReason)
	}
	printTime(w, "Created At:  ", &n.CreatedAt)
	printTime(w, "Delivered:   ", n.DeliveredAt)
	printTime(w, "Read At:     ", n.ReadAt)
	printTime(w, "Failed At:   ", n.FailedAt)
}

func printTime(w io.Writer, label string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	fmt.Fprintf(w, "%s%s\n", label, t.Local().Format(timeLayout))
}

func printNotificationList(w io.Writer, list []*model.Notification, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTYPE\tTITLE\tCREATED")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID,
			ui.RenderStatus(n.Status),
			ui.RenderPriority(n.Priority),
			n.Type,
			truncate(n.Title, 50),
			n.CreatedAt.Local().Format(timeLayout),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d notifications (%d total)\n", len(list), total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
