package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:     "presence [user-id]",
	Short:   "Show who has a live connection",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 1 {
			p, err := notifyClient.GetPresence(ctx, args[0])
			if err != nil {
				return fmt.Errorf("getting presence: %w", err)
			}
			if jsonOutput {
				return printJSON(p)
			}
			if p.Present {
				fmt.Printf("%s is present (%d connections)\n", p.UserID, p.Connections)
			} else {
				fmt.Printf("%s is not connected\n", p.UserID)
			}
			return nil
		}

		list, err := notifyClient.ListPresence(ctx)
		if err != nil {
			return fmt.Errorf("listing presence: %w", err)
		}
		if jsonOutput {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tCONNECTIONS\tSINCE")
		for _, e := range list.Recipients {
			fmt.Fprintf(w, "%s\t%d\t%s\n", e.Recipient, e.Connections, e.Since.Local().Format(timeLayout))
		}
		w.Flush()
		fmt.Printf("\n%d users, %d connections\n", list.Total, list.Connections)
		return nil
	},
}
