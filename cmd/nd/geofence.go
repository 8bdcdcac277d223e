package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/spf13/cobra"
)

var geofenceCmd = &cobra.Command{
	Use:     "geofence <collar-id> <EXIT|ENTRY>",
	Short:   "Report a geofence crossing for a collar",
	GroupID: "notifications",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		alert := model.GeofenceAlert{
			CollarID:     args[0],
			Action:       model.GeofenceAction(strings.ToUpper(args[1])),
			GeofenceID:   mustString(cmd, "geofence-id"),
			GeofenceName: mustString(cmd, "name"),
			Location:     model.Location{Latitude: lat, Longitude: lon},
		}
		if cmd.Flags().Changed("distance") {
			d, _ := cmd.Flags().GetFloat64("distance")
			alert.Distance = &d
		}

		n, err := notifyClient.GeofenceAlert(context.Background(), &alert)
		if err != nil {
			return fmt.Errorf("reporting geofence alert: %w", err)
		}
		if jsonOutput {
			return printJSON(n)
		}
		printNotification(os.Stdout, n)
		return nil
	},
}

func init() {
	geofenceCmd.Flags().String("geofence-id", "", "geofence id")
	geofenceCmd.Flags().String("name", "", "geofence name")
	geofenceCmd.Flags().Float64("lat", 0, "latitude of the crossing")
	geofenceCmd.Flags().Float64("lon", 0, "longitude of the crossing")
	geofenceCmd.Flags().Float64("distance", 0, "distance from the zone in meters")
	_ = geofenceCmd.MarkFlagRequired("geofence-id")
	_ = geofenceCmd.MarkFlagRequired("name")
}
