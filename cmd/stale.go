package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/staleness"
	"github.com/sells-group/locator-cli/pkg/geocode"
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Classify a stored coordinate as too generic or not",
	Long:  "Applies the configured centroid heuristic to a coordinate record, reporting whether it looks like a region-level fallback that should be re-geocoded.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		confidence, _ := cmd.Flags().GetInt("confidence")
		provider, _ := cmd.Flags().GetString("provider")
		retrieved, _ := cmd.Flags().GetString("retrieved")

		var retrievedAt time.Time
		if retrieved != "" {
			t, err := time.Parse(time.RFC3339, retrieved)
			if err != nil {
				return eris.Wrap(err, "stale: parse --retrieved")
			}
			retrievedAt = t
		}

		classifier := staleness.NewClassifier(staleness.Config{
			CentroidLat:          cfg.Staleness.CentroidLat,
			CentroidLon:          cfg.Staleness.CentroidLon,
			ThresholdDeg:         cfg.Staleness.ThresholdDeg,
			FreshWindow:          time.Duration(cfg.Staleness.FreshWindowMins) * time.Minute,
			MinTrustedConfidence: cfg.Staleness.MinConfidence,
		})

		rec := staleness.Record{
			Latitude:    lat,
			Longitude:   lon,
			Confidence:  confidence,
			Provider:    geocode.ProviderID(provider),
			RetrievedAt: retrievedAt,
		}
		if classifier.TooGeneric(rec) {
			fmt.Println("too generic: re-geocode recommended")
		} else {
			fmt.Println("ok")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(staleCmd)
	staleCmd.Flags().Float64("lat", 0, "Latitude of the stored coordinate")
	staleCmd.Flags().Float64("lon", 0, "Longitude of the stored coordinate")
	staleCmd.Flags().Int("confidence", 0, "Stored confidence score 0-100")
	staleCmd.Flags().String("provider", "", "Provider that produced the coordinate")
	staleCmd.Flags().String("retrieved", "", "RFC3339 retrieval timestamp")
	_ = staleCmd.MarkFlagRequired("lat")
	_ = staleCmd.MarkFlagRequired("lon")
}
