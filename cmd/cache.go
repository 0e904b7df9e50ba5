package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the geocode result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and age range",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		s, err := openStore(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}

		fmt.Printf("%-20s %10d\n", "Total entries", stats.TotalEntries)
		for provider, n := range stats.PerProvider {
			fmt.Printf("%-20s %10d\n", "  "+provider, n)
		}
		if stats.TotalEntries > 0 {
			fmt.Printf("%-20s %s\n", "Oldest", stats.Oldest.Format(time.RFC3339))
			fmt.Printf("%-20s %s\n", "Newest", stats.Newest.Format(time.RFC3339))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cache entries by age or provider",
	Long:  "Deletes cached geocode results matching the given filters. With no filters every entry is removed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		provider, _ := cmd.Flags().GetString("provider")

		s, err := openStore(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Clear(ctx, store.ClearFilter{OlderThan: olderThan, Provider: provider})
		if err != nil {
			return eris.Wrap(err, "cache clear")
		}

		zap.L().Info("cache cleared",
			zap.Int("deleted", n),
			zap.Duration("older_than", olderThan),
			zap.String("provider", provider),
		)
		fmt.Printf("Deleted %d entries\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheClearCmd.Flags().Duration("older-than", 0, "Only delete entries retrieved longer ago than this (e.g. 720h)")
	cacheClearCmd.Flags().String("provider", "", "Only delete entries from this provider")
}
