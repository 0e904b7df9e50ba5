package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode [address]",
	Short: "Resolve an address to coordinates",
	Long:  "Resolves a free-form address through the configured providers in priority order, serving repeat lookups from the cache. With --file, processes one address per line and stops cleanly on interrupt.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		region, _ := cmd.Flags().GetString("region")
		asJSON, _ := cmd.Flags().GetBool("json")

		if file == "" && len(args) == 0 {
			return eris.New("geocode: an address argument or --file is required")
		}
		if file != "" && len(args) > 0 {
			return eris.New("geocode: address argument and --file are mutually exclusive")
		}

		orch, cleanup, err := buildOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		var callOpts []geocode.CallOption
		if noCache {
			callOpts = append(callOpts, geocode.WithoutCache())
		}
		if region != "" {
			callOpts = append(callOpts, geocode.WithRegionBias(region))
		}

		if file == "" {
			cand, err := orch.Geocode(ctx, args[0], callOpts...)
			if err != nil {
				return err
			}
			return printCandidate(args[0], cand, asJSON)
		}

		addrs, err := readAddressFile(file)
		if err != nil {
			return err
		}
		zap.L().Info("geocoding batch", zap.Int("addresses", len(addrs)))

		results, batchErr := orch.BatchGeocode(ctx, addrs,
			func() bool { return ctx.Err() == nil }, callOpts...)
		for i := range results {
			if err := printCandidate(addrs[i], &results[i], asJSON); err != nil {
				return err
			}
		}
		if batchErr != nil {
			return batchErr
		}
		if len(results) < len(addrs) {
			zap.L().Warn("batch interrupted",
				zap.Int("processed", len(results)),
				zap.Int("remaining", len(addrs)-len(results)),
			)
		}
		return nil
	},
}

func readAddressFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: open %s", path)
	}
	defer f.Close()

	var addrs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "geocode: read %s", path)
	}
	return addrs, nil
}

func printCandidate(addr string, cand *geocode.Candidate, asJSON bool) error {
	if asJSON {
		out := struct {
			Address string `json:"address"`
			*geocode.Candidate
		}{addr, cand}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	if !cand.Matched {
		fmt.Printf("%-40s  not found\n", addr)
		return nil
	}
	fmt.Printf("%-40s  %11.6f %11.6f  %-10s  conf %3d\n",
		addr, cand.Latitude, cand.Longitude, cand.Provider, cand.Confidence)
	return nil
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.Flags().String("file", "", "Geocode one address per line from this file")
	geocodeCmd.Flags().Bool("no-cache", false, "Bypass the result cache for this call")
	geocodeCmd.Flags().String("region", "", "Two-letter region code to bias results toward")
	geocodeCmd.Flags().Bool("json", false, "Emit one JSON object per address")
}
