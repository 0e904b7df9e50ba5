package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/address"
	"github.com/sells-group/locator-cli/internal/rules"
)

var parseCmd = &cobra.Command{
	Use:   "parse <address>",
	Short: "Parse an address into typed components",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		parser := address.NewParser(rules.MustLoad())
		parsed := parser.Parse(args[0])

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(parsed)
		}

		rows := []struct{ label, value string }{
			{"Normalized", parsed.Normalized},
			{"House number", parsed.HouseNumber},
			{"Pre-directional", parsed.PreDirectional},
			{"Street name", parsed.StreetName},
			{"Street type", parsed.StreetType},
			{"Post-directional", parsed.PostDirectional},
			{"Unit designator", parsed.UnitDesignator},
			{"Unit number", parsed.UnitNumber},
		}
		for _, r := range rows {
			if r.value == "" {
				continue
			}
			fmt.Printf("%-17s %s\n", r.label+":", r.value)
		}
		fmt.Printf("%-17s %d\n", "Confidence:", parsed.Confidence)
		fmt.Printf("%-17s %s\n", "Display:", parser.Display(parsed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("json", false, "Emit the parsed address as JSON")
}
