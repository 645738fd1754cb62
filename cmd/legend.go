package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/catchment-cli/internal/report"
)

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print ring legend colors",
	Long:  "Prints the opaque color of each ring as it appears with the translucent ring fills stacked on white.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rawBreaks, _ := cmd.Flags().GetString("breaks")
		asJSON, _ := cmd.Flags().GetBool("json")
		unit, _ := cmd.Flags().GetString("unit")

		breaks, err := solverBreaks(rawBreaks, 0, 0)
		if err != nil {
			return err
		}
		return writeLegend(os.Stdout, breaks, unit, asJSON)
	},
}

func writeLegend(w io.Writer, breaks []float64, unit string, asJSON bool) error {
	items := cfg.Legend.Compositor().Items(breaks)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	return report.LegendTable(w, items, unit)
}

func init() {
	legendCmd.Flags().String("breaks", "", "comma-separated break values (default from config)")
	legendCmd.Flags().String("unit", "min", "break unit label")
	legendCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(legendCmd)
}
