package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/legend"
	"github.com/sells-group/catchment-cli/internal/report"
	"github.com/sells-group/catchment-cli/internal/store"
	"github.com/sells-group/catchment-cli/internal/upload"
)

type statsOptions struct {
	RingsPath string
	SolveID   string
	Breaks    []float64
	Points    []string
	Format    report.Format
	Unit      string
	Save      bool
}

var statsCmd = &cobra.Command{
	Use:   "stats <points-file>...",
	Short: "Count point groups per drive-time ring",
	Long: "Loads each points file (GeoJSON, shapefile or zipped shapefile) as a group, classifies every point into the smallest " +
		"ring containing it, and reports per-ring counts, members and the smallest break reached by all groups.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		ringsPath, _ := cmd.Flags().GetString("rings")
		solveID, _ := cmd.Flags().GetString("solve-id")
		rawBreaks, _ := cmd.Flags().GetString("breaks")
		formatName, _ := cmd.Flags().GetString("format")
		unit, _ := cmd.Flags().GetString("unit")
		outPath, _ := cmd.Flags().GetString("out")
		save, _ := cmd.Flags().GetBool("save")

		if (ringsPath == "") == (solveID == "") {
			return eris.New("stats: exactly one of --rings or --solve-id is required")
		}
		if save && solveID == "" {
			return eris.New("stats: --save requires --solve-id")
		}
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		breaks, err := solverBreaks(rawBreaks, 0, 0)
		if err != nil {
			return err
		}

		var st store.Store
		if solveID != "" {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		return runStats(ctx, st, statsOptions{
			RingsPath: ringsPath,
			SolveID:   solveID,
			Breaks:    breaks,
			Points:    args,
			Format:    format,
			Unit:      unit,
			Save:      save,
		}, out)
	},
}

// runStats loads rings and point groups, calculates, and writes the report.
func runStats(ctx context.Context, st store.Store, opts statsOptions, out io.Writer) error {
	log := zap.L().With(zap.String("command", "stats"))

	rings, err := loadRings(ctx, st, opts)
	if err != nil {
		return err
	}

	groups, err := upload.LoadAll(ctx, opts.Points, legend.Palette(cfg.Legend.Palette))
	if err != nil {
		return err
	}

	session := catchment.NewSession()
	session.SetRings(rings)
	for _, g := range groups {
		session.AddGroup(g)
	}

	stats, err := session.Calculate()
	if err != nil {
		return err
	}
	log.Info("calculated group stats",
		zap.Int("groups", len(stats.Groups)),
		zap.Float64s("breaks", stats.Breaks),
		zap.Bool("common_break", stats.SmallestCommon != nil),
	)

	if opts.Save {
		rec, err := st.SaveStats(ctx, opts.SolveID, stats)
		if err != nil {
			return eris.Wrap(err, "stats: save")
		}
		fmt.Fprintf(os.Stderr, "Saved stats %s for solve %s\n", rec.ID, opts.SolveID)
	}

	return report.WriteStats(out, opts.Format, stats, opts.Unit)
}

func loadRings(ctx context.Context, st store.Store, opts statsOptions) (*catchment.RingSet, error) {
	if opts.SolveID != "" {
		sv, err := st.GetSolve(ctx, opts.SolveID)
		if err != nil {
			return nil, eris.Wrap(err, "stats: load solve")
		}
		return sv.RingSet()
	}
	rings, _, err := geo.LoadRingsFile(opts.RingsPath, opts.Breaks)
	return rings, err
}

func init() {
	statsCmd.Flags().String("rings", "", "rings GeoJSON file (from `catchment solve -o`)")
	statsCmd.Flags().String("solve-id", "", "use the rings of a stored solve")
	statsCmd.Flags().String("breaks", "", "break values for ring features without a break attribute")
	statsCmd.Flags().StringP("format", "f", "table", "output format: table, csv, json, xlsx")
	statsCmd.Flags().String("unit", "min", "break unit label for the table format")
	statsCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	statsCmd.Flags().Bool("save", false, "store the stats against --solve-id")
	rootCmd.AddCommand(statsCmd)
}
