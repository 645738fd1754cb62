package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/report"
	"github.com/sells-group/catchment-cli/internal/store"
)

var solvesCmd = &cobra.Command{
	Use:   "solves",
	Short: "Inspect stored solves",
	Long:  "Commands for listing stored solves and exporting their rings and stats.",
}

// -- solves list --

var solvesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored solves, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		solves, err := st.ListSolves(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "solves list")
		}

		if len(solves) == 0 {
			fmt.Fprintln(os.Stderr, "No solves found.")
			return nil
		}

		formatSolvesList(os.Stdout, solves)
		return nil
	},
}

// -- solves show --

var solvesShowCmd = &cobra.Command{
	Use:   "show <solve-id>",
	Short: "Write a stored solve's rings as GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		outPath, _ := cmd.Flags().GetString("out")
		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		return showSolve(ctx, st, args[0], out)
	},
}

// -- solves stats --

var solvesStatsCmd = &cobra.Command{
	Use:   "stats <solve-id>",
	Short: "Print the latest stats stored for a solve",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		formatName, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}

		rec, err := st.GetStats(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "solves stats")
		}
		return report.WriteStats(os.Stdout, format, &rec.Stats, "min")
	},
}

func showSolve(ctx context.Context, st store.Store, id string, out io.Writer) error {
	sv, err := st.GetSolve(ctx, id)
	if err != nil {
		return eris.Wrap(err, "solves show")
	}
	data, err := geo.MarshalRingsGeoJSON(sv.Rings)
	if err != nil {
		return err
	}
	_, err = out.Write(append(data, '\n'))
	return eris.Wrap(err, "solves show: write")
}

func init() {
	solvesListCmd.Flags().Int("limit", 20, "max number of solves to display")
	solvesShowCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	solvesStatsCmd.Flags().StringP("format", "f", "table", "output format: table, csv, json, xlsx")

	solvesCmd.AddCommand(solvesListCmd)
	solvesCmd.AddCommand(solvesShowCmd)
	solvesCmd.AddCommand(solvesStatsCmd)
	rootCmd.AddCommand(solvesCmd)
}

// formatSolvesList writes a tabular list of solves to out.
func formatSolvesList(out io.Writer, solves []store.SolveSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tORIGIN\tMODE\tBREAKS\tRINGS\tCREATED")
	for _, s := range solves {
		_, _ = fmt.Fprintf(w, "%s\t%.5f,%.5f\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.Origin.Lon, s.Origin.Lat,
			s.TravelMode,
			joinBreaks(s.Breaks),
			s.RingCount,
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func joinBreaks(breaks []float64) string {
	parts := make([]string, len(breaks))
	for i, b := range breaks {
		parts[i] = strconv.FormatFloat(b, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
