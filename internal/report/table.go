package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/legend"
	"github.com/sells-group/catchment-cli/internal/siting"
)

// StatsTable writes the summary statistics view: per group, one line per
// ring ("≤ 10 min (3 points)") followed by its members, then the smallest
// common break.
func StatsTable(w io.Writer, stats *catchment.Stats, unit string) error {
	ew := &errWriter{w: w}
	for _, g := range stats.Groups {
		ew.printf("%s\n", g.Name)
		for _, r := range g.Rings {
			ew.printf("  ≤ %s %s (%s)\n", formatBreak(r.Break), unit, plural(r.Count, "point"))
			for _, m := range r.Members {
				ew.printf("    • %s (ID: %v)\n", m.Name, m.ID)
			}
		}
		ew.printf("\n")
	}
	if stats.SmallestCommon != nil {
		ew.printf("Smallest break with at least one point from each group: %s %s\n", formatBreak(*stats.SmallestCommon), unit)
	} else {
		ew.printf("Not all groups have points within service areas\n")
	}
	return ew.err
}

// LegendTable writes one line per legend item.
func LegendTable(w io.Writer, items []legend.Item, unit string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BREAK\tCOLOR")
	for _, it := range items {
		fmt.Fprintf(tw, "%s %s\t%s\n", formatBreak(it.Break), unit, it.Color)
	}
	return eris.Wrap(tw.Flush(), "report: write legend")
}

// SitingTable writes committed facilities with their allocated demand.
func SitingTable(w io.Writer, res siting.Result) error {
	sum := siting.Summarize(res)
	scores := make(map[string]float64, len(res.Scored))
	for _, f := range res.Scored {
		scores[f.Name] = f.Score
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FACILITY\tTYPE\tSCORE\tALLOCATED\tWEIGHT")
	for i, fs := range sum.Facilities {
		f := res.Committed[i]
		score := "-"
		if f.Type == siting.TypeCandidate {
			score = fmt.Sprintf("%g", scores[f.Name])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\n", fs.Name, f.Type, score, fs.Count, fs.Weight)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%d\t%g\n", sum.TotalAllocations, sum.TotalWeight)
	return eris.Wrap(tw.Flush(), "report: write siting")
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
	if e.err != nil {
		e.err = eris.Wrap(e.err, "report: write table")
	}
}
