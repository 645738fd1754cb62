package report

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// StatsXLSX writes a workbook with a "Summary" sheet (one row per group,
// one count column per break) and a "Members" sheet.
func StatsXLSX(w io.Writer, stats *catchment.Stats) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	header := summary.AddRow()
	header.AddCell().SetString("Group")
	header.AddCell().SetString("Points")
	for _, b := range stats.Breaks {
		header.AddCell().SetString(fmt.Sprintf("≤ %s", formatBreak(b)))
	}
	for _, g := range stats.Groups {
		row := summary.AddRow()
		row.AddCell().SetString(g.Name)
		row.AddCell().SetInt(g.Points)
		for _, r := range g.Rings {
			row.AddCell().SetInt(r.Count)
		}
	}
	common := summary.AddRow()
	common.AddCell().SetString("Smallest common break")
	if stats.SmallestCommon != nil {
		common.AddCell().SetFloat(*stats.SmallestCommon)
	} else {
		common.AddCell().SetString("none")
	}

	members, err := f.AddSheet("Members")
	if err != nil {
		return eris.Wrap(err, "report: add members sheet")
	}
	mh := members.AddRow()
	for _, h := range []string{"Group", "Break", "Name", "ID"} {
		mh.AddCell().SetString(h)
	}
	for _, g := range stats.Groups {
		for _, r := range g.Rings {
			for _, m := range r.Members {
				row := members.AddRow()
				row.AddCell().SetString(g.Name)
				row.AddCell().SetFloat(r.Break)
				row.AddCell().SetString(m.Name)
				row.AddCell().SetString(fmt.Sprint(m.ID))
			}
		}
	}

	return eris.Wrap(f.Write(w), "report: write xlsx")
}
