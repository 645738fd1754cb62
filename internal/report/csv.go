package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

var statsColumns = []string{"group", "color", "break", "count", "cumulative", "members"}

// StatsCSV writes one row per group and break. Members are joined as
// "name (id)" with "; ".
func StatsCSV(w io.Writer, stats *catchment.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsColumns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, g := range stats.Groups {
		cumulative := 0
		for _, r := range g.Rings {
			cumulative += r.Count
			names := make([]string, len(r.Members))
			for i, m := range r.Members {
				names[i] = fmt.Sprintf("%s (%v)", m.Name, m.ID)
			}
			row := []string{
				g.Name,
				g.Color,
				formatBreak(r.Break),
				strconv.Itoa(r.Count),
				strconv.Itoa(cumulative),
				strings.Join(names, "; "),
			}
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "report: write csv row")
			}
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
