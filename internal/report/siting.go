package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/siting"
)

// SitingOutput is the JSON shape of a siting run.
type SitingOutput struct {
	Result  siting.Result  `json:"result"`
	Summary siting.Summary `json:"summary"`
}

// WriteSiting renders a siting result. CSV lists allocations.
func WriteSiting(w io.Writer, format Format, res siting.Result) error {
	switch format {
	case FormatTable, "":
		return SitingTable(w, res)
	case FormatJSON:
		return writeJSON(w, SitingOutput{Result: res, Summary: siting.Summarize(res)})
	case FormatCSV:
		return allocationsCSV(w, res.Allocations)
	default:
		return eris.Errorf("report: format %q not supported for siting", format)
	}
}

func allocationsCSV(w io.Writer, allocs []siting.Allocation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"demand", "weight", "facility", "distance"}); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, a := range allocs {
		if err := cw.Write([]string{
			a.DemandName,
			strconv.FormatFloat(a.DemandWeight, 'f', -1, 64),
			a.FacilityName,
			strconv.FormatFloat(a.Distance, 'f', 6, 64),
		}); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
