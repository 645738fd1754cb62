// Package report renders group statistics, legends and siting results as
// text tables, CSV, JSON and XLSX.
package report

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// Format is an output format name.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a format name. Empty selects FormatTable.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// WriteStats renders stats in the given format. unit labels break values
// in the text table (for example "min").
func WriteStats(w io.Writer, format Format, stats *catchment.Stats, unit string) error {
	if stats == nil {
		return eris.New("report: nil stats")
	}
	switch format {
	case FormatTable, "":
		return StatsTable(w, stats, unit)
	case FormatCSV:
		return StatsCSV(w, stats)
	case FormatJSON:
		return writeJSON(w, stats)
	case FormatXLSX:
		return StatsXLSX(w, stats)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func formatBreak(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

func plural(n int, word string) string {
	if n == 1 {
		return strconv.Itoa(n) + " " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
