// Package store persists solved ring sets and computed group statistics.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/geo"
)

// ErrNotFound is returned when a solve or stats record does not exist.
var ErrNotFound = eris.New("store: not found")

// Solve is a stored service area solve.
type Solve struct {
	ID         string            `json:"id"`
	Origin     catchment.Coord   `json:"origin"`
	TravelMode string            `json:"travel_mode"`
	Breaks     []float64         `json:"breaks"`
	Rings      []geo.RingPolygon `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SolveSummary is a solve without ring geometry.
type SolveSummary struct {
	ID         string          `json:"id"`
	Origin     catchment.Coord `json:"origin"`
	TravelMode string          `json:"travel_mode"`
	Breaks     []float64       `json:"breaks"`
	RingCount  int             `json:"ring_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StatsRecord is a stored Calculate result for a solve.
type StatsRecord struct {
	ID        string          `json:"id"`
	SolveID   string          `json:"solve_id"`
	Stats     catchment.Stats `json:"stats"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store defines persistence for solves and stats.
type Store interface {
	// SaveSolve inserts the solve and its rings, assigning ID and CreatedAt.
	SaveSolve(ctx context.Context, s *Solve) error
	GetSolve(ctx context.Context, id string) (*Solve, error)
	// ListSolves returns summaries newest first. limit <= 0 means no limit.
	ListSolves(ctx context.Context, limit int) ([]SolveSummary, error)

	SaveStats(ctx context.Context, solveID string, stats *catchment.Stats) (*StatsRecord, error)
	// GetStats returns the most recent stats saved for a solve.
	GetStats(ctx context.Context, solveID string) (*StatsRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a migrated store for driver "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "sqlite", "":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// RingSet builds a classifiable ring set from the stored geometry.
func (s *Solve) RingSet() (*catchment.RingSet, error) {
	return geo.NewRingSet(s.Rings)
}

var ringColumns = []string{"solve_id", "seq", "break", "label", "geom"}

// ringRows encodes rings as rows matching ringColumns.
func ringRows(solveID string, rings []geo.RingPolygon) ([][]any, error) {
	rows := make([][]any, 0, len(rings))
	for i, r := range rings {
		wkb, err := geo.EncodeEWKB(r.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode ring %d", i)
		}
		rows = append(rows, []any{solveID, i, r.Break, r.Label, wkb})
	}
	return rows, nil
}

func decodeRing(brk float64, label string, wkb []byte) (geo.RingPolygon, error) {
	g, err := geo.DecodeEWKB(wkb)
	if err != nil {
		return geo.RingPolygon{}, eris.Wrap(err, "store: decode ring")
	}
	return geo.RingPolygon{Break: brk, Label: label, Geometry: g}, nil
}

func encodeBreaks(breaks []float64) (string, error) {
	if breaks == nil {
		breaks = []float64{}
	}
	b, err := json.Marshal(breaks)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal breaks")
	}
	return string(b), nil
}

func decodeBreaks(s string) ([]float64, error) {
	var breaks []float64
	if err := json.Unmarshal([]byte(s), &breaks); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal breaks")
	}
	return breaks, nil
}
