package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/legend"
	"github.com/sells-group/catchment-cli/internal/report"
	"github.com/sells-group/catchment-cli/internal/store"
	"github.com/sells-group/catchment-cli/pkg/arcgis"
)

// useTestConfig installs a config with the documented defaults.
func useTestConfig(t *testing.T) {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "cmd.db")
	c.Server.Port = 8080
	c.Server.CORSOrigins = []string{"*"}
	c.Solver.URL = arcgis.DefaultServiceURL
	c.Solver.TravelMode = arcgis.DefaultTravelMode
	c.Solver.NumBreaks = 3
	c.Solver.BreakSize = 5
	c.Solver.MinBreak = 1
	c.Solver.MaxBreak = 30
	c.Solver.MaxAttempts = 3
	c.Solver.RatePerSec = 5
	c.Legend.Palette = []string(legend.DefaultPalette)
	c.Siting.Radius = 0.02
	c.Siting.TopN = 2

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

type fakeSolver struct {
	err error
}

func (f *fakeSolver) SolvePolygons(_ context.Context, _ catchment.Coord, _ string, breaks []float64) ([]geo.RingPolygon, error) {
	if f.err != nil {
		return nil, f.err
	}
	polys := make([]geo.RingPolygon, 0, len(breaks))
	for i, b := range breaks {
		half := float64(i + 1)
		polys = append(polys, geo.RingPolygon{
			Break: b,
			Label: fmt.Sprintf("%g min", b),
			Geometry: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
				{-half, -half}, {half, -half}, {half, half}, {-half, half}, {-half, -half},
			}}),
		})
	}
	return polys, nil
}

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func writePoints(t *testing.T, dir, name string, coords ...[2]float64) string {
	t.Helper()
	var feats []string
	for i, c := range coords {
		feats = append(feats, fmt.Sprintf(
			`{"type":"Feature","properties":{"Name":"%s-%d"},"geometry":{"type":"Point","coordinates":[%g,%g]}}`,
			name, i, c[0], c[1]))
	}
	path := filepath.Join(dir, name+".geojson")
	body := `{"type":"FeatureCollection","features":[` + strings.Join(feats, ",") + `]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSolverBreaks(t *testing.T) {
	useTestConfig(t)

	tests := []struct {
		name    string
		raw     string
		num     int
		size    float64
		want    []float64
		wantErr bool
	}{
		{name: "config default", want: []float64{5, 10, 15}},
		{name: "explicit", raw: "3,6", want: []float64{3, 6}},
		{name: "schedule", num: 2, size: 10, want: []float64{10, 20}},
		{name: "clamped size", num: 1, size: 0.25, want: []float64{1}},
		{name: "invalid", raw: "abc", wantErr: true},
		{name: "only commas", raw: ",,", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := solverBreaks(tt.raw, tt.num, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunSolveThenStats(t *testing.T) {
	useTestConfig(t)
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	var rings, msg bytes.Buffer
	opts := solveOptions{Origin: catchment.Coord{Lon: 0, Lat: 0}, TravelMode: "Driving Time", Breaks: []float64{5, 10, 15}}
	require.NoError(t, runSolve(ctx, &fakeSolver{}, st, opts, &rings, &msg))
	assert.Contains(t, msg.String(), "3 rings")

	polys, err := geo.ParseRingsGeoJSON(rings.Bytes(), nil)
	require.NoError(t, err)
	assert.Len(t, polys, 3)

	solves, err := st.ListSolves(ctx, 0)
	require.NoError(t, err)
	require.Len(t, solves, 1)
	id := solves[0].ID

	// Ring file path.
	ringsPath := filepath.Join(dir, "rings.geojson")
	require.NoError(t, os.WriteFile(ringsPath, rings.Bytes(), 0o644))
	a := writePoints(t, dir, "stores", [2]float64{0.5, 0.5}, [2]float64{2.5, 0}, [2]float64{50, 50})
	b := writePoints(t, dir, "depots", [2]float64{1.5, 1.5})

	var out bytes.Buffer
	require.NoError(t, runStats(ctx, nil, statsOptions{
		RingsPath: ringsPath,
		Points:    []string{a, b},
		Format:    report.FormatTable,
		Unit:      "min",
	}, &out))
	table := out.String()
	assert.Contains(t, table, "stores")
	assert.Contains(t, table, "depots")
	assert.Contains(t, table, "stores-0")
	assert.Contains(t, table, "Smallest break with at least one point from each group: 10")

	// Stored solve path, saved stats.
	out.Reset()
	require.NoError(t, runStats(ctx, st, statsOptions{
		SolveID: id,
		Points:  []string{a, b},
		Format:  report.FormatJSON,
		Save:    true,
	}, &out))
	var stats catchment.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	require.Len(t, stats.Groups, 2)
	assert.Equal(t, legend.DefaultPalette[1], stats.Groups[1].Color)
	require.NotNil(t, stats.SmallestCommon)
	assert.Equal(t, 10.0, *stats.SmallestCommon)

	rec, err := st.GetStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stats.Breaks, rec.Stats.Breaks)

	var shown bytes.Buffer
	require.NoError(t, showSolve(ctx, st, id, &shown))
	assert.Contains(t, shown.String(), `"FeatureCollection"`)
}

func TestRunSolve_Errors(t *testing.T) {
	useTestConfig(t)
	var out, msg bytes.Buffer

	err := runSolve(context.Background(), &fakeSolver{err: errors.New("no route")}, nil, solveOptions{Breaks: []float64{5}}, &out, &msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
	assert.Empty(t, out.String())

	require.NoError(t, runSolve(context.Background(), &fakeSolver{}, nil, solveOptions{Breaks: []float64{5}}, &out, &msg))
	assert.Contains(t, msg.String(), "(not stored)")
}

func TestRunStats_Errors(t *testing.T) {
	useTestConfig(t)
	st := openTestStore(t)
	dir := t.TempDir()
	pts := writePoints(t, dir, "a", [2]float64{0, 0})

	err := runStats(context.Background(), st, statsOptions{SolveID: "missing", Points: []string{pts}}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = runStats(context.Background(), nil, statsOptions{RingsPath: filepath.Join(dir, "none.geojson"), Points: []string{pts}}, &bytes.Buffer{})
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.geojson")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	err = runStats(context.Background(), nil, statsOptions{RingsPath: empty, Points: []string{pts}}, &bytes.Buffer{})
	require.ErrorIs(t, err, catchment.ErrNoRings)
}

func TestWriteLegend(t *testing.T) {
	useTestConfig(t)

	var buf bytes.Buffer
	require.NoError(t, writeLegend(&buf, []float64{5, 10, 15}, "min", false))
	assert.Contains(t, buf.String(), "BREAK")
	assert.Contains(t, buf.String(), "15 min")
	assert.Contains(t, buf.String(), "rgb(255, 191, 191)")

	buf.Reset()
	require.NoError(t, writeLegend(&buf, []float64{10, 5}, "min", true))
	var items []legend.Item
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, 5.0, items[0].Break)
}

func TestRunSite(t *testing.T) {
	useTestConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runSite(siteOptions{Format: report.FormatTable}, &buf))
	assert.Contains(t, buf.String(), "Existing Location")
	assert.Contains(t, buf.String(), "Candidate 1")
	assert.Contains(t, buf.String(), "TOTAL")

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
facilities:
  - {name: west, type: 0, coords: [-1, 0]}
  - {name: east, type: 0, coords: [1, 0]}
demand:
  - {name: d1, weight: 1, coords: [1.1, 0]}
  - {name: d2, weight: 2, coords: [0.9, 0]}
`), 0o644))

	buf.Reset()
	require.NoError(t, runSite(siteOptions{Path: path, Radius: 0.5, TopN: 1, TopNSet: true, Format: report.FormatJSON}, &buf))
	var out report.SitingOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Result.Committed, 1)
	assert.Equal(t, "east", out.Result.Committed[0].Name)
	assert.Equal(t, 2, out.Summary.TotalAllocations)

	// An explicit zero commits nothing rather than falling back to config.
	buf.Reset()
	require.NoError(t, runSite(siteOptions{Path: path, Radius: 0.5, TopN: 0, TopNSet: true, Format: report.FormatJSON}, &buf))
	out = report.SitingOutput{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Empty(t, out.Result.Committed)
	assert.Empty(t, out.Result.Allocations)

	err := runSite(siteOptions{Path: filepath.Join(t.TempDir(), "missing.yaml")}, &buf)
	require.Error(t, err)
}

func TestFormatSolvesList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	solves := []store.SolveSummary{{
		ID:         "abc12345-6789-0000-0000-000000000000",
		Origin:     catchment.Coord{Lon: -122.33, Lat: 47.61},
		TravelMode: "Driving Time",
		Breaks:     []float64{5, 10, 15},
		RingCount:  3,
		CreatedAt:  now,
	}}

	var buf bytes.Buffer
	formatSolvesList(&buf, solves)
	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "abc12345-6789-0000-0000-000000000000")
	assert.Contains(t, output, "-122.33000,47.61000")
	assert.Contains(t, output, "5,10,15")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestNewServeHandler(t *testing.T) {
	useTestConfig(t)
	st := openTestStore(t)

	h, err := newServeHandler(&fakeSolver{}, st)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOpenOutput(t *testing.T) {
	w, err := openOutput("")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "out.txt")
	w, err = openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
