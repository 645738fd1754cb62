package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

func square(minX, minY, maxX, maxY float64) []geom.Coord {
	return []geom.Coord{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
}

func pt(lon, lat float64) catchment.Point {
	return catchment.Point{Lon: lon, Lat: lat}
}

func TestContainment_PolygonWithHole(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		square(0, 0, 10, 10),
		square(4, 4, 6, 6),
	})
	contains, err := Containment(poly)
	require.NoError(t, err)

	tests := []struct {
		name string
		p    catchment.Point
		want bool
	}{
		{name: "inside shell", p: pt(1, 1), want: true},
		{name: "inside hole", p: pt(5, 5), want: false},
		{name: "outside bounds", p: pt(20, 20), want: false},
		{name: "on shell edge", p: pt(0, 5), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := contains(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainment_MultiShellPolygon(t *testing.T) {
	// Disjoint shells in a single polygon, as solvers emit them.
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		square(0, 0, 1, 1),
		square(5, 5, 6, 6),
	})
	contains, err := Containment(poly)
	require.NoError(t, err)

	ok, err := contains(pt(5.5, 5.5))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = contains(pt(3, 3))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainment_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{square(0, 0, 1, 1)},
		{square(2, 2, 3, 3)},
	})
	contains, err := Containment(mp)
	require.NoError(t, err)

	ok, err := contains(pt(2.5, 2.5))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = contains(pt(1.5, 1.5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainment_Errors(t *testing.T) {
	_, err := Containment(nil)
	require.Error(t, err)

	_, err = Containment(geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{1, 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported ring geometry")

	contains, err := Containment(geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{square(0, 0, 1, 1)}))
	require.NoError(t, err)
	_, err = contains(pt(math.NaN(), 0))
	require.Error(t, err)
}

const ringsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ToBreak": 10, "Name": "0 - 10"},
     "geometry": {"type": "Polygon", "coordinates": [[[-2,-2],[2,-2],[2,2],[-2,2],[-2,-2]]]}},
    {"type": "Feature", "properties": {"breakValue": "5"},
     "geometry": {"type": "Polygon", "coordinates": [[[-1,-1],[1,-1],[1,1],[-1,1],[-1,-1]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[-3,-3],[3,-3],[3,3],[-3,3],[-3,-3]]]}},
    {"type": "Feature", "properties": {"ToBreak": 99},
     "geometry": {"type": "Point", "coordinates": [0, 0]}}
  ]
}`

func TestParseRingsGeoJSON(t *testing.T) {
	polys, err := ParseRingsGeoJSON([]byte(ringsJSON), nil)
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Equal(t, 10.0, polys[0].Break)
	assert.Equal(t, "0 - 10", polys[0].Label)
	assert.Equal(t, 5.0, polys[1].Break)

	rs, err := NewRingSet(polys)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 10}, rs.Breaks())

	r, ok := catchment.Classify(pt(1.5, 0), rs)
	require.True(t, ok)
	assert.Equal(t, 10.0, r.Break)

	r, ok = catchment.Classify(pt(0.5, 0), rs)
	require.True(t, ok)
	assert.Equal(t, 5.0, r.Break)
}

func TestParseRingsGeoJSON_Fallback(t *testing.T) {
	polys, err := ParseRingsGeoJSON([]byte(ringsJSON), []float64{1, 2, 15})
	require.NoError(t, err)
	require.Len(t, polys, 3)
	assert.Equal(t, 15.0, polys[2].Break)

	polys, err = ParseRingsGeoJSON([]byte(ringsJSON), []float64{7})
	require.NoError(t, err)
	require.Len(t, polys, 3)
	assert.Equal(t, 7.0, polys[2].Break)
}

func TestParseRingsGeoJSON_Malformed(t *testing.T) {
	_, err := ParseRingsGeoJSON([]byte(`{"type":`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rings geojson")
}

func TestRingsGeoJSON_RoundTrip(t *testing.T) {
	polys, err := ParseRingsGeoJSON([]byte(ringsJSON), nil)
	require.NoError(t, err)

	data, err := MarshalRingsGeoJSON(polys)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rings.geojson")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	rs, back, err := LoadRingsFile(path, nil)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, polys[0].Label, back[0].Label)
	assert.Equal(t, []float64{5, 10}, rs.Breaks())
}

func TestLoadRingsFile_Missing(t *testing.T) {
	_, _, err := LoadRingsFile(filepath.Join(t.TempDir(), "nope.geojson"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rings")
}

func TestEWKB_RoundTrip(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{square(-122.4, 47.5, -122.3, 47.6)})

	data, err := EncodeEWKB(poly)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := DecodeEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, SRID, g.SRID())
	back, ok := g.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, poly.FlatCoords(), back.FlatCoords())
}

func TestEWKB_Edges(t *testing.T) {
	data, err := EncodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = EncodeEWKB(geom.NewLineString(geom.XY))
	require.Error(t, err)

	_, err = DecodeEWKB(nil)
	require.Error(t, err)

	_, err = DecodeEWKB([]byte{0x01, 0x02})
	require.Error(t, err)
}
