package upload

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/legend"
)

const pointsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"zeta": 1, "Store Name": "Downtown", "OBJECTID": 7},
     "geometry": {"type": "Point", "coordinates": [-122.33, 47.61]}},
    {"type": "Feature", "properties": {"label": "pair"},
     "geometry": {"type": "MultiPoint", "coordinates": [[1, 2], [3, 4]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	points, err := ParseGeoJSON([]byte(pointsJSON))
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, -122.33, points[0].Lon)
	assert.Equal(t, 47.61, points[0].Lat)
	assert.Equal(t, []string{"zeta", "Store Name", "OBJECTID"}, points[0].KeyOrder)
	assert.Equal(t, "Downtown", catchment.DisplayName(points[0], 0))
	assert.Equal(t, 7.0, catchment.DisplayID(points[0], 0))

	assert.Equal(t, 3.0, points[2].Lon)
	assert.Equal(t, "pair", points[1].Attributes["label"])
	assert.Equal(t, "pair", points[2].Attributes["label"])

	// MultiPoint members get independent attribute maps.
	points[1].Attributes["label"] = "changed"
	assert.Equal(t, "pair", points[2].Attributes["label"])
}

func TestParseGeoJSON_EmptyGeometries(t *testing.T) {
	data := `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "empty"}, "geometry": {"type": "Point", "coordinates": []}},
    {"type": "Feature", "properties": {"name": "none"}, "geometry": null},
    {"type": "Feature", "properties": {"name": "no members"}, "geometry": {"type": "MultiPoint", "coordinates": []}},
    {"type": "Feature", "properties": {"name": "kept"}, "geometry": {"type": "Point", "coordinates": [4, 5]}}
  ]
}`
	points, err := ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 4.0, points[0].Lon)
	assert.Equal(t, "kept", points[0].Attributes["name"])
}

func TestParseGeoJSON_Malformed(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"features": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse geojson")
}

func TestKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "null", raw: "null", want: nil},
		{name: "nested values", raw: `{"b": {"x": 1}, "a": [1, 2], "c": null}`, want: []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyOrder([]byte(tt.raw)))
		})
	}
}

func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "stores.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	w.SetFields([]shp.Field{
		shp.StringField("NAME", 25),
		shp.NumberField("OBJECTID", 10),
	})
	rows := []struct {
		x, y float64
		name string
		id   string
	}{
		{x: 1, y: 1, name: "First", id: "11"},
		{x: 2, y: 2, name: "", id: "12"},
	}
	for _, r := range rows {
		idx := w.Write(&shp.Point{X: r.x, Y: r.y})
		w.WriteAttribute(int(idx), 0, r.name)
		w.WriteAttribute(int(idx), 1, r.id)
	}
	w.Close()

	// go-shp v0.1.1 names the table "storesdbf"; the reader expects stores.dbf.
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	return path
}

func TestParseShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	points, err := ParseShapefile(path)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, 1.0, points[0].Lon)
	assert.Equal(t, "First", points[0].Attributes["NAME"])
	assert.Equal(t, int64(11), points[0].Attributes["OBJECTID"])
	assert.Equal(t, []string{"NAME", "OBJECTID"}, points[0].KeyOrder)

	// Blank NAME is dropped, so the display name falls back.
	_, ok := points[1].Attributes["NAME"]
	assert.False(t, ok)
	assert.Equal(t, "Point 12", catchment.DisplayName(points[1], 1))
}

func TestParseShapefile_Missing(t *testing.T) {
	_, err := ParseShapefile(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
}

func TestFieldValue(t *testing.T) {
	assert.Equal(t, int64(42), fieldValue('N', "42"))
	assert.Equal(t, 4.5, fieldValue('F', "4.5"))
	assert.Equal(t, "abc", fieldValue('N', "abc"))
	assert.Equal(t, "42", fieldValue('C', "42"))
}

func zipDir(t *testing.T, src, dest string) {
	t.Helper()
	out, err := os.Create(dest)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		w, err := zw.Create(e.Name())
		require.NoError(t, err)
		f, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		_, err = io.Copy(w, f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	require.NoError(t, zw.Close())
}

func TestParseFile_Zip(t *testing.T) {
	src := t.TempDir()
	writeShapefile(t, src)
	zipPath := filepath.Join(t.TempDir(), "stores.zip")
	zipDir(t, src, zipPath)

	points, err := ParseFile(zipPath)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestParseFile_ZipWithoutShp(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.txt"), []byte("hi"), 0o644))
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	zipDir(t, src, zipPath)

	_, err := ParseFile(zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file")
}

func TestParseFile_Unsupported(t *testing.T) {
	_, err := ParseFile("points.kml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "stores", GroupName("/tmp/data/stores.geojson"))
	assert.Equal(t, "a.b", GroupName("a.b.zip"))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "alpha.geojson")
	require.NoError(t, os.WriteFile(a, []byte(pointsJSON), 0o644))
	b := writeShapefile(t, dir)

	groups, err := LoadAll(context.Background(), []string{a, b}, legend.DefaultPalette)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "alpha", groups[0].Name)
	assert.Equal(t, legend.DefaultPalette[0], groups[0].Color)
	assert.Len(t, groups[0].Points, 3)
	assert.Equal(t, "stores", groups[1].Name)
	assert.Equal(t, legend.DefaultPalette[1], groups[1].Color)
	assert.False(t, groups[1].HasStats())
}

func TestLoadAll_Error(t *testing.T) {
	_, err := LoadAll(context.Background(), []string{filepath.Join(t.TempDir(), "missing.geojson")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load groups")
}

func TestLoadAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadAll(ctx, []string{"a.geojson"}, nil)
	require.Error(t, err)
}
