package upload

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// rawCollection mirrors the feature list so property key order can be
// recovered; geojson.Feature decodes properties into an unordered map.
type rawCollection struct {
	Features []struct {
		Properties json.RawMessage `json:"properties"`
	} `json:"features"`
}

// ParseGeoJSON reads points from a GeoJSON FeatureCollection. Point features
// yield one point each; MultiPoint features yield one point per coordinate,
// all sharing the feature's properties. Other geometry types are skipped.
func ParseGeoJSON(data []byte) ([]catchment.Point, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "upload: parse geojson")
	}

	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "upload: parse geojson properties")
	}

	var points []catchment.Point
	skipped := 0
	for i, f := range fc.Features {
		var order []string
		if i < len(raw.Features) {
			order = keyOrder(raw.Features[i].Properties)
		}

		switch g := f.Geometry.(type) {
		case *geom.Point:
			if g.Empty() {
				skipped++
				continue
			}
			points = append(points, newPoint(g.X(), g.Y(), f.Properties, order))
		case *geom.MultiPoint:
			for j := 0; j < g.NumPoints(); j++ {
				p := g.Point(j)
				if p.Empty() {
					continue
				}
				points = append(points, newPoint(p.X(), p.Y(), f.Properties, order))
			}
		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("upload: skipped non-point features", zap.Int("skipped", skipped))
	}
	return points, nil
}

func newPoint(lon, lat float64, props map[string]interface{}, order []string) catchment.Point {
	attrs := make(map[string]any, len(props))
	for k, v := range props {
		attrs[k] = v
	}
	return catchment.Point{Lon: lon, Lat: lat, Attributes: attrs, KeyOrder: order}
}

// keyOrder returns the top-level keys of a JSON object in document order.
func keyOrder(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}
