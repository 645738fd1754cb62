package geo

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// breakKeys are the feature properties that carry a ring's break value,
// in priority order.
var breakKeys = []string{"ToBreak", "breakValue"}

// RingPolygon is a solved ring with its geometry.
type RingPolygon struct {
	Break    float64
	Label    string
	Geometry geom.T
}

// Ring converts the polygon into a catchment ring.
func (rp RingPolygon) Ring() (catchment.Ring, error) {
	contains, err := Containment(rp.Geometry)
	if err != nil {
		return catchment.Ring{}, eris.Wrapf(err, "geo: ring %g", rp.Break)
	}
	return catchment.Ring{Break: rp.Break, Label: rp.Label, Contains: contains}, nil
}

// NewRingSet builds a catchment ring set from polygons.
func NewRingSet(polys []RingPolygon) (*catchment.RingSet, error) {
	rings := make([]catchment.Ring, 0, len(polys))
	for _, rp := range polys {
		r, err := rp.Ring()
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}
	return catchment.NewRingSet(rings), nil
}

// ParseRingsGeoJSON reads ring polygons from a GeoJSON FeatureCollection.
// A feature's break comes from its ToBreak or breakValue property, else
// fallback[i], else fallback[0]. Non-polygonal features and features with
// no resolvable break are skipped.
func ParseRingsGeoJSON(data []byte, fallback []float64) ([]RingPolygon, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geo: parse rings geojson")
	}

	var polys []RingPolygon
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			zap.L().Debug("geo: skipping non-polygon ring feature", zap.Int("index", i))
			continue
		}

		brk, ok := breakFromProperties(f.Properties)
		if !ok {
			switch {
			case i < len(fallback):
				brk, ok = fallback[i], true
			case len(fallback) > 0:
				brk, ok = fallback[0], true
			}
		}
		if !ok {
			zap.L().Warn("geo: ring feature has no break value", zap.Int("index", i))
			continue
		}

		label, _ := f.Properties["Name"].(string)
		polys = append(polys, RingPolygon{Break: brk, Label: label, Geometry: f.Geometry})
	}
	return polys, nil
}

// LoadRingsFile reads a GeoJSON ring file into a ring set. fallback labels
// features that carry no break attribute.
func LoadRingsFile(path string, fallback []float64) (*catchment.RingSet, []RingPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "geo: read rings %s", path)
	}
	polys, err := ParseRingsGeoJSON(data, fallback)
	if err != nil {
		return nil, nil, err
	}
	rs, err := NewRingSet(polys)
	if err != nil {
		return nil, nil, err
	}
	return rs, polys, nil
}

// MarshalRingsGeoJSON writes ring polygons as a FeatureCollection with a
// ToBreak property per feature.
func MarshalRingsGeoJSON(polys []RingPolygon) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(polys))}
	for _, rp := range polys {
		props := map[string]interface{}{"ToBreak": rp.Break}
		if rp.Label != "" {
			props["Name"] = rp.Label
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   rp.Geometry,
			Properties: props,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal rings geojson")
	}
	return data, nil
}

func breakFromProperties(props map[string]interface{}) (float64, bool) {
	for _, k := range breakKeys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
