package arcgis

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// esriError is the error envelope ArcGIS REST returns with HTTP 200.
type esriError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

type esriPolygon struct {
	Rings [][][]float64 `json:"rings"`
}

type esriFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *esriPolygon   `json:"geometry"`
}

type solveResponse struct {
	SAPolygons *struct {
		Features []esriFeature `json:"features"`
	} `json:"saPolygons"`
	Error *esriError `json:"error"`
}

type serviceDescription struct {
	SupportedTravelModes []TravelMode `json:"supportedTravelModes"`
	Error                *esriError   `json:"error"`
}

// TravelMode is one of the solver's supported travel modes. Raw holds the
// full JSON object, which is what the solve request expects.
type TravelMode struct {
	Name    string
	AltName string
	Raw     json.RawMessage
}

// UnmarshalJSON keeps the raw object alongside the names.
func (m *TravelMode) UnmarshalJSON(data []byte) error {
	var names struct {
		Name    string `json:"name"`
		AltName string `json:"altName"`
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	m.Name = names.Name
	m.AltName = names.AltName
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// toPolygon puts every Esri ring into one polygon. Esri rings mix outer
// rings and holes, so containment must use the even-odd rule.
func (p *esriPolygon) toPolygon() (*geom.Polygon, error) {
	if p == nil || len(p.Rings) == 0 {
		return nil, eris.New("arcgis: polygon has no rings")
	}
	ends := make([]int, 0, len(p.Rings))
	var flat []float64
	for i, ring := range p.Rings {
		if len(ring) < 4 {
			return nil, eris.Errorf("arcgis: ring %d has %d points", i, len(ring))
		}
		for _, c := range ring {
			if len(c) < 2 {
				return nil, eris.Errorf("arcgis: ring %d has a short coordinate", i)
			}
			flat = append(flat, c[0], c[1])
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends), nil
}

// breakValue returns the feature's break: ToBreak, else breakValue, else
// fallback[i], else fallback[0].
func breakValue(attrs map[string]any, i int, fallback []float64) (float64, bool) {
	for _, k := range []string{"ToBreak", "breakValue"} {
		if f, ok := number(attrs[k]); ok {
			return f, true
		}
	}
	if i < len(fallback) {
		return fallback[i], true
	}
	if len(fallback) > 0 {
		return fallback[0], true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
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
