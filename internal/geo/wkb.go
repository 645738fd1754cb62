package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID for all stored geometry.
const SRID = 4326

// EncodeEWKB converts a ring geometry to EWKB bytes with SRID 4326.
// Returns nil, nil for a nil geometry.
func EncodeEWKB(g geom.T) ([]byte, error) {
	switch t := g.(type) {
	case nil:
		return nil, nil
	case *geom.Polygon:
		g = t.SetSRID(SRID)
	case *geom.MultiPolygon:
		g = t.SetSRID(SRID)
	case *geom.Point:
		g = t.SetSRID(SRID)
	default:
		return nil, eris.Errorf("geo: unsupported geometry %T for EWKB", g)
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB bytes.
func DecodeEWKB(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, eris.New("geo: empty EWKB")
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	return g, nil
}
