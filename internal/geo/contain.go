// Package geo adapts go-geom polygons into ring containment predicates and
// converts ring geometry to and from GeoJSON and EWKB.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// Containment returns a predicate that tests points against a Polygon or
// MultiPolygon. Within a polygon every linear ring toggles inside/outside
// (even-odd), which matches shell-minus-holes for valid polygons and also
// handles multi-shell polygons from solvers that emit Esri ring lists.
// Boundary points count as inside.
func Containment(g geom.T) (catchment.ContainsFunc, error) {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{t}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	case nil:
		return nil, eris.New("geo: nil geometry")
	default:
		return nil, eris.Errorf("geo: unsupported ring geometry %T", g)
	}

	bounds := g.Bounds()
	return func(p catchment.Point) (bool, error) {
		if !finite(p.Lon) || !finite(p.Lat) {
			return false, eris.Errorf("geo: non-finite coordinate (%v, %v)", p.Lon, p.Lat)
		}
		c := geom.Coord{p.Lon, p.Lat}
		if !bounds.OverlapsPoint(geom.XY, c) {
			return false, nil
		}
		for _, poly := range polys {
			if polygonContains(poly, c) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func polygonContains(poly *geom.Polygon, c geom.Coord) bool {
	inside := false
	for i := 0; i < poly.NumLinearRings(); i++ {
		lr := poly.LinearRing(i)
		if xy.IsPointInRing(lr.Layout(), c, lr.FlatCoords()) {
			inside = !inside
		}
	}
	return inside
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
