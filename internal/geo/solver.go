package geo

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/pkg/arcgis"
)

// ServiceAreaClient solves service area polygons.
type ServiceAreaClient interface {
	SolveServiceArea(ctx context.Context, req arcgis.SolveRequest) ([]arcgis.ServiceArea, error)
}

// Solver adapts a service area client to catchment.Solver.
type Solver struct {
	Client ServiceAreaClient
}

// NewSolver wraps client.
func NewSolver(client ServiceAreaClient) *Solver {
	return &Solver{Client: client}
}

// SolvePolygons returns the solved rings with their geometry.
func (s *Solver) SolvePolygons(ctx context.Context, origin catchment.Coord, travelMode string, breaks []float64) ([]RingPolygon, error) {
	areas, err := s.Client.SolveServiceArea(ctx, arcgis.SolveRequest{
		Origin:     [2]float64{origin.Lon, origin.Lat},
		TravelMode: travelMode,
		Breaks:     breaks,
	})
	if err != nil {
		return nil, eris.Wrap(err, "geo: solve service area")
	}

	polys := make([]RingPolygon, 0, len(areas))
	for _, a := range areas {
		polys = append(polys, RingPolygon{Break: a.Break, Label: a.Name, Geometry: a.Geometry})
	}
	return polys, nil
}

// Solve implements catchment.Solver.
func (s *Solver) Solve(ctx context.Context, origin catchment.Coord, travelMode string, breaks []float64) (*catchment.RingSet, error) {
	polys, err := s.SolvePolygons(ctx, origin, travelMode, breaks)
	if err != nil {
		return nil, err
	}
	return NewRingSet(polys)
}
