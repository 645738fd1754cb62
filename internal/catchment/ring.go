// Package catchment assigns uploaded point groups to isochrone rings and
// computes per-group and cross-group containment statistics.
package catchment

import (
	"context"
	"sort"
)

// Coord is a longitude/latitude pair.
type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ContainsFunc reports whether a point lies inside a ring. It is supplied by
// the geometry layer; an error is treated as "not contained".
type ContainsFunc func(p Point) (bool, error)

// Ring is one travel-time polygon labeled with the break it represents.
type Ring struct {
	Break    float64      `json:"break"`
	Label    string       `json:"label,omitempty"`
	Contains ContainsFunc `json:"-"`
}

// RingSet holds the rings produced by a single solve, ordered by ascending
// break value. Rings are expected to be nested (each ring contains every
// ring with a smaller break); this is not verified.
type RingSet struct {
	rings []Ring
}

// NewRingSet copies rings and sorts them by ascending break. The sort is
// stable, so rings sharing a break keep their input order.
func NewRingSet(rings []Ring) *RingSet {
	sorted := make([]Ring, len(rings))
	copy(sorted, rings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Break < sorted[j].Break
	})
	return &RingSet{rings: sorted}
}

// Rings returns the rings in ascending break order.
func (rs *RingSet) Rings() []Ring {
	if rs == nil {
		return nil
	}
	return rs.rings
}

// Len returns the number of rings.
func (rs *RingSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rings)
}

// Breaks returns the distinct break values in ascending order.
func (rs *RingSet) Breaks() []float64 {
	if rs == nil {
		return nil
	}
	breaks := make([]float64, 0, len(rs.rings))
	for i, r := range rs.rings {
		if i > 0 && r.Break == rs.rings[i-1].Break {
			continue
		}
		breaks = append(breaks, r.Break)
	}
	return breaks
}

// Solver computes travel-time rings around an origin. Implementations call
// a hosted network-analysis service and either fail entirely or return a
// complete ring set.
type Solver interface {
	Solve(ctx context.Context, origin Coord, travelMode string, breaks []float64) (*RingSet, error)
}
