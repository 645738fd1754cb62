// Package siting picks which candidate facilities to open with a greedy
// demand-weighted score and allocates demand to the nearest open facility.
// It is an approximation, not a location-allocation solver.
package siting

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Defaults observed in the downtown walking-time scenario.
const (
	DefaultRadius = 0.02 // degrees, roughly 2km
	DefaultTopN   = 2
)

// FacilityType distinguishes candidate sites from facilities already open.
type FacilityType int

const (
	// TypeCandidate is a site that may be selected.
	TypeCandidate FacilityType = 0
	// TypeExisting is already committed and never re-scored.
	TypeExisting FacilityType = 1
)

func (t FacilityType) String() string {
	switch t {
	case TypeCandidate:
		return "candidate"
	case TypeExisting:
		return "existing"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Facility is a candidate or existing site.
type Facility struct {
	Name   string       `json:"name" yaml:"name"`
	Type   FacilityType `json:"type" yaml:"type"`
	Coords [2]float64   `json:"coords" yaml:"coords"`
	Score  float64      `json:"score" yaml:"-"`
}

// DemandPoint is a weighted location to be served.
type DemandPoint struct {
	Name   string     `json:"name" yaml:"name"`
	Weight float64    `json:"weight" yaml:"weight"`
	Coords [2]float64 `json:"coords" yaml:"coords"`
}

// Allocation assigns one demand point to a committed facility.
type Allocation struct {
	DemandName     string     `json:"demand_name"`
	DemandWeight   float64    `json:"demand_weight"`
	FacilityName   string     `json:"facility_name"`
	DemandCoords   [2]float64 `json:"demand_coords"`
	FacilityCoords [2]float64 `json:"facility_coords"`
	Distance       float64    `json:"distance"`
}

// Result is the outcome of Site.
type Result struct {
	Committed   []Facility   `json:"committed"`
	Allocations []Allocation `json:"allocations"`
	Scored      []Facility   `json:"scored"`
}

// Site scores every candidate by the total weight of demand strictly
// within radius, commits the topN highest (ties keep input order) after all
// existing facilities, and allocates each demand point to the closest
// committed facility. Distances are planar on the raw coordinates.
func Site(candidates, existing []Facility, demand []DemandPoint, radius float64, topN int) Result {
	scored := make([]Facility, len(candidates))
	for i, c := range candidates {
		c.Score = score(c, demand, radius)
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topN < 0 {
		topN = 0
	}
	if topN > len(scored) {
		topN = len(scored)
	}

	committed := make([]Facility, 0, len(existing)+topN)
	committed = append(committed, existing...)
	committed = append(committed, scored[:topN]...)

	return Result{
		Committed:   committed,
		Allocations: Allocate(committed, demand),
		Scored:      scored,
	}
}

// SiteAll splits facilities by type and runs Site.
func SiteAll(facilities []Facility, demand []DemandPoint, radius float64, topN int) Result {
	var candidates, existing []Facility
	for _, f := range facilities {
		if f.Type == TypeExisting {
			existing = append(existing, f)
		} else {
			candidates = append(candidates, f)
		}
	}
	return Site(candidates, existing, demand, radius, topN)
}

// Allocate assigns each demand point to the committed facility at the
// strictly smallest distance; the first facility wins exact ties.
func Allocate(committed []Facility, demand []DemandPoint) []Allocation {
	allocations := make([]Allocation, 0, len(demand))
	if len(committed) == 0 {
		return allocations
	}
	for _, d := range demand {
		best := -1
		var bestDist float64
		for i, f := range committed {
			dist := Distance(f.Coords, d.Coords)
			if best < 0 || dist < bestDist {
				best, bestDist = i, dist
			}
		}
		f := committed[best]
		allocations = append(allocations, Allocation{
			DemandName:     d.Name,
			DemandWeight:   d.Weight,
			FacilityName:   f.Name,
			DemandCoords:   d.Coords,
			FacilityCoords: f.Coords,
			Distance:       bestDist,
		})
	}
	return allocations
}

// Distance is the planar Euclidean distance between two coordinate pairs.
func Distance(a, b [2]float64) float64 {
	return xy.Distance(geom.Coord{a[0], a[1]}, geom.Coord{b[0], b[1]})
}

func score(c Facility, demand []DemandPoint, radius float64) float64 {
	var total float64
	for _, d := range demand {
		if Distance(c.Coords, d.Coords) < radius {
			total += d.Weight
		}
	}
	return total
}
