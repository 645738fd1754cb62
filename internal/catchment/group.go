package catchment

// Point is a single uploaded location with free-form attributes. KeyOrder
// optionally records the attribute key order of the source file.
type Point struct {
	Lon        float64        `json:"lon"`
	Lat        float64        `json:"lat"`
	Attributes map[string]any `json:"attributes,omitempty"`
	KeyOrder   []string       `json:"-"`
}

// Member is the display record for a point credited to a ring.
type Member struct {
	Name string `json:"name"`
	ID   any    `json:"id"`
}

// PointGroup is a named, independently tracked set of uploaded points.
// CountsByRing and MembersByRing are derived state, populated only by
// Aggregate and cleared whenever the ring set or group list changes.
type PointGroup struct {
	Name          string               `json:"name"`
	Color         string               `json:"color"`
	Points        []Point              `json:"points"`
	CountsByRing  map[float64]int      `json:"-"`
	MembersByRing map[float64][]Member `json:"-"`
}

// NewPointGroup creates a group with empty derived state.
func NewPointGroup(name, color string, points []Point) *PointGroup {
	return &PointGroup{Name: name, Color: color, Points: points}
}

// Reset clears derived state.
func (g *PointGroup) Reset() {
	g.CountsByRing = nil
	g.MembersByRing = nil
}

// HasStats reports whether derived state has been computed.
func (g *PointGroup) HasStats() bool {
	return len(g.CountsByRing) > 0
}

// Total returns the number of points credited to any ring.
func (g *PointGroup) Total() int {
	n := 0
	for _, c := range g.CountsByRing {
		n += c
	}
	return n
}

// RingStats is one ring's tally for a group.
type RingStats struct {
	Break   float64  `json:"break"`
	Count   int      `json:"count"`
	Members []Member `json:"members"`
}

// GroupStats is the serializable view of a group's derived state.
type GroupStats struct {
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Points int         `json:"points"`
	Rings  []RingStats `json:"rings"`
}

// Stats returns the group's tallies for breaks, in the given order.
func (g *PointGroup) Stats(breaks []float64) GroupStats {
	gs := GroupStats{
		Name:   g.Name,
		Color:  g.Color,
		Points: len(g.Points),
		Rings:  make([]RingStats, 0, len(breaks)),
	}
	for _, b := range breaks {
		members := g.MembersByRing[b]
		if members == nil {
			members = []Member{}
		}
		gs.Rings = append(gs.Rings, RingStats{Break: b, Count: g.CountsByRing[b], Members: members})
	}
	return gs
}

// Total returns the number of points credited to any ring.
func (gs GroupStats) Total() int {
	n := 0
	for _, r := range gs.Rings {
		n += r.Count
	}
	return n
}
