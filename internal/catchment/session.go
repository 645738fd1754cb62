package catchment

import "github.com/rotisserie/eris"

var (
	// ErrNoRings is returned by Calculate before any ring set is loaded.
	ErrNoRings = eris.New("catchment: no service area rings, run a solve first")
	// ErrNoGroups is returned by Calculate when no point groups are loaded.
	ErrNoGroups = eris.New("catchment: no point groups uploaded")
)

// Stats is the result of a Calculate call.
type Stats struct {
	Groups         []GroupStats `json:"groups"`
	Breaks         []float64    `json:"breaks"`
	SmallestCommon *float64     `json:"smallest_common_break"`
}

// Session holds the current ring set and point groups. Any change to
// either clears the derived state of every group, so stats are always all
// empty or all computed against the current rings. A Session is not safe
// for concurrent use.
type Session struct {
	rings          *RingSet
	groups         []*PointGroup
	smallestCommon *float64
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Rings returns the current ring set, or nil.
func (s *Session) Rings() *RingSet { return s.rings }

// Groups returns the current point groups.
func (s *Session) Groups() []*PointGroup { return s.groups }

// SmallestCommonBreak returns the result of the last Calculate, if any.
func (s *Session) SmallestCommonBreak() (float64, bool) {
	if s.smallestCommon == nil {
		return 0, false
	}
	return *s.smallestCommon, true
}

// SetRings replaces the ring set atomically and invalidates all stats.
func (s *Session) SetRings(rings *RingSet) {
	s.rings = rings
	s.invalidate()
}

// AddGroup appends a group and invalidates all stats.
func (s *Session) AddGroup(g *PointGroup) {
	s.groups = append(s.groups, g)
	s.invalidate()
}

// RemoveGroup removes the group at index and invalidates all stats.
func (s *Session) RemoveGroup(index int) error {
	if index < 0 || index >= len(s.groups) {
		return eris.Errorf("catchment: group index %d out of range (have %d)", index, len(s.groups))
	}
	s.groups = append(s.groups[:index:index], s.groups[index+1:]...)
	s.invalidate()
	return nil
}

// Calculate aggregates every group against the current rings and finds
// the smallest break covering all groups.
func (s *Session) Calculate() (*Stats, error) {
	if s.rings.Len() == 0 {
		return nil, ErrNoRings
	}
	if len(s.groups) == 0 {
		return nil, ErrNoGroups
	}

	Aggregate(s.groups, s.rings)
	breaks := s.rings.Breaks()
	stats := &Stats{Groups: make([]GroupStats, 0, len(s.groups)), Breaks: breaks}
	for _, g := range s.groups {
		stats.Groups = append(stats.Groups, g.Stats(breaks))
	}
	if b, ok := FindSmallestCommonBreak(s.groups, s.rings); ok {
		stats.SmallestCommon = &b
	}
	s.smallestCommon = stats.SmallestCommon
	return stats, nil
}

func (s *Session) invalidate() {
	for _, g := range s.groups {
		g.Reset()
	}
	s.smallestCommon = nil
}
