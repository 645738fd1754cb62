package catchment

// Aggregate classifies every point of every group against rings and
// replaces each group's derived state wholesale. Every break in the ring
// set gets an entry, so rings with no points report a zero count. Members
// are listed in the order their points appear in the group.
func Aggregate(groups []*PointGroup, rings *RingSet) {
	breaks := rings.Breaks()
	for _, g := range groups {
		counts := make(map[float64]int, len(breaks))
		members := make(map[float64][]Member, len(breaks))
		for _, b := range breaks {
			counts[b] = 0
			members[b] = []Member{}
		}

		for i, p := range g.Points {
			r, ok := Classify(p, rings)
			if !ok {
				continue
			}
			counts[r.Break]++
			members[r.Break] = append(members[r.Break], Member{
				Name: DisplayName(p, i),
				ID:   DisplayID(p, i),
			})
		}

		g.CountsByRing = counts
		g.MembersByRing = members
	}
}

// FindSmallestCommonBreak returns the smallest break b such that every
// group has at least one point credited to a ring with break <= b. The
// cumulative counts only grow with b, so the first break that satisfies
// every group is the minimum. It returns false when no break qualifies or
// when there are no groups or rings.
func FindSmallestCommonBreak(groups []*PointGroup, rings *RingSet) (float64, bool) {
	if len(groups) == 0 {
		return 0, false
	}
	breaks := rings.Breaks()
	cumulative := make([]int, len(groups))
	for _, b := range breaks {
		covered := true
		for gi, g := range groups {
			cumulative[gi] += g.CountsByRing[b]
			if cumulative[gi] <= 0 {
				covered = false
			}
		}
		if covered {
			return b, true
		}
	}
	return 0, false
}
