package catchment

import "go.uber.org/zap"

// Classify returns the smallest ring containing p. Rings are tested in
// ascending break order and the first match wins, so a point inside both
// the 10 and 20 minute rings is credited only to the 10 minute ring.
// A predicate error counts as "not contained". The second return value is
// false when no ring contains the point.
func Classify(p Point, rings *RingSet) (Ring, bool) {
	for _, r := range rings.Rings() {
		if r.Contains == nil {
			continue
		}
		ok, err := r.Contains(p)
		if err != nil {
			zap.L().Debug("catchment: containment check failed",
				zap.Float64("break", r.Break),
				zap.Float64("lon", p.Lon),
				zap.Float64("lat", p.Lat),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return r, true
		}
	}
	return Ring{}, false
}
