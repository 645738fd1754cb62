package siting

// FacilityStats summarizes the demand allocated to one facility.
type FacilityStats struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// Summary totals allocations per committed facility.
type Summary struct {
	Facilities       []FacilityStats `json:"facilities"`
	TotalAllocations int             `json:"total_allocations"`
	TotalWeight      float64         `json:"total_weight"`
}

// Summarize aggregates allocations in committed-facility order. Committed
// facilities that received no demand are listed with zero totals.
func Summarize(r Result) Summary {
	idx := make(map[string]int, len(r.Committed))
	stats := make([]FacilityStats, 0, len(r.Committed))
	for _, f := range r.Committed {
		if _, ok := idx[f.Name]; ok {
			continue
		}
		idx[f.Name] = len(stats)
		stats = append(stats, FacilityStats{Name: f.Name})
	}

	s := Summary{TotalAllocations: len(r.Allocations)}
	for _, a := range r.Allocations {
		i, ok := idx[a.FacilityName]
		if !ok {
			i = len(stats)
			idx[a.FacilityName] = i
			stats = append(stats, FacilityStats{Name: a.FacilityName})
		}
		stats[i].Count++
		stats[i].Weight += a.DemandWeight
		s.TotalWeight += a.DemandWeight
	}
	s.Facilities = stats
	return s
}
