package siting

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scenario is a siting problem read from YAML or JSON. TopN is nil when the
// file leaves it unset; an explicit 0 commits no candidates.
type Scenario struct {
	Radius     float64       `yaml:"radius" json:"radius"`
	TopN       *int          `yaml:"top_n,omitempty" json:"top_n,omitempty"`
	Facilities []Facility    `yaml:"facilities" json:"facilities"`
	Demand     []DemandPoint `yaml:"demand" json:"demand"`
}

// LoadScenario reads a scenario file. The YAML may wrap the scenario in a
// top-level "siting" key.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "siting: read scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML and validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	var wrapper struct {
		Siting *Scenario `yaml:"siting"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "siting: parse scenario")
	}

	sc := wrapper.Siting
	if sc == nil {
		sc = &Scenario{}
		if err := yaml.Unmarshal(data, sc); err != nil {
			return nil, eris.Wrap(err, "siting: parse scenario")
		}
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks that the scenario has at least one candidate and no
// negative demand weights.
func (s *Scenario) Validate() error {
	candidates := 0
	for _, f := range s.Facilities {
		switch f.Type {
		case TypeCandidate:
			candidates++
		case TypeExisting:
		default:
			return eris.Errorf("siting: facility %q has unknown type %d", f.Name, f.Type)
		}
	}
	if candidates == 0 {
		return eris.New("siting: scenario has no candidate facilities")
	}
	for _, d := range s.Demand {
		if d.Weight < 0 {
			return eris.Errorf("siting: demand point %q has negative weight", d.Name)
		}
	}
	if s.Radius < 0 {
		return eris.Errorf("siting: radius must be non-negative (got %g)", s.Radius)
	}
	return nil
}

// Run applies Site with the scenario's radius and top-N, falling back to
// the given defaults when unset.
func (s *Scenario) Run(defaultRadius float64, defaultTopN int) Result {
	radius := s.Radius
	if radius == 0 {
		radius = defaultRadius
	}
	topN := defaultTopN
	if s.TopN != nil {
		topN = *s.TopN
	}
	return SiteAll(s.Facilities, s.Demand, radius, topN)
}

// DefaultScenario is the downtown Seattle fast-food example: one existing
// restaurant, four candidate sites and eighteen office-building demand
// points weighted by occupancy.
func DefaultScenario() *Scenario {
	topN := DefaultTopN
	return &Scenario{
		Radius: DefaultRadius,
		TopN:   &topN,
		Facilities: []Facility{
			{Name: "Existing Location", Type: TypeExisting, Coords: [2]float64{-122.333906, 47.609152}},
			{Name: "Candidate 1", Type: TypeCandidate, Coords: [2]float64{-122.333585, 47.604501}},
			{Name: "Candidate 2", Type: TypeCandidate, Coords: [2]float64{-122.334550, 47.605557}},
			{Name: "Candidate 3", Type: TypeCandidate, Coords: [2]float64{-122.337753, 47.609442}},
			{Name: "Candidate 4", Type: TypeCandidate, Coords: [2]float64{-122.335319, 47.607317}},
		},
		Demand: []DemandPoint{
			{Name: "Colman Building", Weight: 1573, Coords: [2]float64{-122.335583, 47.603495}},
			{Name: "Norton Parking Garage", Weight: 1262, Coords: [2]float64{-122.33482, 47.603745}},
			{Name: "DocuSign Tower", Weight: 2385, Coords: [2]float64{-122.334151, 47.605060}},
			{Name: "Fourth and Madison Building", Weight: 1096, Coords: [2]float64{-122.333227, 47.605493}},
			{Name: "Safeco Plaza", Weight: 3618, Coords: [2]float64{-122.333899, 47.606190}},
			{Name: "1201 Third Avenue", Weight: 1782, Coords: [2]float64{-122.336163, 47.607204}},
			{Name: "Puget Sound Plaza", Weight: 2165, Coords: [2]float64{-122.335796, 47.608602}},
			{Name: "Rainier Square", Weight: 1316, Coords: [2]float64{-122.334881, 47.609021}},
			{Name: "Century Square", Weight: 1974, Coords: [2]float64{-122.337503, 47.610273}},
			{Name: "Miken Building", Weight: 3920, Coords: [2]float64{-122.336516, 47.609510}},
			{Name: "Westlake Park", Weight: 2467, Coords: [2]float64{-122.336353, 47.6110466}},
			{Name: "U.S. Bank Centre", Weight: 3997, Coords: [2]float64{-122.334571, 47.610492}},
			{Name: "Westlake Center", Weight: 2440, Coords: [2]float64{-122.337406, 47.611980}},
			{Name: "Nordstrom Flagship Store", Weight: 2438, Coords: [2]float64{-122.336295, 47.6123047}},
			{Name: "Columbia Center", Weight: 5400, Coords: [2]float64{-122.330746, 47.604502}},
			{Name: "800 Fifth Avenue", Weight: 3697, Coords: [2]float64{-122.330228, 47.605698}},
			{Name: "Seattle Municipal Tower", Weight: 2025, Coords: [2]float64{-122.329605, 47.605143}},
			{Name: "Washington State Convention Center", Weight: 1076, Coords: [2]float64{-122.331520, 47.611664}},
		},
	}
}
