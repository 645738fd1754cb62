package arcgis

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Break defaults for service area solves, in minutes.
const (
	DefaultNumBreaks = 3
	DefaultBreakSize = 5
	MinBreakSize     = 1
	MaxBreakSize     = 30
)

// Breaks returns num evenly spaced break values: size, 2*size, ... A
// non-positive num yields nil.
func Breaks(num int, size float64) []float64 {
	if num <= 0 {
		return nil
	}
	out := make([]float64, num)
	for i := range out {
		out[i] = float64(i+1) * size
	}
	return out
}

// ClampBreakSize limits size to [lo, hi].
func ClampBreakSize(size, lo, hi float64) float64 {
	if size < lo {
		return lo
	}
	if size > hi {
		return hi
	}
	return size
}

// ParseBreaks parses a comma-separated break list such as "5,10,15".
// Empty items are ignored; every value must be a finite positive number.
func ParseBreaks(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(b) || math.IsInf(b, 0) || b <= 0 {
			return nil, eris.Errorf("arcgis: invalid break value %q", p)
		}
		out = append(out, b)
	}
	return out, nil
}
