// Package legend derives legend colors for stacked translucent service
// area rings and parses the rgb()/rgba() color strings used for uploads.
package legend

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Default ring fill: rgba(255, 0, 0, 0.25).
const (
	DefaultAlpha = 0.25
)

// DefaultBase is the ring fill color.
var DefaultBase = RGB{R: 255, G: 0, B: 0}

// DefaultPalette cycles through these colors for uploaded point groups.
var DefaultPalette = Palette{
	"rgba(0, 122, 194, 0.8)",
	"rgba(76, 175, 80, 0.8)",
	"rgba(255, 152, 0, 0.8)",
	"rgba(156, 39, 176, 0.8)",
	"rgba(255, 150, 190, 0.8)",
}

// RGB is an opaque color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String formats the color as a CSS rgb() value.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Compositor blends identical translucent layers over a white canvas.
type Compositor struct {
	Base  RGB
	Alpha float64
}

// NewCompositor returns the default red, quarter-opacity compositor.
func NewCompositor() Compositor {
	return Compositor{Base: DefaultBase, Alpha: DefaultAlpha}
}

// LayeredColor returns the opaque color seen when depth identical layers
// are stacked on white. Composite alpha after n layers is 1-(1-a)^n; the
// result blends base toward white by that weight. Depth 0 is white.
func (c Compositor) LayeredColor(depth int) RGB {
	if depth < 0 {
		depth = 0
	}
	composite := 1 - math.Pow(1-c.Alpha, float64(depth))
	return RGB{
		R: blend(c.Base.R, composite),
		G: blend(c.Base.G, composite),
		B: blend(c.Base.B, composite),
	}
}

// LayeredColor uses the default compositor.
func LayeredColor(depth int) RGB {
	return NewCompositor().LayeredColor(depth)
}

func blend(channel uint8, alpha float64) uint8 {
	v := math.Round(float64(channel)*alpha + 255*(1-alpha))
	return uint8(math.Max(0, math.Min(255, v)))
}

// Item is one legend row.
type Item struct {
	Break float64 `json:"break"`
	Color string  `json:"color"`
	RGB   RGB     `json:"rgb"`
}

// Items builds legend rows for the distinct breaks, smallest first. The
// smallest ring sits under every larger ring, so it gets the deepest stack.
func (c Compositor) Items(breaks []float64) []Item {
	uniq := make([]float64, 0, len(breaks))
	seen := make(map[float64]bool, len(breaks))
	for _, b := range breaks {
		if !seen[b] {
			seen[b] = true
			uniq = append(uniq, b)
		}
	}
	sort.Float64s(uniq)

	items := make([]Item, 0, len(uniq))
	for i, b := range uniq {
		rgb := c.LayeredColor(len(uniq) - i)
		items = append(items, Item{Break: b, Color: rgb.String(), RGB: rgb})
	}
	return items
}

// Palette is an ordered list of CSS colors assigned to point groups.
type Palette []string

// Color returns the color for the group at index, cycling the palette.
func (p Palette) Color(index int) string {
	if len(p) == 0 {
		return DefaultPalette.Color(index)
	}
	if index < 0 {
		index = -index
	}
	return p[index%len(p)]
}

// RGBA is a color with straight alpha in [0,1].
type RGBA struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

// DefaultMarker is returned by ParseRGBA for unparseable input.
var DefaultMarker = RGBA{R: 0, G: 122, B: 194, A: 0.8}

var rgbaPattern = regexp.MustCompile(`rgba?\((\d+),\s*(\d+),\s*(\d+),?\s*([\d.]+)?\)`)

// ParseRGBA parses an rgb() or rgba() string. Missing alpha means 1.
// Unparseable input yields DefaultMarker.
func ParseRGBA(s string) RGBA {
	m := rgbaPattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultMarker
	}
	out := RGBA{R: channel(m[1]), G: channel(m[2]), B: channel(m[3]), A: 1}
	if m[4] != "" {
		if a, err := strconv.ParseFloat(m[4], 64); err == nil {
			out.A = a
		}
	}
	return out
}

func channel(s string) uint8 {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
