package upload

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// ParseShapefile reads Point and MultiPoint records from a shapefile. DBF
// attributes are attached in field order; numeric fields are parsed and
// blank values are left out.
func ParseShapefile(shpPath string) ([]catchment.Point, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "upload: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var points []catchment.Point
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()

		attrs := make(map[string]any, len(fields))
		var order []string
		for i, f := range fields {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			attrs[names[i]] = fieldValue(f.Fieldtype, val)
			order = append(order, names[i])
		}

		switch s := shape.(type) {
		case *shp.Point:
			points = append(points, catchment.Point{Lon: s.X, Lat: s.Y, Attributes: attrs, KeyOrder: order})
		case *shp.PointZ:
			points = append(points, catchment.Point{Lon: s.X, Lat: s.Y, Attributes: attrs, KeyOrder: order})
		case *shp.PointM:
			points = append(points, catchment.Point{Lon: s.X, Lat: s.Y, Attributes: attrs, KeyOrder: order})
		case *shp.MultiPoint:
			for _, p := range s.Points {
				points = append(points, catchment.Point{Lon: p.X, Lat: p.Y, Attributes: copyAttrs(attrs), KeyOrder: order})
			}
		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("upload: skipped non-point shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return points, nil
}

// fieldValue converts numeric DBF values to int64 or float64.
func fieldValue(fieldType byte, val string) any {
	if fieldType != 'N' && fieldType != 'F' {
		return val
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return val
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
