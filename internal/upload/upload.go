// Package upload turns user point files (GeoJSON, shapefiles, zipped
// shapefiles) into catchment point groups.
package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/legend"
)

const maxConcurrentLoads = 4

// ParseFile reads the points of a single file, dispatching on extension.
func ParseFile(path string) ([]catchment.Point, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "upload: read %s", path)
		}
		return ParseGeoJSON(data)
	case ".shp":
		return ParseShapefile(path)
	case ".zip":
		dir, err := os.MkdirTemp("", "catchment-upload-*")
		if err != nil {
			return nil, eris.Wrap(err, "upload: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		shpPath, err := extractShapefile(path, dir)
		if err != nil {
			return nil, err
		}
		return ParseShapefile(shpPath)
	default:
		return nil, eris.Errorf("upload: unsupported file type %q", filepath.Ext(path))
	}
}

// GroupName is the file's base name without extension.
func GroupName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadAll parses files concurrently and returns one group per file, in
// input order. Group i takes palette color i.
func LoadAll(ctx context.Context, paths []string, palette legend.Palette) ([]*catchment.PointGroup, error) {
	groups := make([]*catchment.PointGroup, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points, err := ParseFile(path)
			if err != nil {
				return err
			}
			groups[i] = catchment.NewPointGroup(GroupName(path), palette.Color(i), points)
			zap.L().Debug("upload: loaded group",
				zap.String("path", path),
				zap.Int("points", len(points)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "upload: load groups")
	}
	return groups, nil
}
