package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/api"
	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/store"
)

type solveOptions struct {
	Origin     catchment.Coord
	TravelMode string
	Breaks     []float64
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve drive-time rings around an origin",
	Long:  "Calls the service area solver for one origin, stores the rings, and writes them as a GeoJSON FeatureCollection.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("solve"); err != nil {
			return err
		}

		lon, _ := cmd.Flags().GetFloat64("lon")
		lat, _ := cmd.Flags().GetFloat64("lat")
		mode, _ := cmd.Flags().GetString("mode")
		rawBreaks, _ := cmd.Flags().GetString("breaks")
		num, _ := cmd.Flags().GetInt("num-breaks")
		size, _ := cmd.Flags().GetFloat64("break-size")
		outPath, _ := cmd.Flags().GetString("out")
		noStore, _ := cmd.Flags().GetBool("no-store")

		breaks, err := solverBreaks(rawBreaks, num, size)
		if err != nil {
			return err
		}
		if mode == "" {
			mode = cfg.Solver.TravelMode
		}

		var st store.Store
		if !noStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		opts := solveOptions{Origin: catchment.Coord{Lon: lon, Lat: lat}, TravelMode: mode, Breaks: breaks}
		return runSolve(ctx, initSolver(), st, opts, out, os.Stderr)
	},
}

// runSolve solves opts, saves the result when st is set, and writes the
// rings GeoJSON to out and a one-line summary to msg.
func runSolve(ctx context.Context, solver api.RingSolver, st store.Store, opts solveOptions, out, msg io.Writer) error {
	log := zap.L().With(zap.String("command", "solve"))

	start := time.Now()
	polys, err := solver.SolvePolygons(ctx, opts.Origin, opts.TravelMode, opts.Breaks)
	if err != nil {
		return eris.Wrap(err, "solve")
	}
	log.Info("solved service area",
		zap.Float64("lon", opts.Origin.Lon),
		zap.Float64("lat", opts.Origin.Lat),
		zap.Int("rings", len(polys)),
		zap.Duration("elapsed", time.Since(start)),
	)

	sv := &store.Solve{Origin: opts.Origin, TravelMode: opts.TravelMode, Breaks: opts.Breaks, Rings: polys}
	if st != nil {
		if err := st.SaveSolve(ctx, sv); err != nil {
			return eris.Wrap(err, "solve: save")
		}
	}

	data, err := geo.MarshalRingsGeoJSON(polys)
	if err != nil {
		return err
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "solve: write rings")
	}

	id := sv.ID
	if id == "" {
		id = "(not stored)"
	}
	fmt.Fprintf(msg, "Solve %s: %d rings for breaks %v (%s)\n", id, len(polys), opts.Breaks, opts.TravelMode)
	return nil
}

func init() {
	solveCmd.Flags().Float64("lon", 0, "origin longitude")
	solveCmd.Flags().Float64("lat", 0, "origin latitude")
	solveCmd.Flags().String("mode", "", "travel mode name (default from config)")
	solveCmd.Flags().String("breaks", "", "comma-separated break values, e.g. 5,10,15")
	solveCmd.Flags().Int("num-breaks", 0, "number of evenly spaced breaks (default from config)")
	solveCmd.Flags().Float64("break-size", 0, "break spacing in minutes, clamped to solver.min_break..solver.max_break")
	solveCmd.Flags().StringP("out", "o", "", "write rings GeoJSON to this file (default stdout)")
	solveCmd.Flags().Bool("no-store", false, "do not persist the solve")
	_ = solveCmd.MarkFlagRequired("lon")
	_ = solveCmd.MarkFlagRequired("lat")
	rootCmd.AddCommand(solveCmd)
}
