package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/resilience"
	"github.com/sells-group/catchment-cli/internal/store"
	"github.com/sells-group/catchment-cli/pkg/arcgis"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// initSolver builds the service area solver from config.
func initSolver() *geo.Solver {
	retry := resilience.DefaultRetryConfig().WithMaxAttempts(cfg.Solver.MaxAttempts)
	retry.OnRetry = resilience.RetryLogger("arcgis", "service_area")

	timeout := time.Duration(cfg.Solver.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := arcgis.NewClient(cfg.Solver.URL, cfg.Solver.APIKey,
		arcgis.WithHTTPClient(&http.Client{Timeout: timeout}),
		arcgis.WithRetry(retry),
		arcgis.WithRateLimit(cfg.Solver.RatePerSec),
	)
	return geo.NewSolver(client)
}

// solverBreaks resolves --breaks, then --num-breaks/--break-size, then
// the configured schedule.
func solverBreaks(raw string, num int, size float64) ([]float64, error) {
	if raw != "" {
		breaks, err := arcgis.ParseBreaks(raw)
		if err != nil {
			return nil, err
		}
		if len(breaks) == 0 {
			return nil, eris.New("at least one break is required")
		}
		return breaks, nil
	}
	sc := cfg.Solver
	if num > 0 {
		sc.NumBreaks = num
	}
	if size > 0 {
		sc.BreakSize = size
	}
	return sc.Breaks(), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	return f, nil
}
