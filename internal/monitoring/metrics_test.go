package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: register collector")
}

func TestMiddleware_LabelsRoutePattern(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	})

	for _, path := range []string{"/v1/things/1", "/v1/things/2", "/ok", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `catchment_http_requests_total{code="418",method="GET",route="/v1/things/{id}"} 2`)
	assert.Contains(t, out, `catchment_http_requests_total{code="200",method="GET",route="/ok"} 1`)
	assert.Contains(t, out, `catchment_http_requests_total{code="404",method="GET",route="unmatched"} 1`)
	assert.Contains(t, out, "catchment_http_request_duration_seconds_bucket")
}

func TestObserveStats(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveStats(&catchment.Stats{Groups: []catchment.GroupStats{
		{Name: "a", Points: 5, Rings: []catchment.RingStats{{Break: 5, Count: 2}, {Break: 10, Count: 1}}},
		{Name: "b", Points: 2, Rings: []catchment.RingStats{{Break: 5, Count: 0}}},
	}})
	m.ObserveStats(nil)

	out := scrape(t, m)
	assert.Contains(t, out, "catchment_points_classified_total 3")
	assert.Contains(t, out, "catchment_points_unclassified_total 4")
}

func TestObserveSolve(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveSolve(200*time.Millisecond, nil)
	m.ObserveSolve(time.Second, errors.New("boom"))
	m.ObserveSolve(time.Second, nil)

	out := scrape(t, m)
	assert.Contains(t, out, `catchment_solves_total{outcome="success"} 2`)
	assert.Contains(t, out, `catchment_solves_total{outcome="error"} 1`)
	assert.Contains(t, out, "catchment_solve_duration_seconds_count 3")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStats(&catchment.Stats{})
		m.ObserveSolve(time.Second, nil)
	})
}
