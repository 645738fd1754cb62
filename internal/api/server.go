// Package api serves catchment analysis over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/monitoring"
	"github.com/sells-group/catchment-cli/internal/store"
)

// maxBodyBytes caps request bodies. Point uploads can be large.
const maxBodyBytes = 32 << 20

// RingSolver solves service area rings with their geometry.
type RingSolver interface {
	SolvePolygons(ctx context.Context, origin catchment.Coord, travelMode string, breaks []float64) ([]geo.RingPolygon, error)
}

// Server holds the dependencies of the HTTP handlers. Store and Solver may
// be nil; the routes that need them then answer 503.
type Server struct {
	cfg     *config.Config
	store   store.Store
	solver  RingSolver
	metrics *monitoring.Metrics
}

// NewServer creates a server. metrics may be nil to disable /metrics.
func NewServer(cfg *config.Config, st store.Store, solver RingSolver, metrics *monitoring.Metrics) *Server {
	return &Server{cfg: cfg, store: st, solver: solver, metrics: metrics}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/legend", s.handleLegend)
		v1.Post("/stats", s.handleStats)
		v1.Post("/site", s.handleSite)
		v1.Post("/solve", s.handleSolve)
		v1.Get("/solves", s.handleListSolves)
		v1.Route("/solves/{id}", func(item chi.Router) {
			item.Get("/", s.handleGetSolve)
			item.Get("/stats", s.handleGetStats)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store errors to a status code.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("api: store", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "storage error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
