package api

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/geo"
	"github.com/sells-group/catchment-cli/internal/legend"
	"github.com/sells-group/catchment-cli/internal/report"
	"github.com/sells-group/catchment-cli/internal/siting"
	"github.com/sells-group/catchment-cli/internal/store"
	"github.com/sells-group/catchment-cli/internal/upload"
	"github.com/sells-group/catchment-cli/pkg/arcgis"
)

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	breaks := s.cfg.Solver.Breaks()
	if raw := r.URL.Query().Get("breaks"); raw != "" {
		parsed, err := arcgis.ParseBreaks(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		breaks = parsed
	}
	writeJSON(w, http.StatusOK, s.cfg.Legend.Compositor().Items(breaks))
}

// groupRequest is one uploaded point group. Points is a GeoJSON
// FeatureCollection of Point or MultiPoint features.
type groupRequest struct {
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Points json.RawMessage `json:"points"`
}

type statsRequest struct {
	// SolveID selects stored rings. Rings is used when it is empty.
	SolveID string          `json:"solve_id"`
	Rings   json.RawMessage `json:"rings"`
	// Breaks labels ring features that carry no break attribute.
	Breaks []float64      `json:"breaks"`
	Groups []groupRequest `json:"groups"`
}

type statsResponse struct {
	Stats   *catchment.Stats `json:"stats"`
	Legend  []legend.Item    `json:"legend"`
	StatsID string           `json:"stats_id,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var req statsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rings, ok := s.requestRings(r.Context(), w, req)
	if !ok {
		return
	}

	session := catchment.NewSession()
	session.SetRings(rings)
	palette := legend.Palette(s.cfg.Legend.Palette)
	for i, g := range req.Groups {
		points, err := upload.ParseGeoJSON(g.Points)
		if err != nil {
			writeError(w, http.StatusBadRequest, "group "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		name := g.Name
		if name == "" {
			name = "Group " + strconv.Itoa(i+1)
		}
		color := g.Color
		if color == "" {
			color = palette.Color(i)
		}
		session.AddGroup(catchment.NewPointGroup(name, color, points))
	}

	stats, err := session.Calculate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.metrics.ObserveStats(stats)

	resp := statsResponse{Stats: stats, Legend: s.cfg.Legend.Compositor().Items(stats.Breaks)}
	if req.SolveID != "" && s.store != nil {
		rec, err := s.store.SaveStats(r.Context(), req.SolveID, stats)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.StatsID = rec.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestRings resolves the ring set of a stats request.
func (s *Server) requestRings(ctx context.Context, w http.ResponseWriter, req statsRequest) (*catchment.RingSet, bool) {
	if req.SolveID != "" {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "storage is not configured")
			return nil, false
		}
		sv, err := s.store.GetSolve(ctx, req.SolveID)
		if err != nil {
			writeStoreError(w, err)
			return nil, false
		}
		rings, err := sv.RingSet()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return nil, false
		}
		return rings, true
	}

	if len(req.Rings) == 0 {
		writeError(w, http.StatusBadRequest, "rings or solve_id is required")
		return nil, false
	}
	fallback := req.Breaks
	if len(fallback) == 0 {
		fallback = s.cfg.Solver.Breaks()
	}
	polys, err := geo.ParseRingsGeoJSON(req.Rings, fallback)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	rings, err := geo.NewRingSet(polys)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return rings, true
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var sc *siting.Scenario
	if len(strings.TrimSpace(string(data))) == 0 {
		sc = siting.DefaultScenario()
	} else if sc, err = siting.ParseScenario(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := sc.Run(s.cfg.Siting.Radius, s.cfg.Siting.TopN)
	writeJSON(w, http.StatusOK, report.SitingOutput{Result: res, Summary: siting.Summarize(res)})
}

type solveRequest struct {
	Origin     catchment.Coord `json:"origin"`
	TravelMode string          `json:"travel_mode"`
	Breaks     []float64       `json:"breaks"`
	NumBreaks  int             `json:"num_breaks"`
	BreakSize  float64         `json:"break_size"`
}

type solveResponse struct {
	Solve  *store.Solve    `json:"solve"`
	Rings  json.RawMessage `json:"rings"`
	Legend []legend.Item   `json:"legend"`
}

// breaks picks explicit breaks first, then a num/size schedule, then the
// configured default. Sizes are clamped to the configured bounds.
func (req solveRequest) breaks(s *Server) []float64 {
	if len(req.Breaks) > 0 {
		return req.Breaks
	}
	sc := s.cfg.Solver
	if req.NumBreaks > 0 {
		sc.NumBreaks = req.NumBreaks
	}
	if req.BreakSize > 0 {
		sc.BreakSize = req.BreakSize
	}
	return sc.Breaks()
}

func validOrigin(c catchment.Coord) bool {
	return !math.IsNaN(c.Lon) && !math.IsNaN(c.Lat) &&
		c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if s.solver == nil {
		writeError(w, http.StatusServiceUnavailable, "solver is not configured")
		return
	}
	var req solveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validOrigin(req.Origin) {
		writeError(w, http.StatusBadRequest, "origin must be a valid lon/lat")
		return
	}
	breaks := req.breaks(s)
	for _, b := range breaks {
		if b <= 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			writeError(w, http.StatusBadRequest, "breaks must be positive")
			return
		}
	}
	mode := req.TravelMode
	if mode == "" {
		mode = s.cfg.Solver.TravelMode
	}
	if mode == "" {
		mode = arcgis.DefaultTravelMode
	}

	ctx := r.Context()
	if secs := s.cfg.Solver.TimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	start := time.Now()
	polys, err := s.solver.SolvePolygons(ctx, req.Origin, mode, breaks)
	s.metrics.ObserveSolve(time.Since(start), err)
	if err != nil {
		zap.L().Error("api: solve failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "solve failed: "+err.Error())
		return
	}

	sv := &store.Solve{Origin: req.Origin, TravelMode: mode, Breaks: breaks, Rings: polys, CreatedAt: time.Now().UTC()}
	if s.store != nil {
		if err := s.store.SaveSolve(r.Context(), sv); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	s.writeSolve(w, http.StatusOK, sv)
}

func (s *Server) writeSolve(w http.ResponseWriter, status int, sv *store.Solve) {
	fc, err := geo.MarshalRingsGeoJSON(sv.Rings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, solveResponse{
		Solve:  sv,
		Rings:  fc,
		Legend: s.cfg.Legend.Compositor().Items(sv.Breaks),
	})
}

func (s *Server) handleListSolves(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	solves, err := s.store.ListSolves(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if solves == nil {
		solves = []store.SolveSummary{}
	}
	writeJSON(w, http.StatusOK, solves)
}

func (s *Server) handleGetSolve(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}
	sv, err := s.store.GetSolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.writeSolve(w, http.StatusOK, sv)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}
	rec, err := s.store.GetStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
