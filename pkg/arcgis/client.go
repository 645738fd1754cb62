// Package arcgis provides a client for the ArcGIS network analysis service
// area solver.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/resilience"
)

// DefaultServiceURL is the hosted world service area solver.
const DefaultServiceURL = "https://route-api.arcgis.com/arcgis/rest/services/World/ServiceAreas/NAServer/ServiceArea_World"

// DefaultTravelMode is used when a request names none.
const DefaultTravelMode = "Driving Time"

// SolveRequest describes a single-facility service area solve.
type SolveRequest struct {
	// Origin is the facility location as [lon, lat].
	Origin     [2]float64
	TravelMode string
	Breaks     []float64
}

// ServiceArea is one solved ring.
type ServiceArea struct {
	Break    float64
	Name     string
	Geometry *geom.Polygon
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.limiter = NewAdaptiveLimiter(perSec, 1)
		}
	}
}

// Client talks to a NAServer service area endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   resilience.RetryConfig
	limiter *AdaptiveLimiter

	mu    sync.Mutex
	modes []TravelMode
}

// NewClient creates a solver client. An empty baseURL selects
// DefaultServiceURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultServiceURL
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("arcgis", "service_area")
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry,
		limiter: NewAdaptiveLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TravelModes returns the solver's supported travel modes. The list is
// fetched once from the service description and cached.
func (c *Client) TravelModes(ctx context.Context) ([]TravelMode, error) {
	c.mu.Lock()
	cached := c.modes
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	params := url.Values{"f": {"json"}}
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: fetch service description")
	}

	var desc serviceDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode service description")
	}
	if desc.Error != nil {
		return nil, serviceError(desc.Error)
	}

	c.mu.Lock()
	c.modes = desc.SupportedTravelModes
	c.mu.Unlock()
	return desc.SupportedTravelModes, nil
}

// ResolveTravelMode finds a travel mode by name or alternate name.
func (c *Client) ResolveTravelMode(ctx context.Context, name string) (TravelMode, error) {
	modes, err := c.TravelModes(ctx)
	if err != nil {
		return TravelMode{}, err
	}
	for _, m := range modes {
		if m.Name == name || m.AltName == name {
			return m, nil
		}
	}
	return TravelMode{}, eris.Errorf("arcgis: travel mode %q not supported", name)
}

// SolveServiceArea solves drive-time rings around the request origin.
// Features without a polygon are skipped.
func (c *Client) SolveServiceArea(ctx context.Context, req SolveRequest) ([]ServiceArea, error) {
	if len(req.Breaks) == 0 {
		return nil, eris.New("arcgis: at least one break is required")
	}
	modeName := req.TravelMode
	if modeName == "" {
		modeName = DefaultTravelMode
	}
	mode, err := c.ResolveTravelMode(ctx, modeName)
	if err != nil {
		return nil, err
	}

	form := c.solveForm(req, mode)
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/solveServiceArea", form)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: solve request")
	}

	var resp solveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode solve response")
	}
	if resp.Error != nil {
		return nil, serviceError(resp.Error)
	}
	if resp.SAPolygons == nil {
		return nil, nil
	}

	var areas []ServiceArea
	for i, f := range resp.SAPolygons.Features {
		if f.Geometry == nil {
			continue
		}
		poly, err := f.Geometry.toPolygon()
		if err != nil {
			zap.L().Warn("arcgis: skipping malformed polygon", zap.Int("index", i), zap.Error(err))
			continue
		}
		brk, ok := breakValue(f.Attributes, i, req.Breaks)
		if !ok {
			continue
		}
		name, _ := f.Attributes["Name"].(string)
		areas = append(areas, ServiceArea{Break: brk, Name: name, Geometry: poly})
	}

	zap.L().Debug("arcgis: solved service area",
		zap.Float64s("breaks", req.Breaks),
		zap.String("travel_mode", modeName),
		zap.Int("polygons", len(areas)),
	)
	return areas, nil
}

func (c *Client) solveForm(req SolveRequest, mode TravelMode) url.Values {
	facilities := fmt.Sprintf(
		`{"features":[{"geometry":{"x":%s,"y":%s}}],"spatialReference":{"wkid":4326}}`,
		strconv.FormatFloat(req.Origin[0], 'f', -1, 64),
		strconv.FormatFloat(req.Origin[1], 'f', -1, 64),
	)
	breaks := make([]string, len(req.Breaks))
	for i, b := range req.Breaks {
		breaks[i] = strconv.FormatFloat(b, 'f', -1, 64)
	}

	form := url.Values{
		"f":                {"json"},
		"facilities":       {facilities},
		"defaultBreaks":    {strings.Join(breaks, ",")},
		"travelMode":       {string(mode.Raw)},
		"travelDirection":  {"esriNATravelDirectionFromFacility"},
		"trimOuterPolygon": {"true"},
		"outSR":            {"4326"},
		"returnFacilities": {"false"},
	}
	if c.apiKey != "" {
		form.Set("token", c.apiKey)
	}
	return form
}

// do sends a throttled request with retries. 408, 429 and 5xx responses
// are retried, waiting at least as long as a Retry-After header asks.
func (c *Client) do(ctx context.Context, method, target string, form url.Values) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "arcgis: rate limit wait")
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: build request")
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: http")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: read body")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(
				eris.Errorf("arcgis: status %d: %s", resp.StatusCode, truncate(data, 200)),
				resp.StatusCode,
			)
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, te
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("arcgis: status %d: %s", resp.StatusCode, truncate(data, 200))
		}
		c.limiter.OnSuccess()
		return data, nil
	})
}

// serviceError converts an in-body error. Throttling and server codes are
// transient.
func serviceError(e *esriError) error {
	err := eris.Errorf("arcgis: service error %d: %s", e.Code, e.Message)
	if resilience.IsTransientHTTPStatus(e.Code) {
		return resilience.NewTransientError(err, e.Code)
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
