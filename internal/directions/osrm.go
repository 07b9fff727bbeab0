package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

// DefaultOSRMURL is the public OSRM demo server
const DefaultOSRMURL = "https://router.project-osrm.org"

// maxOSRMCoordinates is the maximum number of coordinates the public OSRM API accepts
const maxOSRMCoordinates = 80

type osrmClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type osrmRouteResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

// NewOSRMClient creates a client for the OSRM route service. ratePerSec <= 0
// disables client-side rate limiting.
func NewOSRMClient(baseURL string, ratePerSec float64, logger *zap.Logger) Client {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &osrmClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.OrNop(logger).Named("osrm"),
	}
}

func (c *osrmClient) ComputeRoute(ctx context.Context, origin, destination models.Coordinates, waypoints []models.Coordinates) (*Route, error) {
	points := make([]models.Coordinates, 0, len(waypoints)+2)
	points = append(points, origin)
	points = append(points, waypoints...)
	points = append(points, destination)

	if len(points) > maxOSRMCoordinates {
		return nil, &ErrRouteFailed{
			Provider: "osrm",
			Reason:   fmt.Sprintf("too many coordinates: %d > %d", len(points), maxOSRMCoordinates),
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	queryURL := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=polyline&steps=false",
		c.baseURL, strings.Join(coords, ";"))

	resp, err := getWithRetry(ctx, c.httpClient, queryURL)
	if err != nil {
		c.logger.Error("OSRM API request failed", zap.Int("waypoints", len(waypoints)), zap.Error(err))
		return nil, &ErrRouteFailed{Provider: "osrm", Reason: err.Error()}
	}
	defer resp.Body.Close()

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		c.logger.Error("Failed to decode OSRM response", zap.Error(err))
		return nil, &ErrRouteFailed{Provider: "osrm", Reason: err.Error()}
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		c.logger.Warn("OSRM returned error code", zap.String("code", osrmResp.Code), zap.String("message", osrmResp.Message))
		return nil, &ErrRouteFailed{Provider: "osrm", Status: osrmResp.Code, Reason: osrmResp.Message}
	}

	route := osrmResp.Routes[0]
	legs := make([]float64, len(route.Legs))
	for i, leg := range route.Legs {
		legs[i] = leg.Duration
	}

	c.logger.Debug("Route computed",
		zap.Int("waypoints", len(waypoints)),
		zap.Int("legs", len(legs)),
		zap.Float64("duration_secs", route.Duration))

	return &Route{LegDurations: legs, Geometry: route.Geometry}, nil
}
