package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

// DefaultGoogleURL is the Google Directions API endpoint
const DefaultGoogleURL = "https://maps.googleapis.com/maps/api/directions/json"

// maxGoogleWaypoints is the number of intermediate waypoints one request may carry
const maxGoogleWaypoints = 25

type googleClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type googleDirectionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// NewGoogleClient creates a Google Directions client. Waypoint order is kept
// as given (no waypoint optimization).
func NewGoogleClient(endpoint, apiKey string, ratePerSec float64, logger *zap.Logger) Client {
	if endpoint == "" {
		endpoint = DefaultGoogleURL
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &googleClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.OrNop(logger).Named("google"),
	}
}

func latLng(c models.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

func (c *googleClient) ComputeRoute(ctx context.Context, origin, destination models.Coordinates, waypoints []models.Coordinates) (*Route, error) {
	if len(waypoints) > maxGoogleWaypoints {
		return nil, &ErrRouteFailed{
			Provider: "google",
			Reason:   fmt.Sprintf("too many waypoints: %d > %d", len(waypoints), maxGoogleWaypoints),
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("origin", latLng(origin))
	q.Set("destination", latLng(destination))
	q.Set("mode", "driving")
	if len(waypoints) > 0 {
		wps := make([]string, len(waypoints))
		for i, w := range waypoints {
			wps[i] = latLng(w)
		}
		q.Set("waypoints", strings.Join(wps, "|"))
	}
	q.Set("key", c.apiKey)

	resp, err := getWithRetry(ctx, c.httpClient, c.endpoint+"?"+q.Encode())
	if err != nil {
		c.logger.Error("Directions API request failed", zap.Int("waypoints", len(waypoints)), zap.Error(err))
		return nil, &ErrRouteFailed{Provider: "google", Reason: err.Error()}
	}
	defer resp.Body.Close()

	var gResp googleDirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		c.logger.Error("Failed to decode directions response", zap.Error(err))
		return nil, &ErrRouteFailed{Provider: "google", Reason: err.Error()}
	}

	if gResp.Status != "OK" || len(gResp.Routes) == 0 {
		c.logger.Warn("Directions API returned non-OK status",
			zap.String("status", gResp.Status),
			zap.String("message", gResp.ErrorMessage))
		return nil, &ErrRouteFailed{Provider: "google", Status: gResp.Status, Reason: gResp.ErrorMessage}
	}

	route := gResp.Routes[0]
	legs := make([]float64, len(route.Legs))
	for i, leg := range route.Legs {
		legs[i] = leg.Duration.Value
	}

	return &Route{LegDurations: legs, Geometry: route.OverviewPolyline.Points}, nil
}
