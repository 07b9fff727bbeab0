package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

// DefaultNominatimURL is the public Nominatim instance
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryBase  time.Duration
	logger     *zap.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim geocoder limited to one request
// per second, the public instance's usage policy
func NewNominatimGeocoder(baseURL string, logger *zap.Logger) Geocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &nominatimGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		retryBase: time.Second,
		logger:    logging.OrNop(logger).Named("geocoding"),
	}
}

func (g *nominatimGeocoder) query(ctx context.Context, query string, limit int) ([]nominatimResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(query), limit)
	g.logger.Debug("Geocoding request", zap.String("query", query), zap.Int("limit", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", "RouteEditor/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("Geocoding API request failed", zap.String("query", query), zap.Error(err))
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.Error("Geocoding API error",
			zap.String("query", query),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, &ErrGeocodingFailed{
			Address: query,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		g.logger.Error("Failed to decode geocoding response", zap.String("query", query), zap.Error(err))
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	return results, nil
}

func parseResult(r nominatimResponse) (*GeocodingResult, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	return &GeocodingResult{
		Coords:      models.Coordinates{Lat: lat, Lng: lng},
		DisplayName: r.DisplayName,
	}, nil
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.query(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		g.logger.Warn("No geocoding results found", zap.String("address", address))
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	result, err := parseResult(results[0])
	if err != nil {
		g.logger.Error("Invalid geocoding response", zap.String("address", address), zap.Error(err))
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	g.logger.Debug("Geocoded address",
		zap.String("address", address),
		zap.Float64("lat", result.Coords.Lat),
		zap.Float64("lng", result.Coords.Lng))
	return result, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			backoff := g.retryBase * time.Duration(1<<uint(i))
			g.logger.Debug("Retrying geocode",
				zap.String("address", address),
				zap.Int("attempt", i+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	g.logger.Warn("Geocoding failed after retries",
		zap.String("address", address),
		zap.Int("retries", maxRetries),
		zap.Error(lastErr))
	return nil, lastErr
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	results, err := g.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	geocodingResults := make([]GeocodingResult, 0, len(results))
	for _, r := range results {
		result, err := parseResult(r)
		if err != nil {
			g.logger.Warn("Skipping invalid search result", zap.String("query", query), zap.Error(err))
			continue
		}
		geocodingResults = append(geocodingResults, *result)
	}
	return geocodingResults, nil
}
