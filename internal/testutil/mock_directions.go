package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"

	"route-editor/internal/directions"
	"route-editor/internal/models"
)

// DirectionsCall tracks a call to the directions client
type DirectionsCall struct {
	Origin      models.Coordinates
	Destination models.Coordinates
	Waypoints   []models.Coordinates
}

// MockDirections is a mock directions client for testing. Leg durations are
// the scaled Euclidean distance between consecutive points at 50 km/h, so
// results are deterministic. It is safe for concurrent use.
type MockDirections struct {
	ScaleFactor float64

	mu        sync.Mutex
	overrides map[string][]float64
	failures  map[string]error
	calls     []DirectionsCall
}

func NewMockDirections() *MockDirections {
	return &MockDirections{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		overrides:   make(map[string][]float64),
		failures:    make(map[string]error),
	}
}

func originKey(c models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lng)
}

// SetLegs fixes the leg durations returned for one exact request
func (m *MockDirections) SetLegs(origin, destination models.Coordinates, waypoints []models.Coordinates, legs []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[directions.CacheKey(origin, destination, waypoints)] = legs
}

// FailFrom makes every request starting at origin fail with err
func (m *MockDirections) FailFrom(origin models.Coordinates, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[originKey(origin)] = err
}

// ComputeRoute returns deterministic leg durations for the request
func (m *MockDirections) ComputeRoute(ctx context.Context, origin, destination models.Coordinates, waypoints []models.Coordinates) (*directions.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, DirectionsCall{
		Origin:      origin,
		Destination: destination,
		Waypoints:   append([]models.Coordinates(nil), waypoints...),
	})

	if err, ok := m.failures[originKey(origin)]; ok {
		return nil, err
	}

	if legs, ok := m.overrides[directions.CacheKey(origin, destination, waypoints)]; ok {
		return &directions.Route{LegDurations: append([]float64(nil), legs...), Geometry: "mock"}, nil
	}

	points := append(append([]models.Coordinates{origin}, waypoints...), destination)
	legs := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		dLat := points[i].Lat - points[i-1].Lat
		dLng := points[i].Lng - points[i-1].Lng
		dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
		legs[i-1] = dist / 50000 * 3600
	}
	return &directions.Route{LegDurations: legs, Geometry: "mock"}, nil
}

// Calls returns a copy of the recorded calls
func (m *MockDirections) Calls() []DirectionsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DirectionsCall(nil), m.calls...)
}

// CallsFrom counts calls whose origin is c
func (m *MockDirections) CallsFrom(c models.Coordinates) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if originKey(call.Origin) == originKey(c) {
			n++
		}
	}
	return n
}

// ResetCalls clears the recorded calls
func (m *MockDirections) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockRouteCache is an in-memory directions.Cache for testing
type MockRouteCache struct {
	mu      sync.Mutex
	entries map[string]*models.RouteCacheEntry
	GetErr  error
	SetErr  error
}

func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{entries: make(map[string]*models.RouteCacheEntry)}
}

func (c *MockRouteCache) Get(ctx context.Context, key string) (*models.RouteCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (c *MockRouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	copied := *entry
	c.entries[entry.Key] = &copied
	return nil
}

// Count returns the number of entries in the cache
func (c *MockRouteCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
