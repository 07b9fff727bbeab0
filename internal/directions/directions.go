// Package directions talks to the mapping service that turns an ordered list
// of waypoints into a drivable closed route with per-leg travel durations.
package directions

import (
	"context"
	"fmt"
	"strings"

	"route-editor/internal/models"
)

// Route is a computed route: one duration per leg (origin→first waypoint,
// …, last waypoint→destination) and an encoded polyline for rendering.
type Route struct {
	LegDurations []float64
	Geometry     string
}

// TotalSeconds sums the leg durations
func (r *Route) TotalSeconds() float64 {
	var total float64
	for _, d := range r.LegDurations {
		total += d
	}
	return total
}

// Client computes routes
type Client interface {
	ComputeRoute(ctx context.Context, origin, destination models.Coordinates, waypoints []models.Coordinates) (*Route, error)
}

// ErrRouteFailed is returned when the mapping service fails or answers with a
// non-success status
type ErrRouteFailed struct {
	Provider string
	Status   string
	Reason   string
}

func (e *ErrRouteFailed) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s route failed: status=%s %s", e.Provider, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s route failed: %s", e.Provider, e.Reason)
}

// CacheKey identifies a waypoint sequence at ~1m precision
func CacheKey(origin, destination models.Coordinates, waypoints []models.Coordinates) string {
	parts := make([]string, 0, len(waypoints)+2)
	parts = append(parts, coordKey(origin))
	for _, w := range waypoints {
		parts = append(parts, coordKey(w))
	}
	parts = append(parts, coordKey(destination))
	return strings.Join(parts, ";")
}

func coordKey(c models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", models.RoundCoordinate(c.Lat), models.RoundCoordinate(c.Lng))
}
