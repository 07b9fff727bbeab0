// Package estimate previews the duration of a vehicle route: travel time from
// the mapping service plus a fixed dwell time per routable stop.
package estimate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"route-editor/internal/directions"
	"route-editor/internal/logging"
	"route-editor/internal/models"
)

const (
	DefaultHomeVisitDwell = 2100 * time.Second
	DefaultAdmissionDwell = 3600 * time.Second
)

// DefaultDwell returns the dwell time per category. Categories not listed
// contribute zero.
func DefaultDwell() map[models.Category]time.Duration {
	return map[models.Category]time.Duration{
		models.CategoryHomeVisit: DefaultHomeVisitDwell,
		models.CategoryAdmission: DefaultAdmissionDwell,
	}
}

// Estimate is the preview duration of one vehicle route
type Estimate struct {
	VehicleID    string
	LegDurations []float64
	TravelSecs   float64
	DwellSecs    float64
	TotalSeconds float64
	Hours        float64
	Geometry     string
}

// ErrEstimateFailed is returned when the mapping service could not compute
// the route of a vehicle
type ErrEstimateFailed struct {
	VehicleID string
	Err       error
}

func (e *ErrEstimateFailed) Error() string {
	return fmt.Sprintf("duration estimate for %s failed: %v", e.VehicleID, e.Err)
}

func (e *ErrEstimateFailed) Unwrap() error {
	return e.Err
}

// Estimator computes duration previews
type Estimator struct {
	directions directions.Client
	dwell      map[models.Category]time.Duration
	logger     *zap.Logger
}

// NewEstimator creates an estimator. A nil dwell map uses DefaultDwell.
func NewEstimator(client directions.Client, dwell map[models.Category]time.Duration, logger *zap.Logger) *Estimator {
	if dwell == nil {
		dwell = DefaultDwell()
	}
	return &Estimator{
		directions: client,
		dwell:      dwell,
		logger:     logging.OrNop(logger).Named("estimate"),
	}
}

// Dwell returns the dwell time of a category
func (e *Estimator) Dwell(c models.Category) time.Duration {
	return e.dwell[c]
}

// HoursFromSeconds converts seconds to hours rounded to two decimals
func HoursFromSeconds(secs float64) float64 {
	return math.Round(secs/3600*100) / 100
}

// Waypoints returns the locations of the routable stops that can be driven
// to, in route order
func Waypoints(route models.VehicleRoute) []models.Coordinates {
	var waypoints []models.Coordinates
	for _, s := range route.Stops {
		if s.Routable() && s.HasLocation() {
			waypoints = append(waypoints, *s.Location)
		}
	}
	return waypoints
}

// Estimate computes the preview for one route. Only routable stops with a
// location become waypoints; the route starts and ends at the vehicle origin.
func (e *Estimator) Estimate(ctx context.Context, route models.VehicleRoute) (*Estimate, error) {
	waypoints := Waypoints(route)
	var dwell time.Duration
	for _, s := range route.Stops {
		if s.Routable() && s.HasLocation() {
			dwell += e.dwell[s.Category]
		}
	}

	result := &Estimate{VehicleID: route.VehicleID}
	if len(waypoints) == 0 {
		return result, nil
	}

	start := time.Now()
	r, err := e.directions.ComputeRoute(ctx, route.Origin, route.Origin, waypoints)
	if err != nil {
		return nil, &ErrEstimateFailed{VehicleID: route.VehicleID, Err: err}
	}

	result.LegDurations = r.LegDurations
	result.Geometry = r.Geometry
	result.TravelSecs = r.TotalSeconds()
	result.DwellSecs = dwell.Seconds()
	result.TotalSeconds = result.TravelSecs + result.DwellSecs
	result.Hours = HoursFromSeconds(result.TotalSeconds)

	e.logger.Debug("Estimated route",
		zap.String("vehicle", route.VehicleID),
		zap.Int("waypoints", len(waypoints)),
		zap.Float64("travel_secs", result.TravelSecs),
		zap.Float64("dwell_secs", result.DwellSecs),
		zap.Float64("hours", result.Hours),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// EstimateAll estimates every route concurrently and waits for all of them.
// A failed estimate is logged and left out of the result; it never cancels
// the others. The returned map is keyed by vehicle id.
func (e *Estimator) EstimateAll(ctx context.Context, routes []models.VehicleRoute) map[string]*Estimate {
	results := make(map[string]*Estimate, len(routes))
	var mu sync.Mutex

	var g errgroup.Group
	for _, route := range routes {
		g.Go(func() error {
			est, err := e.Estimate(ctx, route)
			if err != nil {
				e.logger.Warn("Duration estimate failed, keeping previous value",
					zap.String("vehicle", route.VehicleID),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			results[route.VehicleID] = est
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}
