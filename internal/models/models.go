package models

import (
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundCoordinate rounds to 5 decimal places (~1m), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Category is the visit type of a stop
type Category string

const (
	CategoryHomeVisit Category = "HB"          // on-site home visit
	CategoryAdmission Category = "Neuaufnahme" // first visit of a new patient
	CategoryPhone     Category = "TK"          // telephone consult, never driven to
)

// Routable reports whether stops of this category take part in route computation.
// Unknown categories are routable.
func (c Category) Routable() bool {
	return c != CategoryPhone
}

// Stop is a point to visit. Key is the cross-reference identity.
type Stop struct {
	Key      string       `json:"patient"`
	Address  string       `json:"address"`
	Category Category     `json:"visit_type"`
	Location *Coordinates `json:"location,omitempty"`
	Sequence int          `json:"sequence,omitempty"`
}

// Routable reports whether the stop is part of the driven route
func (s *Stop) Routable() bool {
	return s.Category.Routable()
}

// HasLocation reports whether the stop can be placed on the map
func (s *Stop) HasLocation() bool {
	return s.Location != nil
}

// Clone returns a deep copy of the stop
func (s Stop) Clone() Stop {
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	return s
}

// VehicleRoute is one vehicle's assignment. Routes are closed loops starting and
// ending at Origin.
type VehicleRoute struct {
	VehicleID              string      `json:"vehicle"`
	Origin                 Coordinates `json:"vehicle_start"`
	Stops                  []Stop      `json:"stops"`
	EstimatedDurationHours float64     `json:"duration_hours"`
	CapacityHours          float64     `json:"capacity_hours"`
	Label                  string      `json:"function,omitempty"`
}

// WithinCapacity is the pass/fail flag shown next to the duration
func (r *VehicleRoute) WithinCapacity() bool {
	return r.EstimatedDurationHours <= r.CapacityHours
}

// RoutableStops returns the routable stops in route order
func (r *VehicleRoute) RoutableStops() []Stop {
	var stops []Stop
	for _, s := range r.Stops {
		if s.Routable() {
			stops = append(stops, s)
		}
	}
	return stops
}

// RoutableCount returns the length of the leading routable block
func (r *VehicleRoute) RoutableCount() int {
	n := 0
	for i := range r.Stops {
		if r.Stops[i].Routable() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the route
func (r VehicleRoute) Clone() VehicleRoute {
	r.Stops = CloneStops(r.Stops)
	return r
}

// CloneStops deep-copies a stop list, preserving nil vs empty
func CloneStops(stops []Stop) []Stop {
	if stops == nil {
		return nil
	}
	result := make([]Stop, len(stops))
	for i, s := range stops {
		result[i] = s.Clone()
	}
	return result
}

// Snapshot is a complete set of vehicle routes plus the unassigned pool
type Snapshot struct {
	Routes     []VehicleRoute `json:"routes"`
	Unassigned []Stop         `json:"unassignedStops"`
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	routes := make([]VehicleRoute, len(s.Routes))
	for i, r := range s.Routes {
		routes[i] = r.Clone()
	}
	return Snapshot{Routes: routes, Unassigned: CloneStops(s.Unassigned)}
}

// StopCount returns the number of stops over all containers
func (s *Snapshot) StopCount() int {
	n := len(s.Unassigned)
	for _, r := range s.Routes {
		n += len(r.Stops)
	}
	return n
}

// ContainerRef addresses a stop container: a vehicle route, or the unassigned pool
// when VehicleID is empty.
type ContainerRef struct {
	VehicleID string `json:"vehicle,omitempty"`
	Pool      bool   `json:"pool,omitempty"`
}

// Vehicle returns a reference to a vehicle route container
func Vehicle(id string) ContainerRef {
	return ContainerRef{VehicleID: id}
}

// Pool returns a reference to the unassigned pool
func Pool() ContainerRef {
	return ContainerRef{Pool: true}
}

// IsPool reports whether the reference names the unassigned pool
func (c ContainerRef) IsPool() bool {
	return c.Pool || c.VehicleID == ""
}

// Valid reports whether exactly one of a vehicle or the pool is named
func (c ContainerRef) Valid() bool {
	return (c.VehicleID != "") != c.Pool
}

func (c ContainerRef) String() string {
	if c.IsPool() {
		return "pool"
	}
	return "vehicle:" + c.VehicleID
}

// ArchivedSnapshot is an authoritative snapshot kept in the archive. Listings
// leave Snapshot nil.
type ArchivedSnapshot struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Source     string    `json:"source"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	RouteCount int       `json:"route_count"`
	StopCount  int       `json:"stop_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RouteCacheEntry is a cached directions result for one waypoint sequence
type RouteCacheEntry struct {
	Key          string    `json:"key"`
	LegDurations []float64 `json:"leg_durations"`
	Geometry     string    `json:"geometry"`
	CreatedAt    time.Time `json:"created_at"`
}

// NoticeKind classifies an operator notice
type NoticeKind string

const (
	NoticeSyncFailed NoticeKind = "sync_failed"
	NoticeLoadFailed NoticeKind = "load_failed"
)

// Notice is a failure the operator has to see: the displayed routes may no
// longer match what the backend holds.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}
