// Package editing holds the client-side route model and the drag interaction
// controller that mutates it.
package editing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"route-editor/internal/models"
	"route-editor/internal/policy"
)

var (
	// ErrStopNotFound is returned when a stop key is not present in any container
	ErrStopNotFound = errors.New("stop not found")
	// ErrContainerNotFound is returned when a move targets an unknown vehicle
	ErrContainerNotFound = errors.New("container not found")
)

// Move describes a completed MoveStop
type Move struct {
	StopKey   string
	From      models.ContainerRef
	To        models.ContainerRef
	FromIndex int
	ToIndex   int
	// AffectedVehicles lists the vehicles whose routable stop list changed,
	// in route order. Only these need a fresh duration estimate.
	AffectedVehicles []string
}

// Changed reports whether the move altered the model
func (mv *Move) Changed() bool {
	return !sameContainer(mv.From, mv.To) || mv.FromIndex != mv.ToIndex
}

// Model is the in-memory set of vehicle routes plus the unassigned pool. It is
// not safe for concurrent use; the owning session serializes access.
type Model struct {
	routes []models.VehicleRoute
	pool   []models.Stop
}

// NewModel builds a model from a snapshot. The snapshot is deep-copied and
// non-routable stops are moved behind the routable ones, keeping their
// relative order.
func NewModel(snap models.Snapshot) *Model {
	snap = snap.Clone()
	m := &Model{routes: snap.Routes, pool: snap.Unassigned}
	if m.routes == nil {
		m.routes = []models.VehicleRoute{}
	}
	if m.pool == nil {
		m.pool = []models.Stop{}
	}
	for i := range m.routes {
		if m.routes[i].Stops == nil {
			m.routes[i].Stops = []models.Stop{}
		}
		sort.SliceStable(m.routes[i].Stops, func(a, b int) bool {
			return m.routes[i].Stops[a].Routable() && !m.routes[i].Stops[b].Routable()
		})
	}
	m.RecomputeSequenceNumbers()
	return m
}

// Routes returns a deep copy of the vehicle routes
func (m *Model) Routes() []models.VehicleRoute {
	routes := make([]models.VehicleRoute, len(m.routes))
	for i, r := range m.routes {
		routes[i] = r.Clone()
	}
	return routes
}

// Pool returns a deep copy of the unassigned pool
func (m *Model) Pool() []models.Stop {
	return models.CloneStops(m.pool)
}

// Snapshot returns a deep copy of the whole model
func (m *Model) Snapshot() models.Snapshot {
	return models.Snapshot{Routes: m.Routes(), Unassigned: m.Pool()}
}

// Route returns a copy of one vehicle route
func (m *Model) Route(vehicleID string) (models.VehicleRoute, bool) {
	for _, r := range m.routes {
		if r.VehicleID == vehicleID {
			return r.Clone(), true
		}
	}
	return models.VehicleRoute{}, false
}

// Locate finds the container and index of a stop
func (m *Model) Locate(key string) (models.ContainerRef, int, bool) {
	for i := range m.routes {
		for j := range m.routes[i].Stops {
			if m.routes[i].Stops[j].Key == key {
				return models.Vehicle(m.routes[i].VehicleID), j, true
			}
		}
	}
	for j := range m.pool {
		if m.pool[j].Key == key {
			return models.Pool(), j, true
		}
	}
	return models.ContainerRef{}, -1, false
}

// Stop returns a copy of the stop with the given key
func (m *Model) Stop(key string) (models.Stop, bool) {
	ref, idx, ok := m.Locate(key)
	if !ok {
		return models.Stop{}, false
	}
	return (*m.list(ref))[idx].Clone(), true
}

// StopCount returns the number of stops on a vehicle route
func (m *Model) StopCount(vehicleID string) int {
	r := m.route(vehicleID)
	if r == nil {
		return 0
	}
	return len(r.Stops)
}

// AssignedNonRoutable returns the non-routable stops currently attached to a vehicle
func (m *Model) AssignedNonRoutable() []models.Stop {
	var result []models.Stop
	for _, r := range m.routes {
		result = append(result, lo.Filter(r.Stops, func(s models.Stop, _ int) bool {
			return !s.Routable()
		})...)
	}
	return models.CloneStops(result)
}

// TotalStops counts the stops over all containers
func (m *Model) TotalStops() int {
	return len(m.pool) + lo.SumBy(m.routes, func(r models.VehicleRoute) int {
		return len(r.Stops)
	})
}

// MoveStop moves a stop into target at index. index is interpreted against the
// target list with the stop already removed and is clamped per the placement
// policy; a negative index means the end of the legal range. A rejected move
// leaves the model untouched.
func (m *Model) MoveStop(key string, target models.ContainerRef, index int) (*Move, error) {
	from, fromIdx, ok := m.Locate(key)
	if !ok {
		return nil, fmt.Errorf("move %s: %w", key, ErrStopNotFound)
	}
	if !target.IsPool() && m.route(target.VehicleID) == nil {
		return nil, fmt.Errorf("move %s to %s: %w", key, target, ErrContainerNotFound)
	}

	source := m.list(from)
	stop := (*source)[fromIdx]

	if err := policy.CheckPlacement(&stop, target); err != nil {
		return nil, err
	}

	// Work on a copy of the target list without the stop, so a same-container
	// move and a cross-container move share one code path.
	dest := m.list(target)
	remaining := make([]models.Stop, 0, len(*dest))
	for i, s := range *dest {
		if sameContainer(from, target) && i == fromIdx {
			continue
		}
		remaining = append(remaining, s)
	}

	toIdx := policy.PlacementIndex(&stop, remaining, index)
	placed := make([]models.Stop, 0, len(remaining)+1)
	placed = append(placed, remaining[:toIdx]...)
	placed = append(placed, stop)
	placed = append(placed, remaining[toIdx:]...)

	if !sameContainer(from, target) {
		*source = append((*source)[:fromIdx:fromIdx], (*source)[fromIdx+1:]...)
	}
	*dest = placed

	move := &Move{
		StopKey:   key,
		From:      from,
		To:        target,
		FromIndex: fromIdx,
		ToIndex:   toIdx,
	}
	if stop.Routable() {
		move.AffectedVehicles = m.affected(from, target, fromIdx, toIdx)
	}
	return move, nil
}

// affected lists the vehicles whose routable sequence changed, in route order
func (m *Model) affected(from, to models.ContainerRef, fromIdx, toIdx int) []string {
	if sameContainer(from, to) && fromIdx == toIdx {
		return nil
	}
	touched := map[string]bool{}
	if !from.IsPool() {
		touched[from.VehicleID] = true
	}
	if !to.IsPool() {
		touched[to.VehicleID] = true
	}
	var ids []string
	for _, r := range m.routes {
		if touched[r.VehicleID] {
			ids = append(ids, r.VehicleID)
		}
	}
	return ids
}

// RecomputeSequenceNumbers assigns dense 1-based numbers to routable stops in
// list order and clears them on non-routable stops.
func (m *Model) RecomputeSequenceNumbers() {
	for i := range m.routes {
		seq := 0
		for j := range m.routes[i].Stops {
			stop := &m.routes[i].Stops[j]
			if stop.Routable() {
				seq++
				stop.Sequence = seq
			} else {
				stop.Sequence = 0
			}
		}
	}
	for j := range m.pool {
		m.pool[j].Sequence = 0
	}
}

// SetEstimate stores a preview duration for a vehicle. It reports false when
// the vehicle is unknown.
func (m *Model) SetEstimate(vehicleID string, hours float64) bool {
	r := m.route(vehicleID)
	if r == nil {
		return false
	}
	r.EstimatedDurationHours = hours
	return true
}

func (m *Model) route(vehicleID string) *models.VehicleRoute {
	for i := range m.routes {
		if m.routes[i].VehicleID == vehicleID {
			return &m.routes[i]
		}
	}
	return nil
}

func (m *Model) list(ref models.ContainerRef) *[]models.Stop {
	if ref.IsPool() {
		return &m.pool
	}
	return &m.route(ref.VehicleID).Stops
}

func sameContainer(a, b models.ContainerRef) bool {
	if a.IsPool() || b.IsPool() {
		return a.IsPool() && b.IsPool()
	}
	return a.VehicleID == b.VehicleID
}
