// Package session owns one dispatcher's editing session: the route model, the
// drag controller and the estimate/sync pipeline that follows every edit. A
// Session is the single writer of its model; every access goes through its
// mutex and network calls run outside of it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"route-editor/internal/backend"
	"route-editor/internal/directions"
	"route-editor/internal/editing"
	"route-editor/internal/estimate"
	"route-editor/internal/geocoding"
	"route-editor/internal/logging"
	"route-editor/internal/models"
	"route-editor/internal/policy"
	"route-editor/internal/presentation"
)

// Snapshot sources recorded in the archive
const (
	SourceLoad = "load"
	SourceSync = "sync"
)

// Archive keeps authoritative snapshots
type Archive interface {
	Save(ctx context.Context, rec *models.ArchivedSnapshot) error
}

// Deps are the collaborators shared by all sessions
type Deps struct {
	Backend   backend.Client
	Estimator *estimate.Estimator
	// Geocoder backfills missing stop locations at load when set
	Geocoder geocoding.Geocoder
	// Archive receives every authoritative snapshot when set
	Archive Archive
	Logger  *zap.Logger
}

type routeGeometry struct {
	signature string
	geometry  string
}

// Session is one editing session
type Session struct {
	ID        string
	CreatedAt time.Time

	deps   Deps
	logger *zap.Logger

	mu            sync.Mutex
	model         *editing.Model
	drag          *editing.DragController
	authoritative models.Snapshot
	// epoch advances whenever the model is replaced wholesale; estimates
	// issued under an older epoch are dropped
	epoch      uint64
	geometries map[string]routeGeometry
	notice     *models.Notice
	pending    int

	wg sync.WaitGroup
}

func newSession(id string, deps Deps) *Session {
	model := editing.NewModel(models.Snapshot{})
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		deps:       deps,
		logger:     logging.OrNop(deps.Logger).Named("session").With(zap.String("session_id", id)),
		model:      model,
		drag:       editing.NewDragController(model),
		geometries: make(map[string]routeGeometry),
	}
}

// load hydrates the model from the backend. A failed load leaves the model
// empty and raises a notice.
func (s *Session) load(ctx context.Context) {
	snap, err := s.deps.Backend.Load(ctx)
	if err != nil {
		s.logger.Error("Initial load failed, starting with empty routes", zap.Error(err))
		s.mu.Lock()
		s.notice = &models.Notice{Kind: models.NoticeLoadFailed, Message: err.Error(), CreatedAt: time.Now()}
		s.mu.Unlock()
		return
	}

	if s.deps.Geocoder != nil {
		geocoding.Backfill(ctx, s.deps.Geocoder, snap, s.logger)
	}

	s.mu.Lock()
	s.replaceLocked(*snap)
	s.mu.Unlock()

	s.logger.Info("Session loaded",
		zap.Int("routes", len(snap.Routes)),
		zap.Int("stops", snap.StopCount()))
	s.fillGeometries(ctx)
	s.archive(ctx, SourceLoad, *snap)
}

// fillGeometries fetches a drawable route for every vehicle whose current
// stop order has none. Preview durations are left alone; they stay whatever
// the backend last sent.
func (s *Session) fillGeometries(ctx context.Context) {
	if s.deps.Estimator == nil {
		return
	}

	s.mu.Lock()
	missing := lo.Filter(s.model.Routes(), func(r models.VehicleRoute, _ int) bool {
		if len(estimate.Waypoints(r)) == 0 {
			return false
		}
		g, ok := s.geometries[r.VehicleID]
		return !ok || g.signature != signature(r)
	})
	s.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	estimates := s.deps.Estimator.EstimateAll(ctx, missing)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range missing {
		est, ok := estimates[r.VehicleID]
		if !ok {
			continue
		}
		// the route may have been edited while the request was out
		current, ok := s.model.Route(r.VehicleID)
		if !ok || signature(current) != signature(r) {
			continue
		}
		s.geometries[r.VehicleID] = routeGeometry{signature: signature(r), geometry: est.Geometry}
	}
}

// replaceLocked installs an authoritative snapshot as the new model
func (s *Session) replaceLocked(snap models.Snapshot) {
	s.model = editing.NewModel(snap)
	s.authoritative = s.model.Snapshot()
	s.drag.Rebind(s.model)
	s.epoch++
}

func (s *Session) archive(ctx context.Context, source string, snap models.Snapshot) {
	if s.deps.Archive == nil {
		return
	}
	rec := &models.ArchivedSnapshot{
		SessionID:  s.ID,
		Source:     source,
		Snapshot:   &snap,
		RouteCount: len(snap.Routes),
		StopCount:  snap.StopCount(),
		CreatedAt:  time.Now(),
	}
	if err := s.deps.Archive.Save(ctx, rec); err != nil {
		s.logger.Warn("Failed to archive snapshot", zap.String("source", source), zap.Error(err))
	}
}

// BeginDrag starts a drag gesture on a stop
func (s *Session) BeginDrag(stopKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Begin(stopKey)
}

// Hover reports where the dragged stop would land in target. shown is false
// when target rejects the stop.
func (s *Session) Hover(target models.ContainerRef, cursorY float64, boxes []policy.ItemBox) (marker *editing.Marker, shown bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Hover(target, cursorY, boxes)
}

// CancelDrag abandons the current gesture
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

// Drop releases the dragged stop over target (nil = outside any container).
// A legal drop mutates the model and starts the estimate/sync pipeline; the
// returned pipeline is nil when the stop landed where it already was.
func (s *Session) Drop(target *models.ContainerRef, cursorY float64, boxes []policy.ItemBox) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	move, err := s.drag.Release(target, cursorY, boxes)
	if err != nil {
		s.logger.Debug("Drop rejected", zap.Error(err))
		return nil, err
	}
	if !move.Changed() {
		s.drag.Settle()
		return nil, nil
	}

	s.logger.Info("Stop dropped",
		zap.String("stop", move.StopKey),
		zap.Stringer("from", move.From),
		zap.Stringer("to", move.To),
		zap.Int("index", move.ToIndex))
	return s.startPipelineLocked(move), nil
}

// Move places a stop directly, without a gesture, and runs the same pipeline
// as a drop. It is refused while a gesture is in progress.
func (s *Session) Move(stopKey string, target models.ContainerRef, index int) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag.State() == editing.DragDragging {
		return nil, editing.ErrAlreadyDragging
	}
	move, err := s.model.MoveStop(stopKey, target, index)
	if err != nil {
		return nil, err
	}
	s.model.RecomputeSequenceNumbers()
	if !move.Changed() {
		return nil, nil
	}

	s.logger.Info("Stop moved",
		zap.String("stop", move.StopKey),
		zap.Stringer("from", move.From),
		zap.Stringer("to", move.To),
		zap.Int("index", move.ToIndex))
	return s.startPipelineLocked(move), nil
}

// Reset discards local edits and restores the last authoritative snapshot.
// Estimates still in flight are dropped; no sync is issued.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(s.authoritative)
	s.notice = nil
	s.logger.Info("Session reset to last authoritative routes")
}

// Snapshot returns a copy of the current model
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Snapshot()
}

// Authoritative returns a copy of the last snapshot received from the backend
func (s *Session) Authoritative() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authoritative.Clone()
}

// Notice returns the current operator notice, if any
func (s *Session) Notice() *models.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// DragState returns the drag controller state
func (s *Session) DragState() editing.DragState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.State()
}

// Wait blocks until every pipeline started so far has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

// View renders the current state
func (s *Session) View() *presentation.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	routes := s.model.Routes()
	geometries := make(map[string]string, len(routes))
	for _, r := range routes {
		g, ok := s.geometries[r.VehicleID]
		if ok && g.signature == signature(r) {
			geometries[r.VehicleID] = g.geometry
		}
	}

	drag := presentation.DragStatus{State: s.drag.State().String()}
	if key, source, ok := s.drag.Dragged(); ok {
		drag.StopKey = key
		drag.Source = &source
	}

	var notice *models.Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}

	counts := presentation.Counts{
		StopsPerVehicle:     make(map[string]int, len(routes)),
		TotalStops:          s.model.TotalStops(),
		AssignedNonRoutable: s.model.AssignedNonRoutable(),
	}
	for _, r := range routes {
		counts.StopsPerVehicle[r.VehicleID] = s.model.StopCount(r.VehicleID)
	}

	return presentation.Build(presentation.Input{
		SessionID:  s.ID,
		Routes:     routes,
		Pool:       s.model.Pool(),
		Geometries: geometries,
		Drag:       drag,
		Syncing:    s.pending > 0,
		Notice:     notice,
		Counts:     counts,
	})
}

// signature identifies the drivable waypoint sequence of a route, so a drawn
// geometry is only reused while the route it was computed for is unchanged
func signature(r models.VehicleRoute) string {
	return directions.CacheKey(r.Origin, r.Origin, estimate.Waypoints(r))
}
