package session

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"route-editor/internal/backend"
	"route-editor/internal/editing"
	"route-editor/internal/estimate"
	"route-editor/internal/models"
)

// PipelineResult reports what happened after an edit
type PipelineResult struct {
	// Estimated lists vehicles whose preview duration was updated
	Estimated []string
	// EstimateFailed lists vehicles that kept their previous preview
	EstimateFailed []string
	// Discarded is set when the model was replaced while the estimates were
	// in flight, so they were dropped
	Discarded bool
	Synced    bool
	SyncErr   error
}

// Pipeline is the handle of one edit's estimate/sync run
type Pipeline struct {
	Move   *editing.Move
	done   chan struct{}
	result *PipelineResult
}

func newPipeline(move *editing.Move) *Pipeline {
	return &Pipeline{Move: move, done: make(chan struct{})}
}

// Done is closed once the sync has been answered
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pipeline finishes or ctx is done
func (p *Pipeline) Wait(ctx context.Context) (*PipelineResult, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) finish(result *PipelineResult) {
	p.result = result
	close(p.done)
}

// startPipelineLocked captures the routes whose estimates are stale and
// hands them to a background run
func (s *Session) startPipelineLocked(move *editing.Move) *Pipeline {
	routes := lo.FilterMap(move.AffectedVehicles, func(id string, _ int) (models.VehicleRoute, bool) {
		return s.model.Route(id)
	})
	p := newPipeline(move)
	s.pending++
	s.wg.Add(1)
	go s.runPipeline(p, s.epoch, routes)
	return p
}

// runPipeline estimates every affected route, waits for all of them, then
// submits the whole model exactly once. Responses are applied as they
// arrive, so the last one received wins regardless of dispatch order.
func (s *Session) runPipeline(p *Pipeline, epoch uint64, routes []models.VehicleRoute) {
	defer s.wg.Done()
	ctx := context.Background()
	result := &PipelineResult{}

	var estimates map[string]*estimate.Estimate
	if len(routes) > 0 {
		estimates = s.deps.Estimator.EstimateAll(ctx, routes)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		result.Discarded = true
		s.logger.Debug("Dropping estimates issued before the routes were replaced",
			zap.Int("vehicles", len(routes)))
	} else {
		for _, r := range routes {
			est, ok := estimates[r.VehicleID]
			if !ok {
				result.EstimateFailed = append(result.EstimateFailed, r.VehicleID)
				continue
			}
			s.model.SetEstimate(r.VehicleID, est.Hours)
			s.geometries[r.VehicleID] = routeGeometry{signature: signature(r), geometry: est.Geometry}
			result.Estimated = append(result.Estimated, r.VehicleID)
		}
	}
	snap := s.model.Snapshot()
	s.mu.Unlock()

	start := time.Now()
	authoritative, err := s.deps.Backend.Sync(ctx, snap)

	s.mu.Lock()
	s.pending--
	if err != nil {
		result.SyncErr = err
		s.notice = &models.Notice{Kind: models.NoticeSyncFailed, Message: syncMessage(err), CreatedAt: time.Now()}
		s.logger.Warn("Sync failed, keeping current routes", zap.Error(err))
	} else {
		s.replaceLocked(*authoritative)
		s.notice = nil
		result.Synced = true
		s.logger.Info("Sync applied",
			zap.Int("routes", len(authoritative.Routes)),
			zap.Duration("elapsed", time.Since(start)))
	}
	if s.pending == 0 {
		s.drag.Settle()
	}
	s.mu.Unlock()

	if result.Synced {
		s.fillGeometries(ctx)
		s.archive(ctx, SourceSync, *authoritative)
	}
	p.finish(result)
}

func syncMessage(err error) string {
	var syncErr *backend.ErrSyncFailed
	if errors.As(err, &syncErr) && syncErr.Message != "" {
		return syncErr.Message
	}
	return err.Error()
}
