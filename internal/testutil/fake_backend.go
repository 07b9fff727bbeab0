package testutil

import (
	"context"
	"sync"

	"route-editor/internal/models"
)

// SyncFunc answers one sync call. call is the zero-based index of the call.
type SyncFunc func(ctx context.Context, call int, snap models.Snapshot) (*models.Snapshot, error)

// FakeBackend is an in-memory route optimizer. By default a sync echoes the
// submitted snapshot back as the authoritative one.
type FakeBackend struct {
	mu       sync.Mutex
	snapshot models.Snapshot
	loadErr  error
	syncFunc SyncFunc
	loads    int
	syncs    []models.Snapshot
}

func NewFakeBackend(snap models.Snapshot) *FakeBackend {
	return &FakeBackend{snapshot: snap.Clone()}
}

// FailLoad makes Load return err
func (f *FakeBackend) FailLoad(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

// OnSync replaces the sync behaviour. fn runs without the fake's lock held,
// so it may block.
func (f *FakeBackend) OnSync(fn SyncFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncFunc = fn
}

func (f *FakeBackend) Load(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	snap := f.snapshot.Clone()
	return &snap, nil
}

func (f *FakeBackend) Sync(ctx context.Context, snap models.Snapshot) (*models.Snapshot, error) {
	f.mu.Lock()
	call := len(f.syncs)
	f.syncs = append(f.syncs, snap.Clone())
	fn := f.syncFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, call, snap)
	}
	echoed := snap.Clone()
	return &echoed, nil
}

// Loads returns the number of Load calls
func (f *FakeBackend) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Syncs returns copies of every submitted snapshot
func (f *FakeBackend) Syncs() []models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Snapshot, len(f.syncs))
	for i, s := range f.syncs {
		result[i] = s.Clone()
	}
	return result
}

// SyncCount returns the number of Sync calls
func (f *FakeBackend) SyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncs)
}
