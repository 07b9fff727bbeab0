package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-editor/internal/logging"
)

// Store manages editing sessions in memory
type Store struct {
	deps     Deps
	logger   *zap.Logger
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStore creates a new session store
func NewStore(deps Deps) *Store {
	return &Store{
		deps:     deps,
		logger:   logging.OrNop(deps.Logger).Named("session"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a session and loads the initial routes into it. A failed
// load still yields a session, with an empty model and a notice.
func (s *Store) Create(ctx context.Context) *Session {
	session := newSession(uuid.NewString(), s.deps)
	session.load(ctx)

	s.mu.Lock()
	s.sessions[session.ID] = session
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("Created route session", zap.String("session_id", session.ID), zap.Int("active", count))
	return session
}

func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete removes a session. Pipelines still running finish on their own.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.logger.Info("Deleted route session", zap.String("session_id", id))
	}
	return ok
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Wait blocks until every running pipeline of every session has finished
func (s *Store) Wait() {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.Wait()
	}
}
