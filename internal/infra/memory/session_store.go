package memory

import (
	"context"
	"sync"

	"assessprep-service/internal/domain"
	"assessprep-service/internal/session"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// State lives inside the engines themselves, so Persist is a no-op; the
// store only tracks which engines exist.
type SessionStore struct {
	mu      sync.RWMutex
	engines map[string]*session.Engine
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		engines: make(map[string]*session.Engine),
	}
}

func (s *SessionStore) GetOrCreate(_ context.Context, sessionID string) (*session.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[sessionID]; ok {
		return eng, nil
	}
	eng := session.NewEngine()
	s.engines[sessionID] = eng
	return eng, nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*session.Engine, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eng, ok := s.engines[sessionID]
	return eng, ok, nil
}

func (s *SessionStore) Persist(_ context.Context, _ string, _ domain.SessionState) error {
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.engines, sessionID)
	return nil
}
