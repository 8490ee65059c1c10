package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"assessprep-service/internal/domain"
	"assessprep-service/internal/session"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Live engines stay in a local map (subscriptions and the tick driver need
// the in-process object); Redis holds the serialized snapshot under one
// key per session, so a new process — or a client reload hitting another
// instance — rehydrates the attempt from the last persisted tick.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu      sync.Mutex
	engines map[string]*session.Engine
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		engines: make(map[string]*session.Engine),
	}
}

func (s *SessionStore) GetOrCreate(ctx context.Context, sessionID string) (*session.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[sessionID]; ok {
		return eng, nil
	}

	eng := session.NewEngine()
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	switch {
	case err == nil:
		var st domain.SessionState
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode persisted session %s: %w", sessionID, err)
		}
		if err := eng.Restore(st); err != nil {
			return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
		}
	case errors.Is(err, redis.Nil):
		// fresh session
	default:
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	s.engines[sessionID] = eng
	return eng, nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*session.Engine, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[sessionID]
	return eng, ok, nil
}

func (s *SessionStore) Persist(ctx context.Context, sessionID string, st domain.SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.engines, sessionID)
	s.mu.Unlock()
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "assessprep:session:" + sessionID
}
