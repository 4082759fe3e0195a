package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is the default buffer store: a process-local map guarded
// by a mutex. Buffers live for the duration of an active chat process and
// are removed only by an explicit clear.
type InMemoryStore struct {
	mu      sync.RWMutex
	buffers map[string]*SessionBuffer
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{buffers: make(map[string]*SessionBuffer)}
}

func (s *InMemoryStore) Create(_ context.Context, sessionID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buffers[sessionID]; ok {
		return false, nil
	}
	s.buffers[sessionID] = &SessionBuffer{SessionID: sessionID, UserID: userID}
	return true, nil
}

func (s *InMemoryStore) Reset(_ context.Context, sessionID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.buffers[sessionID]
	s.buffers[sessionID] = &SessionBuffer{SessionID: sessionID, UserID: userID}
	return existed, nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, sessionID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[sessionID]
	if !ok {
		return ErrNotFound
	}
	b.Turns = append(b.Turns, t)
	return nil
}

func (s *InMemoryStore) TurnCount(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	return len(b.Turns), nil
}

func (s *InMemoryStore) Snapshot(_ context.Context, sessionID string) (*SessionBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBuffer(b), nil
}

func (s *InMemoryStore) AppendSummary(_ context.Context, sessionID string, sum RollingSummary, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[sessionID]
	if !ok {
		return ErrNotFound
	}
	b.RollingSummaries = append(b.RollingSummaries, sum)
	b.EmotionTrail = append(b.EmotionTrail, sum.Emotion)
	b.LastCompressedAt = at
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buffers[sessionID]; !ok {
		return false, nil
	}
	delete(s.buffers, sessionID)
	return true, nil
}

func cloneBuffer(b *SessionBuffer) *SessionBuffer {
	c := &SessionBuffer{
		SessionID:        b.SessionID,
		UserID:           b.UserID,
		LastCompressedAt: b.LastCompressedAt,
	}
	c.Turns = append(c.Turns, b.Turns...)
	c.RollingSummaries = append(c.RollingSummaries, b.RollingSummaries...)
	c.EmotionTrail = append(c.EmotionTrail, b.EmotionTrail...)
	return c
}
