package challenge

import (
	"context"
	"sync"
	"time"

	"deafauth/backend/internal/challenge/domain"
)

// Store keeps issued challenges between generation and verification. Expiry is
// checked lazily on access; correctness does not depend on a background
// reaper.
type Store interface {
	// Put stores the challenge until its deadline passes.
	Put(ctx context.Context, c domain.VisualChallenge) error
	// Get returns the challenge if present and still usable. ok is false when
	// missing or past its deadline.
	Get(ctx context.Context, id string) (c domain.VisualChallenge, ok bool, err error)
	// Delete removes the challenge, e.g. after successful verification.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]domain.VisualChallenge
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]domain.VisualChallenge),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores c keyed by its ID. A later Put with the same ID replaces the
// stored value (used by timeout extension).
func (s *MemoryStore) Put(ctx context.Context, c domain.VisualChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[c.ID] = c
	return nil
}

// Get returns the challenge for id if present and not past its deadline.
// Expired entries are removed on access.
func (s *MemoryStore) Get(ctx context.Context, id string) (domain.VisualChallenge, bool, error) {
	s.mu.RLock()
	c, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return domain.VisualChallenge{}, false, nil
	}
	if !c.Usable(s.nowF()) {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
		return domain.VisualChallenge{}, false, nil
	}
	return c, true, nil
}

// Delete removes the challenge for id. Missing entries are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}
