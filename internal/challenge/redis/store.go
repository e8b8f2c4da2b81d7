// Package redis provides a Redis-backed challenge store for deployments where
// verification may land on a different instance than generation.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"deafauth/backend/internal/challenge/domain"
)

const keyPrefix = "visual_challenge:"

// Store persists challenges in Redis with a TTL equal to their remaining
// validity, so Redis reaps what lazy access checks would otherwise catch.
type Store struct {
	client *goredis.Client
	nowF   func() time.Time
}

// NewStore returns a Store using the given client.
func NewStore(client *goredis.Client) *Store {
	return &Store{
		client: client,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Put stores c under visual_challenge:<id> with TTL to its deadline.
// Challenges already past their deadline are not stored.
func (s *Store) Put(ctx context.Context, c domain.VisualChallenge) error {
	ttl := c.Deadline().Sub(s.nowF())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("challenge store: marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+c.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("challenge store: set: %w", err)
	}
	return nil
}

// Get returns the challenge for id if present and still usable. The deadline
// is re-checked on read; Redis TTL alone is not trusted for correctness.
func (s *Store) Get(ctx context.Context, id string) (domain.VisualChallenge, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.VisualChallenge{}, false, nil
		}
		return domain.VisualChallenge{}, false, fmt.Errorf("challenge store: get: %w", err)
	}
	var c domain.VisualChallenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.VisualChallenge{}, false, fmt.Errorf("challenge store: unmarshal: %w", err)
	}
	if !c.Usable(s.nowF()) {
		_ = s.client.Del(ctx, keyPrefix+id).Err()
		return domain.VisualChallenge{}, false, nil
	}
	return c, true, nil
}

// Delete removes the challenge for id. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("challenge store: del: %w", err)
	}
	return nil
}
