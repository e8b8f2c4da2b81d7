package challenge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"deafauth/backend/internal/challenge/domain"
)

func storeChallenge(id string, deadline time.Time) domain.VisualChallenge {
	return domain.VisualChallenge{
		ID:        id,
		Type:      domain.TypeGesture,
		CreatedAt: deadline.Add(-time.Minute),
		ExpiresAt: deadline,
		Gesture:   &domain.GesturePayload{Kind: domain.GestureTap, Direction: domain.DirectionUp},
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	c := storeChallenge("vc_1", now.Add(time.Minute))
	if err := s.Put(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, "vc_1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.ID != "vc_1" || got.Gesture == nil {
		t.Errorf("got = %+v", got)
	}

	if err := s.Delete(ctx, "vc_1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "vc_1"); ok {
		t.Error("challenge present after delete")
	}
	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Error("missing id reported present")
	}
}

func TestMemoryStore_ExpiresLazily(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	if err := s.Put(ctx, storeChallenge("vc_1", now.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "vc_1"); ok {
		t.Error("expired challenge still returned")
	}
	// The expired entry is dropped, not kept forever.
	s.mu.RLock()
	_, present := s.m["vc_1"]
	s.mu.RUnlock()
	if present {
		t.Error("expired entry not removed on access")
	}
}

func TestMemoryStore_ExtensionKeepsChallengeAlive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	c := storeChallenge("vc_1", now.Add(time.Minute))
	if err := s.Put(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, ExtendTimeout(c, 10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	now = now.Add(5 * time.Minute)
	if _, ok, _ := s.Get(ctx, "vc_1"); !ok {
		t.Error("extended challenge expired at original deadline")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	deadline := time.Now().UTC().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("vc_%d", i)
			for j := 0; j < 50; j++ {
				_ = s.Put(ctx, storeChallenge(id, deadline))
				_, _, _ = s.Get(ctx, id)
				_ = s.Delete(ctx, id)
			}
		}(i)
	}
	wg.Wait()
}
