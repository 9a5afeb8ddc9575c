package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const challengeKeyPrefix = "otp:challenge:"

func challengeKey(phone string, purpose Purpose) string {
	return fmt.Sprintf("%s%s:%s", challengeKeyPrefix, phone, purpose)
}

// ChallengeStore holds the live challenge per phone+purpose. Put
// replaces any prior record; Get returns (nil, nil) when nothing is
// outstanding; Update rewrites a record without touching its TTL.
type ChallengeStore interface {
	Put(ctx context.Context, h *ChallengeHandle, ttl time.Duration) error
	Get(ctx context.Context, phone string, purpose Purpose) (*ChallengeHandle, error)
	Update(ctx context.Context, h *ChallengeHandle) error
	Delete(ctx context.Context, phone string, purpose Purpose) error
}

// RedisChallengeStore keeps challenges in the OTP Redis DB. Expiry is
// delegated to Redis TTLs.
type RedisChallengeStore struct {
	Client *redis.Client
}

func (s *RedisChallengeStore) Put(ctx context.Context, h *ChallengeHandle, ttl time.Duration) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	if err := s.Client.Set(ctx, challengeKey(h.Phone, h.Purpose), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, phone string, purpose Purpose) (*ChallengeHandle, error) {
	data, err := s.Client.Get(ctx, challengeKey(phone, purpose)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	var h ChallengeHandle
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &h, nil
}

func (s *RedisChallengeStore) Update(ctx context.Context, h *ChallengeHandle) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	if err := s.Client.Set(ctx, challengeKey(h.Phone, h.Purpose), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, phone string, purpose Purpose) error {
	return s.Client.Del(ctx, challengeKey(phone, purpose)).Err()
}

// MemoryChallengeStore is the in-process store used by tests and local
// development without Redis.
type MemoryChallengeStore struct {
	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*ChallengeHandle
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{entries: make(map[string]*ChallengeHandle)}
}

func (s *MemoryChallengeStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryChallengeStore) Put(_ context.Context, h *ChallengeHandle, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = s.now().Add(ttl)
	}
	s.entries[challengeKey(h.Phone, h.Purpose)] = &cp
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, phone string, purpose Purpose) (*ChallengeHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(phone, purpose)
	h, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if h.Expired(s.now()) {
		delete(s.entries, key)
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (s *MemoryChallengeStore) Update(_ context.Context, h *ChallengeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.entries[challengeKey(h.Phone, h.Purpose)] = &cp
	return nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, phone string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, challengeKey(phone, purpose))
	return nil
}
