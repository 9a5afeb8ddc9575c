package otp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const cooldownKeyPrefix = "otp:cooldown:"

// ResendGate spaces out challenge sends per phone number. The
// orchestrator starts the gate after each successful send; enforcement
// is the caller's job, so a client that never resends pays nothing.
type ResendGate interface {
	Start(ctx context.Context, phone string) error
	// Remaining returns how long until the next send is allowed.
	// Zero means the gate is open.
	Remaining(ctx context.Context, phone string) (time.Duration, error)
}

// RedisResendGate tracks cooldowns as expiring Redis keys.
type RedisResendGate struct {
	Client   *redis.Client
	Interval time.Duration
}

func (g *RedisResendGate) Start(ctx context.Context, phone string) error {
	if err := g.Client.Set(ctx, cooldownKeyPrefix+phone, "1", g.Interval).Err(); err != nil {
		return fmt.Errorf("failed to start resend cooldown: %w", err)
	}
	return nil
}

func (g *RedisResendGate) Remaining(ctx context.Context, phone string) (time.Duration, error) {
	ttl, err := g.Client.TTL(ctx, cooldownKeyPrefix+phone).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read resend cooldown: %w", err)
	}
	// -2 means no key, -1 means no expiry; both open the gate.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// MemoryResendGate is the in-process gate used by tests and local
// development. The clock is injectable.
type MemoryResendGate struct {
	Interval time.Duration
	Now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryResendGate(interval time.Duration) *MemoryResendGate {
	return &MemoryResendGate{Interval: interval, last: make(map[string]time.Time)}
}

func (g *MemoryResendGate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *MemoryResendGate) Start(_ context.Context, phone string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[phone] = g.now()
	return nil
}

func (g *MemoryResendGate) Remaining(_ context.Context, phone string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	started, ok := g.last[phone]
	if !ok {
		return 0, nil
	}
	remaining := g.Interval - g.now().Sub(started)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
