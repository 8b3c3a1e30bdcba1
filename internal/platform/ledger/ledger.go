// Package ledger records one-shot side effects so that each key is claimed at most once.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

// Ledger claims keys. Claim returns true for exactly one caller per key while the
// key is retained.
type Ledger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Memory is a process-local ledger. Entries are dropped lazily after their ttl.
type Memory struct {
	mu    sync.Mutex
	clk   clock.Clock
	items map[string]time.Time
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{clk: clk, items: make(map[string]time.Time)}
}

func (m *Memory) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	if exp, ok := m.items[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	m.items[key] = exp
	return true, nil
}

// Redis claims keys with SET NX so the guarantee holds across instances.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim %s: %w", key, err)
	}
	return ok, nil
}
