// Package ratelimit provides the leader locks that gate job generation across
// multiple worker processes: a Redis-backed lock and a static fallback used
// when Redis is not configured.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harvestlab/repoharvester/internal/domain/service"
)

// RedisLeaderLock implements service.LeaderLock with a Redis SETNX-with-TTL.
// Exactly one process observes ok=true for a given name within the lock's
// TTL; every other concurrently-starting process observes ok=false and skips
// job generation.
type RedisLeaderLock struct {
	client *redis.Client
}

func NewRedisLeaderLock(client *redis.Client) *RedisLeaderLock {
	return &RedisLeaderLock{client: client}
}

func (l *RedisLeaderLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: acquire leader lock %q: %w", name, err)
	}
	return ok, nil
}

func lockKey(name string) string {
	return "repoharvester:leader-lock:" + name
}

var _ service.LeaderLock = (*RedisLeaderLock)(nil)
