package ratelimit

import (
	"context"
	"time"

	"github.com/harvestlab/repoharvester/internal/domain/service"
)

// StaticLeaderLock always grants the lock to a single fixed worker id. It
// backs the documented fallback path when Redis is unavailable: rather than
// refuse to generate jobs at all, the deployment degrades to "worker 1 is
// always the leader" and operators are expected to run worker 1 continuously.
type StaticLeaderLock struct {
	workerID int
}

func NewStaticLeaderLock(workerID int) *StaticLeaderLock {
	return &StaticLeaderLock{workerID: workerID}
}

func (l *StaticLeaderLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.workerID == 1, nil
}

var _ service.LeaderLock = (*StaticLeaderLock)(nil)
