package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harvestlab/repoharvester/internal/domain/service"
)

type fakeLock struct {
	grant bool
}

func (l *fakeLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.grant, nil
}

type fakeGenerator struct {
	calls    int
	enqueued int
}

func (g *fakeGenerator) Generate(ctx context.Context) (int, int, error) {
	g.calls++
	return g.enqueued, 0, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)        {}
func (noopLogger) Info(string, ...any)         {}
func (noopLogger) Warn(string, ...any)         {}
func (noopLogger) Error(string, ...any)        {}
func (n noopLogger) With(...any) service.Logger { return n }

func TestOrchestrator_SkipsGenerateWithoutLeaderLock(t *testing.T) {
	lock := &fakeLock{grant: false}
	gen := &fakeGenerator{enqueued: 5}
	worker := &fakeWorker{ok: false}

	o := NewOrchestrator(lock, gen, worker, noopLogger{}, "test-lock")
	o.tick(context.Background())

	assert.Equal(t, 0, gen.calls)
}

func TestOrchestrator_GeneratesWhenLeader(t *testing.T) {
	lock := &fakeLock{grant: true}
	gen := &fakeGenerator{enqueued: 3}
	worker := &fakeWorker{ok: false}

	o := NewOrchestrator(lock, gen, worker, noopLogger{}, "test-lock")
	o.tick(context.Background())

	assert.Equal(t, 1, gen.calls)
}
