package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeWorker struct {
	processed    int32
	failNext     int32
	panicNext    int32
	ok           bool
	active       int32
	cleanupCalls int32
}

func (w *fakeWorker) ProcessOne(ctx context.Context) (bool, error) {
	if atomic.CompareAndSwapInt32(&w.panicNext, 1, 0) {
		panic("unexpected worker panic")
	}
	if atomic.CompareAndSwapInt32(&w.failNext, 1, 0) {
		return false, errors.New("boom")
	}
	if !w.ok {
		return false, nil
	}
	atomic.AddInt32(&w.processed, 1)
	return true, nil
}

func (w *fakeWorker) RecoverStale(ctx context.Context) (int64, error) {
	return 0, nil
}

func (w *fakeWorker) ActiveCount(ctx context.Context) (int, error) {
	return int(atomic.LoadInt32(&w.active)), nil
}

func (w *fakeWorker) Cleanup(ctx context.Context) error {
	atomic.AddInt32(&w.cleanupCalls, 1)
	return nil
}

func TestRunWorker_StopsOnContextCancel(t *testing.T) {
	w := &fakeWorker{ok: false}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunWorker(ctx, w, 10*time.Millisecond, false, nil, nil)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWorker did not stop after context cancellation")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&w.cleanupCalls))
}

func TestRunWorker_ReportsErrorsAndContinues(t *testing.T) {
	w := &fakeWorker{ok: true, failNext: 1}
	ctx, cancel := context.WithCancel(context.Background())

	var lastErr error
	onError := func(err error) { lastErr = err }
	go func() {
		for atomic.LoadInt32(&w.processed) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	RunWorker(ctx, w, time.Millisecond, false, nil, onError)

	assert.Error(t, lastErr)
	assert.Greater(t, atomic.LoadInt32(&w.processed), int32(0))
}

func TestRunWorker_RecoversPanicAndContinues(t *testing.T) {
	w := &fakeWorker{ok: true, panicNext: 1}
	ctx, cancel := context.WithCancel(context.Background())

	var lastErr error
	onError := func(err error) { lastErr = err }
	go func() {
		for atomic.LoadInt32(&w.processed) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	RunWorker(ctx, w, time.Millisecond, false, nil, onError)

	assert.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "worker panic")
	assert.Greater(t, atomic.LoadInt32(&w.processed), int32(0))
}

func TestRunWorker_AutoExitStopsWhenActiveCountZero(t *testing.T) {
	w := &fakeWorker{ok: false, active: 0}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		RunWorker(ctx, w, time.Millisecond, true, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWorker did not auto-exit when active count was zero")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&w.cleanupCalls))
}

func TestRunWorker_AutoExitKeepsPollingWhileActive(t *testing.T) {
	w := &fakeWorker{ok: false, active: 1}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunWorker(ctx, w, time.Millisecond, true, nil, nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("RunWorker exited despite a nonzero active count")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWorker did not stop after context cancellation")
	}
}
