package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fastSafeGo shortens SafeGo backoff for the duration of a test
func fastSafeGo(t *testing.T, maxRetries int) {
	t.Helper()
	oldRetries, oldBase, oldMax := safeGoMaxRetries, safeGoBaseDelay, safeGoMaxDelay
	safeGoMaxRetries = maxRetries
	safeGoBaseDelay = time.Millisecond
	safeGoMaxDelay = 4 * time.Millisecond
	t.Cleanup(func() {
		safeGoMaxRetries, safeGoBaseDelay, safeGoMaxDelay = oldRetries, oldBase, oldMax
	})
}

func TestSafeGo_RestartsAfterPanic(t *testing.T) {
	fastSafeGo(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	SafeGo(ctx, cancel, "flaky", func(ctx context.Context) {
		if calls.Add(1) < 3 {
			panic("boom")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker was not restarted")
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.NoError(t, ctx.Err(), "recovered workers do not cancel the context")
}

func TestSafeGo_CancelsAfterRetriesExhausted(t *testing.T) {
	fastSafeGo(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	SafeGo(ctx, cancel, "broken", func(ctx context.Context) {
		calls.Add(1)
		panic("always")
	})

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestSafeGo_NormalReturnIsNotRestarted(t *testing.T) {
	fastSafeGo(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	SafeGo(ctx, cancel, "oneshot", func(ctx context.Context) {
		calls.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.NoError(t, ctx.Err())
}

func TestRunRecovered(t *testing.T) {
	assert.Nil(t, runRecovered(context.Background(), func(ctx context.Context) {}))
	assert.Equal(t, "boom", runRecovered(context.Background(), func(ctx context.Context) { panic("boom") }))
}
