package main

import (
	"context"
	"log"
	"time"
)

// Retry tuning for SafeGo, variables so tests can shorten them
var (
	safeGoMaxRetries = 10
	safeGoBaseDelay  = time.Second
	safeGoMaxDelay   = 10 * time.Minute
	safeGoResetAfter = 2 * time.Minute
)

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max safeGoMaxRetries).
// Retry count resets if the worker ran for safeGoResetAfter before failing.
// After exhausting retries, cancels the context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	maxRetries := safeGoMaxRetries
	baseDelay := safeGoBaseDelay
	maxDelay := safeGoMaxDelay
	resetAfter := safeGoResetAfter

	go func() {
		retries := 0
		delay := baseDelay

		for {
			startTime := time.Now()
			panicValue := runRecovered(ctx, fn)

			// Normal return covers both context cancellation and a worker giving up
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = baseDelay
			}

			retries++
			log.Printf("Panic in %s (attempt %d/%d): %v\n", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Printf("%s failed after %d retries, shutting down\n", name, maxRetries)
				cancel()
				return
			}

			log.Printf("%s will retry in %v\n", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// runRecovered calls fn and returns the recovered panic value, if any
func runRecovered(ctx context.Context, fn func(ctx context.Context)) (panicValue any) {
	defer func() {
		panicValue = recover()
	}()
	fn(ctx)
	return nil
}
