// Package throttle bounds concurrent query load against the planner's
// single Postgres instance (spec §5, C12: MaxConcurrentQueries).
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates concurrent simulation/query work with a semaphore plus a
// token-bucket rate limiter, mirroring the teacher's per-scope rate
// limiter but collapsed to a single process-wide scope: this service has
// no per-environment dimension (spec: "No multi-tenant isolation").
type Limiter struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// New creates a Limiter allowing at most maxConcurrent in-flight
// operations, additionally smoothed by a requests-per-second token bucket.
func New(maxConcurrent int, requestsPerSecond rate.Limit, burst int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		limiter: rate.NewLimiter(requestsPerSecond, burst),
	}
}

// Acquire blocks until both the rate limiter and the concurrency
// semaphore admit the caller, or ctx is cancelled. The returned release
// func must be called exactly once to free the slot.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { <-l.sem }, nil
}

// TryAcquire reports whether a slot is immediately available without
// blocking, consuming the rate-limiter token and semaphore slot if so.
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	if !l.limiter.Allow() {
		return nil, false
	}
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, true
	default:
		return nil, false
	}
}

// InUse reports the number of currently held slots, for diagnostics
// (spec §6.1's GET /diagnostics/data-quality style endpoints).
func (l *Limiter) InUse() int {
	return len(l.sem)
}

// Capacity reports the configured concurrency ceiling.
func (l *Limiter) Capacity() int {
	return cap(l.sem)
}
