// File: facade/limiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection limiter: weighted admission control for sockets created
// through the interface.

package facade

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/momentics/hioload-reactor/api"
)

// Limiter bounds the number of concurrently admitted connections.
type Limiter struct {
	capacity int64
	sem      *semaphore.Weighted
}

// NewLimiter creates a limiter admitting up to capacity units; a
// capacity <= 0 admits everything.
func NewLimiter(capacity int64) *Limiter {
	l := &Limiter{capacity: capacity}
	if capacity > 0 {
		l.sem = semaphore.NewWeighted(capacity)
	}
	return l
}

// Capacity returns the configured capacity, zero meaning unlimited.
func (l *Limiter) Capacity() int64 { return l.capacity }

// Acquire admits one unit without blocking.
func (l *Limiter) Acquire() error {
	if l.sem == nil {
		return nil
	}
	if !l.sem.TryAcquire(1) {
		return api.NewError(api.ErrCodeLimit, "connection limit reached")
	}
	return nil
}

// AcquireContext admits one unit, blocking until admitted or ctx ends.
func (l *Limiter) AcquireContext(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return api.NewError(api.ErrCodeCanceled, "admission canceled").WithCause(err)
	}
	return nil
}

// Release returns one unit.
func (l *Limiter) Release() {
	if l.sem != nil {
		l.sem.Release(1)
	}
}
