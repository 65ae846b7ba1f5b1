// Package limiter admits tasks under a fixed concurrency bound.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrInvalidLimit = errors.New("limiter concurrency must be positive")

// Limiter runs at most n tasks at once. Waiting tasks are admitted in the
// order they were submitted, and each task's error is returned only to its
// own caller.
type Limiter struct {
	limit   int
	sem     *semaphore.Weighted
	running atomic.Int64
	queued  atomic.Int64
}

func New(n int) (*Limiter, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	return &Limiter{
		limit: n,
		sem:   semaphore.NewWeighted(int64(n)),
	}, nil
}

func (l *Limiter) Limit() int {
	return l.limit
}

// RunningCount is the number of tasks currently executing.
func (l *Limiter) RunningCount() int {
	return int(l.running.Load())
}

// QueueLength is the number of tasks waiting for admission.
func (l *Limiter) QueueLength() int {
	return int(l.queued.Load())
}

// Do blocks until fn is admitted, then runs it. A task whose context ends
// while queued is never started and returns the context error.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.queued.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.queued.Add(-1)
	if err != nil {
		return err
	}

	l.running.Add(1)
	defer func() {
		l.running.Add(-1)
		l.sem.Release(1)
	}()
	return fn(ctx)
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
