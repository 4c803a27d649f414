// Package limiter gates the retrieve-through-generate phase of the ask
// pipeline behind a bounded worker pool with a bounded wait queue. It is a
// pure resource gate: it knows nothing about queries, caching, or ranking.
package limiter

import (
	"context"
	"errors"
)

// ErrSaturated is returned when all workers are busy and the wait queue is
// full. Submission never blocks indefinitely.
var ErrSaturated = errors.New("limiter saturated")

// Limiter runs a task while holding one concurrency slot.
type Limiter interface {
	Do(ctx context.Context, task func() error) error
}

// Pool is a channel-backed bulkhead: up to maxWorkers tasks run at once and
// up to queueCapacity callers may wait for a slot; everything beyond that is
// rejected immediately with ErrSaturated.
type Pool struct {
	slots   chan struct{}
	waiters chan struct{}
}

// NewPool builds a pool with the given worker and queue bounds. Values below
// their minimums are clamped rather than rejected.
func NewPool(maxWorkers, queueCapacity int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	return &Pool{
		slots:   make(chan struct{}, maxWorkers),
		waiters: make(chan struct{}, queueCapacity),
	}
}

// Do acquires a slot, runs the task on the calling goroutine, and releases
// the slot. When no slot is free the caller occupies a queue position while
// waiting; a full queue means immediate rejection.
func (p *Pool) Do(ctx context.Context, task func() error) error {
	select {
	case p.slots <- struct{}{}:
	default:
		select {
		case p.waiters <- struct{}{}:
		default:
			return ErrSaturated
		}
		select {
		case p.slots <- struct{}{}:
			<-p.waiters
		case <-ctx.Done():
			<-p.waiters
			return ctx.Err()
		}
	}
	defer func() { <-p.slots }()
	return task()
}

// Disabled executes every task synchronously in the caller with no queuing
// semantics at all.
type Disabled struct{}

func (Disabled) Do(_ context.Context, task func() error) error {
	return task()
}
