// Package handoff moves completed items from a real-time producer to a slower
// consumer without ever blocking the producer.
package handoff

import (
	"context"
	"sync/atomic"
	"time"
)

// Slot holds at most one pending item. A push while an item is still pending
// evicts it: the newest item always wins and the producer never waits.
// Exactly one goroutine may push; any number may pop.
type Slot[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewSlot creates an empty slot
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// TryPush stores v, evicting any unconsumed item. It reports whether an item
// was evicted.
func (s *Slot[T]) TryPush(v T) (evicted bool) {
	for {
		select {
		case s.ch <- v:
			return evicted
		default:
		}
		select {
		case <-s.ch:
			evicted = true
			s.dropped.Add(1)
		default:
		}
	}
}

// Pop waits up to timeout for an item. ok is false on timeout or when ctx is done;
// callers should simply poll again.
func (s *Slot[T]) Pop(ctx context.Context, timeout time.Duration) (v T, ok bool) {
	select {
	case v = <-s.ch:
		return v, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v = <-s.ch:
		return v, true
	case <-timer.C:
		return v, false
	case <-ctx.Done():
		return v, false
	}
}

// TryPop returns the pending item without waiting
func (s *Slot[T]) TryPop() (v T, ok bool) {
	select {
	case v = <-s.ch:
		return v, true
	default:
		return v, false
	}
}

// Pending reports whether an item is waiting
func (s *Slot[T]) Pending() bool {
	return len(s.ch) > 0
}

// Dropped returns how many items were evicted before being consumed
func (s *Slot[T]) Dropped() uint64 {
	return s.dropped.Load()
}
