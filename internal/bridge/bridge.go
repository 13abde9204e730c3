// Package bridge provides the one-shot delivery channel that carries a
// handler's eventual response back to the request-handling goroutine.
//
// A Bridge is created per in-flight request. The handler side resolves
// it at most once with Send; the serving side parks on Await until the
// payload arrives or the deadline elapses. After the deadline the bridge
// is expired and any late Send fails with util.ErrAlreadyResolved.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/nitrohttp/nitro/internal/util"
)

// Bridge is a single-producer/single-consumer one-shot signal.
type Bridge[T any] struct {
	mu       sync.Mutex
	resolved bool
	ch       chan T
}

// New creates an unresolved bridge.
func New[T any]() *Bridge[T] {
	return &Bridge[T]{ch: make(chan T, 1)}
}

// Send resolves the bridge with a payload. Exactly one Send succeeds per
// bridge; any later attempt, including one racing an elapsed Await
// deadline, returns util.ErrAlreadyResolved.
func (b *Bridge[T]) Send(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resolved {
		return util.ErrAlreadyResolved
	}
	b.resolved = true

	// The channel is buffered with capacity 1 and only the first Send
	// reaches this point, so this never blocks.
	b.ch <- v
	return nil
}

// Resolved reports whether the bridge has been resolved or expired.
func (b *Bridge[T]) Resolved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolved
}

// Await parks the calling goroutine until the bridge is resolved, the
// timeout elapses, or ctx is cancelled. On deadline the bridge is
// expired so the losing Send observes util.ErrAlreadyResolved; a send
// that slipped in just before expiry is still honored.
func (b *Bridge[T]) Await(ctx context.Context, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-b.ch:
		return v, nil
	case <-timer.C:
		if v, ok := b.expire(); ok {
			return v, nil
		}
		var zero T
		return zero, util.NewTimeoutError("response await", timeout)
	case <-ctx.Done():
		if v, ok := b.expire(); ok {
			return v, nil
		}
		var zero T
		return zero, &util.TimeoutError{
			Operation: "response await",
			Duration:  timeout,
			Cause:     ctx.Err(),
		}
	}
}

// expire marks the bridge resolved and drains a payload that won the
// race against the deadline, if any.
func (b *Bridge[T]) expire() (T, bool) {
	b.mu.Lock()
	b.resolved = true
	b.mu.Unlock()

	select {
	case v := <-b.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}
