package scheduler

import (
	"context"
	"sync"
)

// Handle is the caller's view of one submitted task.
// It resolves exactly once: with the task's result, the task's error,
// or ErrCancelled if the task was dropped before it started.
type Handle[T any] struct {
	id   string
	done chan struct{}
	once sync.Once

	value T
	err   error
}

func newHandle[T any](id string) *Handle[T] {
	return &Handle[T]{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the identifier assigned at submission.
func (h *Handle[T]) ID() string {
	return h.id
}

// Done is closed once the handle has resolved.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task resolves or ctx ends.
// When ctx wins, ctx.Err() is returned and the task keeps going; its
// eventual result can still be read with Result.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	default:
	}

	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. done is false while the
// task is still pending or running.
func (h *Handle[T]) Result() (value T, done bool, err error) {
	select {
	case <-h.done:
		return h.value, true, h.err
	default:
		var zero T
		return zero, false, nil
	}
}

func (h *Handle[T]) resolve(value T, err error) {
	h.once.Do(func() {
		h.value = value
		h.err = err
		close(h.done)
	})
}
