package scheduler

import (
	"context"
	"runtime/debug"
	"time"
)

// Task is a deferred computation. It receives the context passed to Submit.
type Task[T any] func(ctx context.Context) (T, error)

// Info describes a task for hooks and logs.
type Info struct {
	ID        string
	Label     string
	Submitted time.Time
	Metadata  map[string]any
}

// entry is one queued task. run executes the task and resolves its
// handle; fail resolves the handle without running the task.
//
// Created by: Submit
// Destroyed: as soon as run or fail returns
type entry struct {
	info Info
	run  func() error
	fail func(err error)
}

// SubmitOption configures a task at submission time.
type SubmitOption func(*Info)

// WithLabel categorizes the task for logs and hooks.
// Examples: "embed", "fanout", "chat".
func WithLabel(label string) SubmitOption {
	return func(i *Info) {
		i.Label = label
	}
}

// WithMetadata attaches arbitrary data for debugging.
func WithMetadata(key string, value any) SubmitOption {
	return func(i *Info) {
		if i.Metadata == nil {
			i.Metadata = make(map[string]any)
		}
		i.Metadata[key] = value
	}
}

func newEntry[T any](ctx context.Context, id string, task Task[T], h *Handle[T], opts ...SubmitOption) *entry {
	info := Info{
		ID:        id,
		Label:     "generic",
		Submitted: time.Now(),
	}
	for _, opt := range opts {
		opt(&info)
	}

	return &entry{
		info: info,
		run: func() error {
			value, err := call(ctx, task)
			h.resolve(value, err)
			return err
		},
		fail: func(err error) {
			var zero T
			h.resolve(zero, err)
		},
	}
}

// call runs task, turning a panic into a *PanicError.
func call[T any](ctx context.Context, task Task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}
