package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Submit when the pending queue is at
	// capacity. The task was not queued and will never run.
	ErrQueueFull = errors.New("scheduler: queue full")

	// ErrCancelled resolves handles of pending tasks dropped by
	// CancelAllPending. The task never ran.
	ErrCancelled = errors.New("scheduler: task cancelled before start")

	// ErrInvalidLimit is returned by New for a concurrency limit below 1.
	ErrInvalidLimit = errors.New("scheduler: concurrency limit must be positive")

	// ErrInvalidQueueSize is returned by New for a queue size below 1.
	ErrInvalidQueueSize = errors.New("scheduler: max queue size must be positive")

	// ErrNilTask is returned by Submit when given a nil task.
	ErrNilTask = errors.New("scheduler: nil task")
)

// PanicError is the failure delivered to a task's handle when the task
// panics. The scheduler itself keeps running.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduler: task panicked: %v", e.Value)
}
