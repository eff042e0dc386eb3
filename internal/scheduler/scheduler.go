package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxQueueSize bounds the pending queue when WithMaxQueueSize is
// not given.
const DefaultMaxQueueSize = 10000

// Scheduler runs at most Limit tasks concurrently and queues the rest.
//
// All bookkeeping (running count, pending queue, drain signal, stats)
// lives behind mu. Task bodies run outside the lock.
//
// Used by: indexer (embedding files), orchestrator (parallel model calls)
// Thread-safe: Yes
type Scheduler struct {
	limit        int
	maxQueueSize int
	log          *zap.Logger

	onStart    func(Info)
	onComplete func(Info, error, time.Duration)

	mu      sync.Mutex
	running int
	pending []*entry

	// idle is closed while the scheduler is drained and replaced with a
	// fresh channel when work arrives.
	idle    chan struct{}
	drained bool

	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxQueueSize caps the number of tasks waiting for a slot.
func WithMaxQueueSize(n int) Option {
	return func(s *Scheduler) {
		s.maxQueueSize = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStartHook is called in the task's goroutine right before it runs.
// Useful for UI updates.
func WithStartHook(fn func(Info)) Option {
	return func(s *Scheduler) {
		s.onStart = fn
	}
}

// WithCompleteHook is called after a task finishes and before its slot
// is handed to the next pending task.
func WithCompleteHook(fn func(Info, error, time.Duration)) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// New creates a scheduler that runs at most limit tasks at once.
func New(limit int, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		limit:        limit,
		maxQueueSize: DefaultMaxQueueSize,
		log:          zap.NewNop(),
		idle:         make(chan struct{}),
		drained:      true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limit < 1 {
		return nil, ErrInvalidLimit
	}
	if s.maxQueueSize < 1 {
		return nil, ErrInvalidQueueSize
	}

	close(s.idle)
	return s, nil
}

// Submit queues task on s and returns a handle that resolves with the
// task's own result. When the queue is full it returns ErrQueueFull and
// the task never runs.
//
// Example:
//
//	h, err := scheduler.Submit(s, ctx, func(ctx context.Context) (string, error) {
//	    return client.Complete(ctx, messages)
//	}, scheduler.WithLabel("chat"))
func Submit[T any](s *Scheduler, ctx context.Context, task Task[T], opts ...SubmitOption) (*Handle[T], error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	h := newHandle[T](id)
	e := newEntry(ctx, id, task, h, opts...)

	if err := s.enqueue(e); err != nil {
		return nil, err
	}
	return h, nil
}

// Go submits error-only work.
func (s *Scheduler) Go(ctx context.Context, fn func(ctx context.Context) error, opts ...SubmitOption) (*Handle[struct{}], error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	return Submit(s, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
}

func (s *Scheduler) enqueue(e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= s.maxQueueSize {
		s.stats.Rejected++
		s.log.Warn("queue full, rejecting task",
			zap.String("label", e.info.Label),
			zap.Int("pending", len(s.pending)),
			zap.Int("max_queue_size", s.maxQueueSize))
		return ErrQueueFull
	}

	if s.drained {
		s.idle = make(chan struct{})
		s.drained = false
	}

	s.pending = append(s.pending, e)
	s.stats.Submitted++
	s.dispatchLocked()
	return nil
}

// dispatchLocked starts pending entries while slots are free.
// Caller must hold mu.
func (s *Scheduler) dispatchLocked() {
	for s.running < s.limit && len(s.pending) > 0 {
		e := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.running++
		go s.execute(e)
	}
	if len(s.pending) == 0 {
		// drop the backing array so cancelled and finished entries can be collected
		s.pending = nil
	}
}

func (s *Scheduler) execute(e *entry) {
	if s.onStart != nil {
		s.runHook("start", e.info, func() { s.onStart(e.info) })
	}
	s.log.Debug("task started",
		zap.String("id", e.info.ID),
		zap.String("label", e.info.Label),
		zap.Duration("queued_for", time.Since(e.info.Submitted)))

	start := time.Now()
	err := e.run()
	duration := time.Since(start)

	if err != nil {
		s.log.Warn("task failed",
			zap.String("id", e.info.ID),
			zap.String("label", e.info.Label),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		s.log.Debug("task completed",
			zap.String("id", e.info.ID),
			zap.String("label", e.info.Label),
			zap.Duration("duration", duration))
	}

	if s.onComplete != nil {
		s.runHook("complete", e.info, func() { s.onComplete(e.info, err, duration) })
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	s.stats.record(err, duration)
	s.dispatchLocked()
	s.signalIfIdleLocked()
}

// runHook calls a start or complete hook. A panicking hook is logged and
// otherwise ignored so the slot is still released.
func (s *Scheduler) runHook(name string, info Info, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("hook panicked",
				zap.String("hook", name),
				zap.String("id", info.ID),
				zap.String("label", info.Label),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// signalIfIdleLocked wakes AwaitDrained callers once nothing is running
// or pending. Caller must hold mu.
func (s *Scheduler) signalIfIdleLocked() {
	if s.drained || s.running != 0 || len(s.pending) != 0 {
		return
	}
	s.drained = true
	close(s.idle)
}

// AwaitDrained blocks until no task is running and none is pending.
// Work submitted while waiting extends the wait. Returns ctx.Err() if ctx
// ends first.
func (s *Scheduler) AwaitDrained(ctx context.Context) error {
	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAllPending drops every task that has not started and resolves
// its handle with ErrCancelled. Running tasks are not touched.
// Returns the number of tasks dropped.
func (s *Scheduler) CancelAllPending() int {
	s.mu.Lock()
	dropped := s.pending
	s.pending = nil
	s.stats.Cancelled += len(dropped)
	s.mu.Unlock()

	for _, e := range dropped {
		e.fail(ErrCancelled)
	}

	s.mu.Lock()
	s.signalIfIdleLocked()
	s.mu.Unlock()

	if len(dropped) > 0 {
		s.log.Info("cancelled pending tasks", zap.Int("count", len(dropped)))
	}
	return len(dropped)
}

// Running returns the number of tasks currently executing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pending returns the number of tasks waiting for a slot.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Limit returns the concurrency limit.
func (s *Scheduler) Limit() int {
	return s.limit
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Running = s.running
	st.Pending = len(s.pending)
	return st
}
