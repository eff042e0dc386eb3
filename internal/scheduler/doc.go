// Package scheduler runs deferred work with a hard cap on parallelism.
//
// # Overview
//
// LM Studio and the embedding endpoint fall over when every file or
// sub-question fires its own request at once. The scheduler gives callers
// one place to push that work:
//   - At most Limit tasks run at the same time
//   - Excess submissions wait in a FIFO queue
//   - A full queue rejects new work with ErrQueueFull (backpressure)
//   - Pending work can be dropped in bulk with CancelAllPending
//   - AwaitDrained blocks until nothing is running or queued
//
// # Architecture
//
//   - entry: one queued task plus the routing that resolves its Handle
//   - Handle: a per-task future returned from Submit
//   - Scheduler: owns the queue and the running counter behind one mutex
//
// A task's own error is delivered untouched through its Handle. Queue
// rejection and cancellation use sentinel errors so callers can tell
// "try later" from "abandoned" from "the work itself failed".
//
// Running tasks are never preempted. Callers that need a deadline race
// Handle.Wait against their own context and ignore the late result.
//
// # Example
//
//	sched, _ := scheduler.New(4, scheduler.WithMaxQueueSize(256))
//
//	h, err := scheduler.Submit(sched, ctx, func(ctx context.Context) ([]float32, error) {
//	    return embedder.Embed(ctx, chunk)
//	}, scheduler.WithLabel("embed"))
//	if errors.Is(err, scheduler.ErrQueueFull) {
//	    // shed load
//	}
//
//	vec, err := h.Wait(ctx)
package scheduler
