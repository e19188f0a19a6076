package crawler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/imagefinder/internal/config"
)

// Task is one unit of work run by a Pool. It receives the pool's context.
type Task func(ctx context.Context)

// Pool runs tasks on a bounded number of worker slots.
//
// Submission is decoupled from execution: every submitted task gets its own
// goroutine in an unlimited errgroup.Group, and that goroutine acquires one
// of the semaphore's slots before running. Submit therefore never blocks,
// which lets a running task submit follow-up tasks even when every slot is
// taken. errgroup.Group.SetLimit would make Submit block in that case and
// deadlock a pool of size one.
//
// Submit must be called either before Wait or from inside a running task.
type Pool struct {
	ctx   context.Context
	group errgroup.Group
	slots *semaphore.Weighted
	size  int

	closed  atomic.Bool
	pending atomic.Int64
	dropped atomic.Int64
}

// NewPool creates a pool with size worker slots. Tasks observe ctx; once it is
// done, queued tasks are dropped without running. A non-positive size
// selects config.DefaultWorkers.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = config.DefaultWorkers()
	}
	return &Pool{
		ctx:   ctx,
		slots: semaphore.NewWeighted(int64(size)),
		size:  size,
	}
}

// Submit schedules task and reports whether it was accepted.
// Tasks submitted after Close or after the pool's context is done are dropped.
func (p *Pool) Submit(task Task) bool {
	if p.closed.Load() || p.ctx.Err() != nil {
		p.dropped.Add(1)
		return false
	}

	p.pending.Add(1)
	p.group.Go(func() error {
		defer p.pending.Add(-1)

		if err := p.slots.Acquire(p.ctx, 1); err != nil {
			p.dropped.Add(1)
			return nil
		}
		defer p.slots.Release(1)

		if p.closed.Load() {
			p.dropped.Add(1)
			return nil
		}

		task(p.ctx)
		return nil
	})
	return true
}

// Wait blocks until every accepted task has finished or been dropped.
func (p *Pool) Wait() {
	// Tasks never return errors; per-task failures are handled inside the task.
	_ = p.group.Wait() //nolint:errcheck
}

// Close stops the pool from accepting new tasks. Queued tasks that have not
// acquired a slot yet are dropped; running tasks are not interrupted.
func (p *Pool) Close() {
	p.closed.Store(true)
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of tasks submitted but not yet finished.
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

// Dropped returns the number of tasks that were rejected or abandoned.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}
