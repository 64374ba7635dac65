package asyncobjects

import (
	"container/list"
	"context"
)

// TaskQueue serializes barrier submissions against each other and against
// concurrent submissions, while letting non-barrier submissions run in
// parallel with one another when the queue isn't barriered.
type TaskQueue struct {
	instrumented
	locker             *Locker
	barrierRunning     bool
	runningNonBarriers int
	pending            *list.List // of *queueEntry
	idle               *AsyncEvent
}

type queueEntry struct {
	barrier bool
	ch      chan error
}

// TaskQueueOption configures a new TaskQueue.
type TaskQueueOption func(*taskQueueConfig)

type taskQueueConfig struct {
	logger Logger
}

// WithTaskQueueLogger attaches a structured logging sink to the queue.
func WithTaskQueueLogger(logger Logger) TaskQueueOption {
	return func(c *taskQueueConfig) { c.logger = logger }
}

func resolveTaskQueueOptions(opts []TaskQueueOption) taskQueueConfig {
	var cfg taskQueueConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewTaskQueue constructs an empty, unbarriered queue.
func NewTaskQueue(opts ...TaskQueueOption) *TaskQueue {
	cfg := resolveTaskQueueOptions(opts)
	return &TaskQueue{
		instrumented: newInstrumented("TaskQueue", cfg.logger),
		locker:       NewLocker(),
		pending:      list.New(),
		idle:         NewAsyncEvent(true),
	}
}

// Exec runs action, serialized against barrier submissions. If barrier is
// true, no other submission (barrier or not) runs concurrently with
// action. If barrier is false and the queue isn't currently barriered,
// action may run concurrently with other non-barrier submissions.
//
// Exec blocks the calling goroutine until it is action's turn, runs
// action, and returns its error. If ctx is cancelled while still queued,
// Exec returns a Cancelled error and action never runs.
func (q *TaskQueue) Exec(ctx context.Context, barrier bool, action func(ctx context.Context) error) error {
	if err := q.admit(ctx, barrier); err != nil {
		return err
	}

	actionErr := action(ctx)
	q.complete(barrier)
	return actionErr
}

// admit returns nil once it is the caller's turn to run. The fast path
// requires the queue to be empty of pending entries, and additionally, for
// a barrier, that no non-barrier task is currently executing (a barrier
// only ever runs alone). Otherwise the caller enqueues and suspends until
// resumed by the drain in complete, or cancelled by ctx.
func (q *TaskQueue) admit(ctx context.Context, barrier bool) error {
	var fastPath bool
	q.locker.Perform(func() {
		if q.pending.Len() != 0 || q.barrierRunning {
			return
		}
		if barrier && q.runningNonBarriers != 0 {
			return
		}
		if barrier {
			q.barrierRunning = true
		} else {
			q.runningNonBarriers++
		}
		fastPath = true
	})
	if fastPath {
		q.syncIdle()
		return nil
	}

	entry := &queueEntry{barrier: barrier, ch: make(chan error, 1)}
	var elem *list.Element
	q.locker.Perform(func() {
		elem = q.pending.PushBack(entry)
	})
	q.syncIdle()

	select {
	case err := <-entry.ch:
		return err
	case <-ctx.Done():
		var removedHere bool
		q.locker.Perform(func() {
			for e := q.pending.Front(); e != nil; e = e.Next() {
				if e == elem {
					q.pending.Remove(e)
					removedHere = true
					break
				}
			}
		})
		if removedHere {
			q.syncIdle()
			return newCancelled(ctx.Err())
		}
		return <-entry.ch
	}
}

// complete runs after a running action returns, updating the relevant
// running count and then draining whatever the new state now permits.
func (q *TaskQueue) complete(wasBarrier bool) {
	q.locker.Perform(func() {
		if wasBarrier {
			q.barrierRunning = false
		} else {
			q.runningNonBarriers--
		}
		q.drainLocked()
	})
	q.syncIdle()
}

// drainLocked resumes whatever pending entries the current state now
// allows. A queued barrier is only ever resumed when it is the head and no
// non-barrier task is currently executing, and resuming it stops the drain
// immediately (it must run alone). Queued non-barriers, by contrast, are
// resumed in a run: every consecutive non-barrier at the head is resumed
// and set running, so they execute concurrently, stopping only once a
// barrier is reached or the queue empties. Must be called with the lock
// held.
func (q *TaskQueue) drainLocked() {
	for {
		front := q.pending.Front()
		if front == nil {
			return
		}
		entry := front.Value.(*queueEntry)
		if entry.barrier {
			if q.barrierRunning || q.runningNonBarriers != 0 {
				return
			}
			q.pending.Remove(front)
			q.barrierRunning = true
			entry.ch <- nil
			close(entry.ch)
			return
		}
		if q.barrierRunning {
			return
		}
		q.pending.Remove(front)
		q.runningNonBarriers++
		entry.ch <- nil
		close(entry.ch)
	}
}

// syncIdle reflects the queue's current (nothing running, nothing
// pending) state onto the idle event that backs Wait.
func (q *TaskQueue) syncIdle() {
	var idle bool
	q.locker.Perform(func() {
		idle = !q.barrierRunning && q.runningNonBarriers == 0 && q.pending.Len() == 0
	})
	if idle {
		q.idle.Signal()
	} else {
		q.idle.Reset()
	}
}

// Wait blocks until the queue has nothing running and nothing pending, or
// ctx is cancelled.
func (q *TaskQueue) Wait(ctx context.Context) error {
	return q.idle.Wait(ctx)
}
