package asyncobjects

import (
	"context"
	"errors"
	"sync/atomic"
)

// TaskOperation is a one-shot handle around an asynchronous computation
// that can be started, awaited, and cancelled. Its observable state moves
// monotonically through:
//
//	created -> executing -> finished
//	             |   cancel     |
//	             v              v
//	   executing+cancelled -> finished+cancelled
//
// The three observable booleans (IsExecuting, IsFinished, IsCancelled) are
// written in a fixed order on every transition: finishing writes
// IsExecuting=false, then IsFinished=true, then wakes waiters; cancelling
// writes IsCancelled=true before running the finish sequence. A waiter
// woken by the finish transition is guaranteed to observe IsFinished=true
// and the correct IsCancelled, never a stale in-between.
//
// There is no priority parameter: the source's priority flag selects
// between OS scheduler priorities, which Go's goroutine scheduler has no
// equivalent knob for, so it is dropped rather than faked.
type TaskOperation[T any] struct {
	instrumented
	locker *Locker

	isExecuting atomic.Bool
	isFinished  atomic.Bool
	isCancelled atomic.Bool

	started                bool
	detached               bool
	trackUnstructuredTasks bool

	action  func(ctx context.Context) (T, error)
	baseCtx context.Context

	runCtx   context.Context
	cancelFn context.CancelFunc

	value T
	err   error

	waiters *waiterRegistry[struct{}]
}

// TaskOperationOption configures a new TaskOperation.
type TaskOperationOption[T any] func(*taskOperationConfig[T])

type taskOperationConfig[T any] struct {
	logger                 Logger
	locker                 *Locker
	detached               bool
	trackUnstructuredTasks bool
	baseCtx                context.Context
}

// WithTaskOperationLogger attaches a structured logging sink.
func WithTaskOperationLogger[T any](logger Logger) TaskOperationOption[T] {
	return func(c *taskOperationConfig[T]) { c.logger = logger }
}

// WithTaskOperationLocker supplies a shared Locker, e.g. so a TaskQueue can
// serialize a TaskOperation's state transitions under the same lock it
// uses for its own bookkeeping.
func WithTaskOperationLocker[T any](locker *Locker) TaskOperationOption[T] {
	return func(c *taskOperationConfig[T]) { c.locker = locker }
}

// WithDetached marks the operation detached: its action runs against a
// fresh background context instead of inheriting the context passed to
// Start.
func WithDetached[T any](detached bool) TaskOperationOption[T] {
	return func(c *taskOperationConfig[T]) { c.detached = detached }
}

// WithTrackUnstructuredTasks makes completion wait for action's
// unstructured descendants (those launched via TrackUnstructuredTask)
// as well as action itself.
func WithTrackUnstructuredTasks[T any](track bool) TaskOperationOption[T] {
	return func(c *taskOperationConfig[T]) { c.trackUnstructuredTasks = track }
}

// WithBaseContext fixes the parent of the action's context: when set, it is
// used in place of the ctx passed to Start, which is then ignored. Has no
// effect together with WithDetached(true), which always uses
// context.Background().
func WithBaseContext[T any](ctx context.Context) TaskOperationOption[T] {
	return func(c *taskOperationConfig[T]) { c.baseCtx = ctx }
}

func resolveTaskOperationOptions[T any](opts []TaskOperationOption[T]) taskOperationConfig[T] {
	var cfg taskOperationConfig[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewTaskOperation constructs an operation in the created state. Nothing
// runs until Start is called.
func NewTaskOperation[T any](action func(ctx context.Context) (T, error), opts ...TaskOperationOption[T]) *TaskOperation[T] {
	cfg := resolveTaskOperationOptions(opts)
	locker := cfg.locker
	if locker == nil {
		locker = NewLocker()
	}
	return &TaskOperation[T]{
		instrumented:           newInstrumented("TaskOperation", cfg.logger),
		locker:                 locker,
		action:                 action,
		detached:               cfg.detached,
		trackUnstructuredTasks: cfg.trackUnstructuredTasks,
		baseCtx:                cfg.baseCtx,
		waiters:                newWaiterRegistry[struct{}](),
	}
}

// Start transitions created -> executing and launches the action on a new
// goroutine. A second call, or a call after Cancel, is a no-op. Signal is an
// alias, matching the source's naming.
func (t *TaskOperation[T]) Start(ctx context.Context) {
	var launch bool
	t.locker.Perform(func() {
		if t.started || t.isCancelled.Load() {
			return
		}
		t.started = true
		launch = true

		base := t.baseCtx
		if base == nil {
			base = ctx
		}
		if t.detached {
			base = context.Background()
		}
		runCtx, cancel := context.WithCancel(base)
		t.runCtx = runCtx
		t.cancelFn = cancel
	})
	if !launch {
		return
	}
	t.isExecuting.Store(true)
	go t.run()
	t.log(LevelDebug, "start", nil, nil, nil)
}

// Signal is an alias for Start.
func (t *TaskOperation[T]) Signal(ctx context.Context) {
	t.Start(ctx)
}

func (t *TaskOperation[T]) run() {
	runCtx := t.runCtx

	if !t.trackUnstructuredTasks {
		value, err := t.action(runCtx)
		t.finish(value, err)
		return
	}

	descendantsDone := make(chan struct{})
	tracker := newTaskTracker(func() { close(descendantsDone) })
	value, err := t.action(withTaskTracker(runCtx, tracker))
	tracker.Release()
	<-descendantsDone
	t.finish(value, err)
}

func (t *TaskOperation[T]) finish(value T, err error) {
	cancelled := t.isCancelled.Load()
	if cancelled {
		switch {
		case err == nil:
			err = newCancelled(context.Canceled)
		case errors.Is(err, context.Canceled) && !errors.Is(err, Cancelled):
			err = newCancelled(err)
		}
	}

	t.locker.Perform(func() {
		t.value = value
		t.err = err
		t.isExecuting.Store(false)
		t.isFinished.Store(true)
		t.waiters.resumeAll(waiterResult[struct{}]{})
	})

	if t.cancelFn != nil {
		t.cancelFn()
	}
	t.log(LevelInfo, "finish", nil, err, map[string]any{"cancelled": cancelled})
}

// Cancel requests cancellation. If the operation hasn't started, it is
// finished immediately with EarlyInvokeError's counterpart — a Cancelled
// result, since it never ran. If it has started, its run context is
// cancelled and the action is expected to observe that cooperatively;
// finish() runs once it returns. Cancelling an already-finished operation
// is a no-op.
func (t *TaskOperation[T]) Cancel() {
	var (
		alreadyFinished bool
		finishNow       bool
		cancelFn        context.CancelFunc
	)
	t.locker.Perform(func() {
		if t.isFinished.Load() {
			alreadyFinished = true
			return
		}
		t.isCancelled.Store(true)
		cancelFn = t.cancelFn
		if !t.started {
			finishNow = true
		}
	})
	if alreadyFinished {
		return
	}
	if cancelFn != nil {
		cancelFn()
	}
	if finishNow {
		var zero T
		t.finish(zero, newCancelled(context.Canceled))
	}
	t.log(LevelInfo, "cancel", nil, nil, nil)
}

func (t *TaskOperation[T]) tryFinished() (struct{}, bool) {
	return struct{}{}, t.isFinished.Load()
}

// Wait suspends until the operation reaches finished, or ctx is cancelled
// first.
func (t *TaskOperation[T]) Wait(ctx context.Context) error {
	_, err := waitFor(ctx, t.locker, t.waiters, t.tryFinished)
	return err
}

// Result waits for completion and returns the action's outcome.
// EarlyInvokeError is returned, without waiting, if the operation was
// never started and has not otherwise reached its terminal state (e.g. via
// a Cancel before Start, which finishes an operation without starting it).
func (t *TaskOperation[T]) Result(ctx context.Context) (T, error) {
	var zero T
	var started, finished bool
	t.locker.Perform(func() {
		started = t.started
		finished = t.isFinished.Load()
	})
	if !started && !finished {
		return zero, ErrEarlyInvoke
	}
	if err := t.Wait(ctx); err != nil {
		return zero, err
	}
	var value T
	var resultErr error
	t.locker.Perform(func() {
		value = t.value
		resultErr = t.err
	})
	return value, resultErr
}

// IsExecuting reports whether the action is currently running.
func (t *TaskOperation[T]) IsExecuting() bool { return t.isExecuting.Load() }

// IsFinished reports whether the operation has reached its terminal state.
func (t *TaskOperation[T]) IsFinished() bool { return t.isFinished.Load() }

// IsCancelled reports whether Cancel has been called.
func (t *TaskOperation[T]) IsCancelled() bool { return t.isCancelled.Load() }
