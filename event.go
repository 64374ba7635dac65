package asyncobjects

import (
	"context"
	"time"
)

// AsyncEvent is a manual-reset event: Wait returns immediately once
// Signal has been called, and continues to do so until Reset. Invariant:
// whenever signalled is true, the waiter registry is empty (every waiter
// was resumed the moment Signal flipped the flag).
type AsyncEvent struct {
	instrumented
	locker    *Locker
	signalled bool
	waiters   *waiterRegistry[struct{}]
}

// EventOption configures a new AsyncEvent.
type EventOption func(*eventConfig)

type eventConfig struct {
	logger Logger
}

// WithEventLogger attaches a structured logging sink to the event.
func WithEventLogger(logger Logger) EventOption {
	return func(c *eventConfig) { c.logger = logger }
}

func resolveEventOptions(opts []EventOption) eventConfig {
	var cfg eventConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewAsyncEvent constructs an AsyncEvent, initially signalled iff
// signalledInitially is true.
func NewAsyncEvent(signalledInitially bool, opts ...EventOption) *AsyncEvent {
	cfg := resolveEventOptions(opts)
	return &AsyncEvent{
		instrumented: newInstrumented("AsyncEvent", cfg.logger),
		locker:       NewLocker(),
		signalled:    signalledInitially,
		waiters:      newWaiterRegistry[struct{}](),
	}
}

// Signal sets the event to signalled and resumes every waiter in
// registration order. Idempotent: signalling an already-signalled event
// with no waiters is a no-op.
func (e *AsyncEvent) Signal() {
	e.locker.Perform(func() {
		e.signalled = true
		e.waiters.resumeAll(waiterResult[struct{}]{})
	})
	e.log(LevelInfo, "signal", nil, nil, nil)
}

// Reset clears signalled. Waiters already suspended are unaffected; future
// Wait calls suspend until the next Signal.
func (e *AsyncEvent) Reset() {
	e.locker.Perform(func() {
		e.signalled = false
	})
	e.log(LevelInfo, "reset", nil, nil, nil)
}

// Wait returns immediately if the event is signalled, else suspends until
// Signal is called or ctx is cancelled.
func (e *AsyncEvent) Wait(ctx context.Context) error {
	_, err := waitFor(ctx, e.locker, e.waiters, e.tryPass)
	return err
}

// WaitTimeout is Wait bounded by timeout, surfacing TimedOut if the
// deadline elapses first.
func (e *AsyncEvent) WaitTimeout(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := waitFor(tctx, e.locker, e.waiters, e.tryPass)
	if err != nil && ctx.Err() == nil && tctx.Err() == context.DeadlineExceeded {
		err = &TimedOutError{Waited: timeout.String()}
	}
	return err
}

func (e *AsyncEvent) tryPass() (struct{}, bool) {
	return struct{}{}, e.signalled
}

// Close resumes every outstanding waiter with Cancelled.
func (e *AsyncEvent) Close() {
	e.locker.Perform(func() {
		e.waiters.resumeAll(waiterResult[struct{}]{err: Cancelled})
	})
}
