package asyncobjects

import (
	"context"
	"time"
)

// AsyncCountdownEvent is an inverse semaphore: Wait suspends while
// currentCount exceeds limit, and admits once currentCount has been
// brought back down to (or started at/below) limit. Every admission,
// whether immediate or via the drain triggered by Signal/Reset,
// post-increments currentCount by one — admitting a waiter counts as new
// usage against the limit, exactly like the waiter had called Increment(1)
// itself.
type AsyncCountdownEvent struct {
	instrumented
	locker       *Locker
	limit        uint32
	initialCount uint32
	currentCount uint32
	waiters      *waiterRegistry[struct{}]
}

// CountdownOption configures a new AsyncCountdownEvent.
type CountdownOption func(*countdownConfig)

type countdownConfig struct {
	logger Logger
}

// WithCountdownLogger attaches a structured logging sink to the countdown
// event.
func WithCountdownLogger(logger Logger) CountdownOption {
	return func(c *countdownConfig) { c.logger = logger }
}

func resolveCountdownOptions(opts []CountdownOption) countdownConfig {
	var cfg countdownConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewAsyncCountdownEvent constructs a countdown event admitting waiters
// whenever currentCount <= limit. initial seeds currentCount (and the
// value Reset later restores it to).
func NewAsyncCountdownEvent(limit, initial uint32, opts ...CountdownOption) *AsyncCountdownEvent {
	cfg := resolveCountdownOptions(opts)
	c := &AsyncCountdownEvent{
		instrumented: newInstrumented("AsyncCountdownEvent", cfg.logger),
		locker:       NewLocker(),
		limit:        limit,
		initialCount: initial,
		currentCount: initial,
		waiters:      newWaiterRegistry[struct{}](),
	}
	return c
}

// Limit returns the configured admission ceiling.
func (c *AsyncCountdownEvent) Limit() uint32 {
	var v uint32
	c.locker.Perform(func() { v = c.limit })
	return v
}

// InitialCount returns the count Reset restores.
func (c *AsyncCountdownEvent) InitialCount() uint32 {
	var v uint32
	c.locker.Perform(func() { v = c.initialCount })
	return v
}

// CurrentCount returns the live count.
func (c *AsyncCountdownEvent) CurrentCount() uint32 {
	var v uint32
	c.locker.Perform(func() { v = c.currentCount })
	return v
}

// IsSet reports currentCount <= limit.
func (c *AsyncCountdownEvent) IsSet() bool {
	var v bool
	c.locker.Perform(func() { v = c.isSetLocked() })
	return v
}

func (c *AsyncCountdownEvent) isSetLocked() bool {
	return c.currentCount <= c.limit
}

// Increment adds delta to currentCount. It is pure mutation: it never
// wakes waiters, even if it happens to push currentCount above the limit.
// Its purpose is to register new high-priority usage before any matching
// Signal arrives.
func (c *AsyncCountdownEvent) Increment(delta uint32) {
	c.locker.Perform(func() {
		c.currentCount += delta
	})
	c.log(LevelDebug, "increment", nil, nil, map[string]any{"delta": delta})
}

// Signal decrements currentCount by one, saturating at zero, then attempts
// to admit waiters. Equivalent to SignalRepeat(1).
func (c *AsyncCountdownEvent) Signal() {
	c.signal(1)
}

// SignalRepeat decrements currentCount by n, saturating at zero, then
// attempts to admit waiters.
func (c *AsyncCountdownEvent) SignalRepeat(n uint32) {
	c.signal(n)
}

func (c *AsyncCountdownEvent) signal(n uint32) {
	c.locker.Perform(func() {
		if n > c.currentCount {
			c.currentCount = 0
		} else {
			c.currentCount -= n
		}
		c.drainLocked()
	})
	c.log(LevelInfo, "signal", nil, nil, map[string]any{"n": n})
}

// Reset restores currentCount to initialCount, then attempts to admit
// waiters.
func (c *AsyncCountdownEvent) Reset() {
	c.locker.Perform(func() {
		c.currentCount = c.initialCount
		c.drainLocked()
	})
	c.log(LevelInfo, "reset", nil, nil, nil)
}

// ResetTo sets both initialCount and currentCount to n, then attempts to
// admit waiters.
func (c *AsyncCountdownEvent) ResetTo(n uint32) {
	c.locker.Perform(func() {
		c.initialCount = n
		c.currentCount = n
		c.drainLocked()
	})
	c.log(LevelInfo, "reset", nil, nil, map[string]any{"to": n})
}

// drainLocked admits queued waiters while isSet holds, stopping as soon as
// the admission condition fails again. Must be called with the locker
// already held.
func (c *AsyncCountdownEvent) drainLocked() {
	for c.isSetLocked() && c.waiters.len() > 0 {
		if !c.waiters.resumeFront(waiterResult[struct{}]{}) {
			break
		}
		c.currentCount++
	}
}

func (c *AsyncCountdownEvent) tryAdmit() (struct{}, bool) {
	if c.isSetLocked() && c.waiters.len() == 0 {
		c.currentCount++
		return struct{}{}, true
	}
	return struct{}{}, false
}

// Wait suspends until isSet holds with no other waiter ahead of it, or
// until admitted by the drain triggered from a later Signal/Reset, or
// until ctx is cancelled.
func (c *AsyncCountdownEvent) Wait(ctx context.Context) error {
	_, err := waitFor(ctx, c.locker, c.waiters, c.tryAdmit)
	return err
}

// WaitTimeout is Wait bounded by timeout, surfacing TimedOut if the
// deadline elapses first.
func (c *AsyncCountdownEvent) WaitTimeout(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := waitFor(tctx, c.locker, c.waiters, c.tryAdmit)
	if err != nil && ctx.Err() == nil && tctx.Err() == context.DeadlineExceeded {
		err = &TimedOutError{Waited: timeout.String()}
	}
	return err
}

// Close resumes every outstanding waiter with Cancelled.
func (c *AsyncCountdownEvent) Close() {
	c.locker.Perform(func() {
		c.waiters.resumeAll(waiterResult[struct{}]{err: Cancelled})
	})
}
