package asyncobjects

import (
	"context"
	"time"
)

// AsyncSemaphore is a counting semaphore whose Wait suspends a goroutine
// rather than blocking an OS thread. The simpler-but-equivalent model
// spec §4.3 explicitly permits is the one implemented: a plain counter plus
// a waiterRegistry, instead of the Swift source's internal
// producer/consumer permit pipeline. Signal resumes the oldest waiter if
// one exists, else increments the counter; Wait consumes the counter if
// positive, else registers.
type AsyncSemaphore struct {
	instrumented
	locker  *Locker
	count   uint32
	waiters *waiterRegistry[struct{}]
}

// SemaphoreOption configures a new AsyncSemaphore.
type SemaphoreOption func(*semaphoreConfig)

type semaphoreConfig struct {
	logger Logger
}

// WithSemaphoreLogger attaches a structured logging sink to the semaphore.
func WithSemaphoreLogger(logger Logger) SemaphoreOption {
	return func(c *semaphoreConfig) { c.logger = logger }
}

func resolveSemaphoreOptions(opts []SemaphoreOption) semaphoreConfig {
	var cfg semaphoreConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewAsyncSemaphore constructs a semaphore initialized with value permits
// available.
func NewAsyncSemaphore(value uint32, opts ...SemaphoreOption) *AsyncSemaphore {
	cfg := resolveSemaphoreOptions(opts)
	return &AsyncSemaphore{
		instrumented: newInstrumented("AsyncSemaphore", cfg.logger),
		locker:       NewLocker(),
		count:        value,
		waiters:      newWaiterRegistry[struct{}](),
	}
}

// Signal produces one permit: it resumes the oldest waiter if any is
// registered (the permit is handed directly to them, never touching the
// counter), else increments the counter. Returns immediately.
func (s *AsyncSemaphore) Signal() {
	s.locker.Perform(func() {
		if s.waiters.resumeFront(waiterResult[struct{}]{}) {
			s.log(LevelDebug, "signal", nil, nil, map[string]any{"handoff": true})
			return
		}
		s.count++
		s.log(LevelDebug, "signal", nil, nil, map[string]any{"count": s.count})
	})
}

// Wait suspends until a permit is available, or ctx is cancelled first (in
// which case it returns an error matching errors.Is(err, Cancelled)).
func (s *AsyncSemaphore) Wait(ctx context.Context) error {
	_, err := waitFor(ctx, s.locker, s.waiters, s.tryAcquire)
	if err != nil {
		s.log(LevelDebug, "wait", nil, err, nil)
	}
	return err
}

// WaitTimeout suspends until a permit is available, ctx is cancelled, or
// timeout elapses first (in which case it returns an error matching
// errors.Is(err, TimedOut)). The timeout race cancels the loser cleanly:
// if the deadline wins, the waiter entry is removed before any permit
// could be handed to it, so no permit is leaked; if a permit wins, the
// deferred cancel stops the timer when WaitTimeout returns.
func (s *AsyncSemaphore) WaitTimeout(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := waitFor(tctx, s.locker, s.waiters, s.tryAcquire)
	if err != nil && ctx.Err() == nil && tctx.Err() == context.DeadlineExceeded {
		err = &TimedOutError{Waited: timeout.String()}
	}
	return err
}

func (s *AsyncSemaphore) tryAcquire() (struct{}, bool) {
	if s.count > 0 {
		s.count--
		return struct{}{}, true
	}
	return struct{}{}, false
}

// Close resumes every outstanding waiter with Cancelled, so a caller that
// owns a semaphore's lifetime can release its suspended waiters. It does not
// close the semaphore: Wait calls made after Close register and suspend as
// before, and Signal keeps working.
func (s *AsyncSemaphore) Close() {
	s.locker.Perform(func() {
		s.waiters.resumeAll(waiterResult[struct{}]{err: Cancelled})
	})
}
