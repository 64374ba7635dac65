package asyncobjects

import (
	"context"
)

// Future is a one-shot value with waiters: the first call to Fulfill,
// FulfillError, or FulfillResult wins, every subsequent call is a no-op,
// and Get returns the stored result immediately once settled, or suspends
// until it is.
//
// Unlike the teacher's promise, which types its error channel as another
// Result (any), Future keeps Go's (T, error) convention throughout rather
// than parameterizing over a separate Failure type the way the source's
// Future<Output,Failure> does — idiomatic Go has one error type.
type Future[T any] struct {
	instrumented
	locker  *Locker
	settled bool
	value   T
	err     error
	waiters *waiterRegistry[T]
}

// FutureOption configures a new Future.
type FutureOption[T any] func(*futureConfig[T])

type futureConfig[T any] struct {
	logger Logger
}

// WithFutureLogger attaches a structured logging sink to the future.
func WithFutureLogger[T any](logger Logger) FutureOption[T] {
	return func(c *futureConfig[T]) { c.logger = logger }
}

func resolveFutureOptions[T any](opts []FutureOption[T]) futureConfig[T] {
	var cfg futureConfig[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewFuture constructs an unsettled future.
func NewFuture[T any](opts ...FutureOption[T]) *Future[T] {
	cfg := resolveFutureOptions(opts)
	return &Future[T]{
		instrumented: newInstrumented("Future", cfg.logger),
		locker:       NewLocker(),
		waiters:      newWaiterRegistry[T](),
	}
}

// NewFutureWithResult constructs a future already settled with value/err.
func NewFutureWithResult[T any](value T, err error, opts ...FutureOption[T]) *Future[T] {
	f := NewFuture(opts...)
	f.settled = true
	f.value = value
	f.err = err
	return f
}

// Resolver is the write-only capability handed to the closure passed to
// NewFutureAttempt, mirroring the source's "attemptToFulfill: (Promise) ->
// async()" constructor while keeping read access (Get) off the closure's
// surface.
type Resolver[T any] struct {
	future *Future[T]
}

// Fulfill settles the underlying future with a value.
func (r *Resolver[T]) Fulfill(value T) { r.future.Fulfill(value) }

// Reject settles the underlying future with an error.
func (r *Resolver[T]) Reject(err error) { r.future.FulfillError(err) }

// NewFutureAttempt runs attempt on a new goroutine, passing it a Resolver
// for the returned future, and returns the future immediately (unsettled
// until attempt calls Fulfill or Reject).
func NewFutureAttempt[T any](attempt func(r *Resolver[T]), opts ...FutureOption[T]) *Future[T] {
	f := NewFuture(opts...)
	go attempt(&Resolver[T]{future: f})
	return f
}

// Fulfill settles the future with value. No-op if already settled.
func (f *Future[T]) Fulfill(value T) {
	f.fulfill(value, nil)
}

// FulfillError settles the future with err. No-op if already settled.
func (f *Future[T]) FulfillError(err error) {
	var zero T
	f.fulfill(zero, err)
}

// FulfillResult settles the future with the given (value, err) pair
// directly. No-op if already settled.
func (f *Future[T]) FulfillResult(value T, err error) {
	f.fulfill(value, err)
}

func (f *Future[T]) fulfill(value T, err error) {
	var did bool
	f.locker.Perform(func() {
		if f.settled {
			return
		}
		f.settled = true
		f.value = value
		f.err = err
		did = true
		f.waiters.resumeAll(waiterResult[T]{value: value, err: err})
	})
	if did {
		f.log(LevelInfo, "fulfill", nil, err, nil)
	}
}

// Get returns the settled result immediately if the future is already
// settled, else suspends until Fulfill/FulfillError/FulfillResult is
// called or ctx is cancelled.
//
// This does not go through the shared waitFor helper: waitFor's tryAdmit
// signature carries only a value on its fast path, and Future's fast path
// must also be able to return a stored error (from FulfillError), which
// waitFor has no slot for.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, newCancelled(err)
	}

	var (
		id      waiterID
		ch      <-chan waiterResult[T]
		settled bool
		value   T
		ferr    error
	)
	f.locker.Perform(func() {
		if f.settled {
			settled = true
			value = f.value
			ferr = f.err
			return
		}
		id, ch = f.waiters.insert()
	})
	if settled {
		return value, ferr
	}

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		var removedHere bool
		f.locker.Perform(func() {
			removedHere = f.waiters.remove(id)
		})
		if removedHere {
			return zero, newCancelled(ctx.Err())
		}
		res := <-ch
		return res.value, res.err
	}
}

// Result returns the currently stored (value, err) and whether the future
// has settled, without suspending.
func (f *Future[T]) Result() (value T, err error, settled bool) {
	f.locker.Perform(func() {
		settled = f.settled
		value = f.value
		err = f.err
	})
	return
}
