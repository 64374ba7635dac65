package asyncobjects

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Settled is one input's outcome inside an AllSettled result.
type Settled[T any] struct {
	Value T
	Err   error
}

// All returns a future fulfilled with every input's value, in input order,
// once all have fulfilled. It rejects with the first rejection observed
// and cancels the remaining outstanding Gets. An empty input list fulfills
// immediately with an empty slice.
func All[T any](ctx context.Context, futures []*Future[T]) *Future[[]T] {
	result := NewFuture[[]T]()
	if len(futures) == 0 {
		result.Fulfill([]T{})
		return result
	}

	innerCtx, cancel := context.WithCancel(ctx)
	values := make([]T, len(futures))
	var mu sync.Mutex
	remaining := len(futures)

	for i, fut := range futures {
		idx, f := i, fut
		go func() {
			v, err := f.Get(innerCtx)
			if err != nil {
				result.FulfillError(err)
				cancel()
				return
			}
			mu.Lock()
			values[idx] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				result.Fulfill(values)
				cancel()
			}
		}()
	}
	return result
}

// AllSettled returns a future fulfilled with every input's outcome, in
// input order, once all have settled. It never rejects. An empty input
// list fulfills immediately with an empty slice.
func AllSettled[T any](ctx context.Context, futures []*Future[T]) *Future[[]Settled[T]] {
	result := NewFuture[[]Settled[T]]()
	if len(futures) == 0 {
		result.Fulfill([]Settled[T]{})
		return result
	}

	results := make([]Settled[T], len(futures))
	var mu sync.Mutex
	remaining := len(futures)

	for i, fut := range futures {
		idx, f := i, fut
		go func() {
			v, err := f.Get(ctx)
			mu.Lock()
			results[idx] = Settled[T]{Value: v, Err: err}
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				result.Fulfill(results)
			}
		}()
	}
	return result
}

// Race returns a future settled with the outcome of whichever input
// settles first, cancelling the rest. An empty input list never settles.
func Race[T any](ctx context.Context, futures []*Future[T]) *Future[T] {
	result := NewFuture[T]()
	if len(futures) == 0 {
		return result
	}

	innerCtx, cancel := context.WithCancel(ctx)
	for _, fut := range futures {
		f := fut
		go func() {
			v, err := f.Get(innerCtx)
			if err != nil {
				result.FulfillError(err)
			} else {
				result.Fulfill(v)
			}
			cancel()
		}()
	}
	return result
}

// Any returns a future fulfilled with the first input to fulfill. If every
// input rejects, Any rejects with Cancelled. An empty input list rejects
// with Cancelled immediately.
func Any[T any](ctx context.Context, futures []*Future[T]) *Future[T] {
	result := NewFuture[T]()
	if len(futures) == 0 {
		result.FulfillError(Cancelled)
		return result
	}

	innerCtx, cancel := context.WithCancel(ctx)
	var mu sync.Mutex
	remaining := len(futures)

	for _, fut := range futures {
		f := fut
		go func() {
			v, err := f.Get(innerCtx)
			if err == nil {
				result.Fulfill(v)
				cancel()
				return
			}
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				result.FulfillError(Cancelled)
				cancel()
			}
		}()
	}
	return result
}

// Waiter is anything with a cooperative Wait(ctx) error method: every
// primitive in this package except Future (which has Get instead) satisfies
// it, which is what lets WaitForAll/WaitForAny operate over a mix of them.
type Waiter interface {
	Wait(ctx context.Context) error
}

// WaitForAll waits for every object to complete, fanning out via an
// errgroup so the first failure cancels the group's derived context for
// the rest. An empty object list returns nil immediately.
func WaitForAll(ctx context.Context, objects ...Waiter) error {
	if len(objects) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range objects {
		obj := o
		g.Go(func() error { return obj.Wait(gctx) })
	}
	return g.Wait()
}

// WaitForAny returns once exactly count of objects have completed their
// Wait, cancelling the rest. It returns the first error observed among
// those count completions, or nil if none failed. count is clamped to
// len(objects).
func WaitForAny(ctx context.Context, count int, objects ...Waiter) error {
	if count <= 0 || len(objects) == 0 {
		return nil
	}
	if count > len(objects) {
		count = len(objects)
	}

	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan error, len(objects))
	for _, o := range objects {
		obj := o
		go func() { resultCh <- obj.Wait(innerCtx) }()
	}

	var firstErr error
	for i := 0; i < count; i++ {
		select {
		case err := <-resultCh:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return newCancelled(ctx.Err())
		}
	}
	return firstErr
}

// WaitForTaskCompletion runs closure on a new goroutine bounded by
// timeout, returning its result if it completes in time, or a TimedOut
// error if the deadline elapses first. closure is expected to observe its
// ctx argument cooperatively; WaitForTaskCompletion does not forcibly
// terminate a closure that ignores cancellation, it simply stops waiting
// for it.
func WaitForTaskCompletion[T any](ctx context.Context, timeout time.Duration, closure func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan waiterResult[T], 1)
	go func() {
		v, err := closure(tctx)
		resultCh <- waiterResult[T]{value: v, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-tctx.Done():
		if ctx.Err() == nil && tctx.Err() == context.DeadlineExceeded {
			return zero, &TimedOutError{Waited: timeout.String()}
		}
		return zero, newCancelled(ctx.Err())
	}
}
