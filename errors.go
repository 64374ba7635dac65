package asyncobjects

import "fmt"

// CancelledError is surfaced by Wait/Get/Exec when the calling goroutine's
// context is cancelled while suspended. Compare against it with errors.Is;
// do not compare the underlying ctx.Err() directly, since CancelledError
// wraps it as Cause.
type CancelledError struct {
	// Cause is the context error (context.Canceled or
	// context.DeadlineExceeded) that triggered the cancellation, or nil if
	// the primitive was destroyed or explicitly cancelled without a context.
	Cause error
}

// Cancelled is the sentinel value returned whenever cancellation carries no
// specific cause. Compare with errors.Is(err, asyncobjects.Cancelled).
var Cancelled error = &CancelledError{}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("asyncobjects: cancelled: %v", e.Cause)
	}
	return "asyncobjects: cancelled"
}

// Unwrap exposes Cause for errors.Is/errors.As chains.
func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// Is reports true for any *CancelledError, regardless of Cause, so that
// errors.Is(err, Cancelled) matches every cancellation this package
// produces.
func (e *CancelledError) Is(target error) bool {
	_, ok := target.(*CancelledError)
	return ok
}

// newCancelled wraps cause (typically ctx.Err()) as a *CancelledError.
func newCancelled(cause error) error {
	return &CancelledError{Cause: cause}
}

// TimedOutError is surfaced only by timed Wait variants, when the deadline
// elapses before the primitive's condition is satisfied. It is always
// distinct from CancelledError: a timeout is an expected, user-set
// deadline; a cancellation is the calling goroutine being shut down.
type TimedOutError struct {
	// Waited is included for diagnostics; it is not part of the error's
	// identity (TimedOut matches regardless of this value).
	Waited string
}

// TimedOut is the sentinel value for every timeout this package produces.
var TimedOut error = &TimedOutError{}

func (e *TimedOutError) Error() string {
	if e.Waited != "" {
		return fmt.Sprintf("asyncobjects: timed out after %s", e.Waited)
	}
	return "asyncobjects: timed out"
}

// Is reports true for any *TimedOutError.
func (e *TimedOutError) Is(target error) bool {
	_, ok := target.(*TimedOutError)
	return ok
}

// EarlyInvokeError is surfaced only by TaskOperation.Result when the
// operation was never started.
type EarlyInvokeError struct{}

// ErrEarlyInvoke is the sentinel value for EarlyInvokeError.
var ErrEarlyInvoke error = &EarlyInvokeError{}

func (e *EarlyInvokeError) Error() string {
	return "asyncobjects: result requested before the operation was started"
}

// Is reports true for any *EarlyInvokeError.
func (e *EarlyInvokeError) Is(target error) bool {
	_, ok := target.(*EarlyInvokeError)
	return ok
}
