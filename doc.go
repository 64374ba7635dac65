// Package asyncobjects provides non-blocking asynchronous synchronization
// primitives for goroutines: an [AsyncSemaphore], an [AsyncEvent], an
// [AsyncCountdownEvent], a [CancellationSource] tree, a [TaskOperation] /
// [TaskQueue] pair bridging handle-style operations onto goroutines, and a
// one-shot [Future].
//
// # Suspension model
//
// Every primitive here suspends a caller by parking a goroutine on a
// `select` between a single-use channel and ctx.Done() — never by holding
// an OS thread in a spin or futex wait, and never by blocking inside a
// locked critical section. Cancellation is cooperative: it is observed via
// context.Context, exactly like the rest of the Go ecosystem, and always
// surfaces as [Cancelled] rather than the underlying ctx.Err() (see
// errors.go).
//
// # FIFO
//
// Waiters on the same primitive are resumed in registration order. There is
// no ordering guarantee across primitives, and no stronger fairness
// guarantee than FIFO (no priority, no starvation-freedom proof).
//
// # Logging
//
// Every primitive optionally accepts a [Logger] via its own logger option
// (e.g. [WithSemaphoreLogger], [WithEventLogger]).
// When absent, logging is a no-op (see logging.go). [NewLogifaceLogger]
// adapts a github.com/joeycumines/logiface logger to the [Logger]
// interface.
package asyncobjects
