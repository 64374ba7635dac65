package asyncobjects

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Locker is a thin critical-section primitive wrapping a plain sync.Mutex,
// with re-entrancy detection: a goroutine that calls Perform from within a
// critical section it already holds on the same Locker runs the closure
// directly, instead of deadlocking.
//
// A plain sync.Mutex would deadlock when a closure already holding the lock
// calls Perform on the same Locker again; Locker does not.
//
// Two Lockers are never interchangeable: re-entrancy is tracked per
// *Locker, keyed by the calling goroutine.
//
// Latent: every resume in this port goes through a buffered channel send,
// which never runs on the resuming goroutine's own call stack, so the
// re-entrant branch below is not currently reached by anything in this
// package. It is kept because it faithfully implements the contract a
// caller of Perform is entitled to rely on.
type Locker struct {
	mu   sync.Mutex
	held sync.Map // goroutine id (uint64) -> struct{}
}

// NewLocker constructs a ready-to-use Locker.
func NewLocker() *Locker {
	return &Locker{}
}

// Perform runs critical with the lock held. If the calling goroutine
// already holds this Locker (a re-entrant call), critical runs immediately
// without acquiring the mutex a second time.
func (l *Locker) Perform(critical func()) {
	gid := goroutineID()

	if _, alreadyHeld := l.held.Load(gid); alreadyHeld {
		critical()
		return
	}

	l.mu.Lock()
	l.held.Store(gid, struct{}{})
	defer func() {
		l.held.Delete(gid)
		l.mu.Unlock()
	}()

	critical()
}

// goroutineID extracts the calling goroutine's id from its stack trace
// header ("goroutine 123 [running]:"). This is the same technique used by
// most goroutine-local-storage shims in the ecosystem (e.g.
// petermattis/goid); it is deliberately not exposed as a general-purpose
// API — it exists solely to key Locker's re-entrancy set.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	b = bytes.TrimPrefix(b, []byte(prefix))

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}

	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
