package asyncobjects

import (
	"context"
	"sync"
)

// TaskTracker fires a completion callback exactly once, when its refcount
// — one per live task still referencing it, starting at one for the
// operation that created it — reaches zero. There is no language-level
// deinit/ARC to hang this off in Go, so the refcount is explicit: callers
// must pair every Retain with a Release.
//
// TaskTracker is carried through a context.Context so that descendant
// goroutines launched by a tracked TaskOperation can find and retain it
// before they start, the same way the source propagates it through the
// cooperative-task context.
type TaskTracker struct {
	mu         sync.Mutex
	count      int
	fired      bool
	onComplete func()
}

func newTaskTracker(onComplete func()) *TaskTracker {
	return &TaskTracker{count: 1, onComplete: onComplete}
}

// Retain adds one reference. Must be paired with a later Release.
func (t *TaskTracker) Retain() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

// Release removes one reference, firing the completion callback exactly
// once if this was the last one.
func (t *TaskTracker) Release() {
	t.mu.Lock()
	t.count--
	fire := t.count == 0 && !t.fired
	if fire {
		t.fired = true
	}
	t.mu.Unlock()
	if fire && t.onComplete != nil {
		t.onComplete()
	}
}

type taskTrackerKey struct{}

func withTaskTracker(ctx context.Context, tracker *TaskTracker) context.Context {
	return context.WithValue(ctx, taskTrackerKey{}, tracker)
}

func taskTrackerFromContext(ctx context.Context) (*TaskTracker, bool) {
	tracker, ok := ctx.Value(taskTrackerKey{}).(*TaskTracker)
	return tracker, ok
}

// TrackUnstructuredTask launches fn in a new goroutine. If ctx carries a
// TaskTracker (installed by a TaskOperation with trackUnstructuredTasks
// set), the tracker is retained before fn starts and released once it
// returns, so the owning operation's completion waits for fn too.
// Otherwise fn is simply launched untracked.
func TrackUnstructuredTask(ctx context.Context, fn func(context.Context)) {
	tracker, ok := taskTrackerFromContext(ctx)
	if !ok {
		go fn(ctx)
		return
	}
	tracker.Retain()
	go func() {
		defer tracker.Release()
		fn(ctx)
	}()
}
