package asyncobjects

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskTracker_FiresOnlyWhenRefcountReachesZero(t *testing.T) {
	var fired atomic.Int32
	tracker := newTaskTracker(func() { fired.Add(1) })

	tracker.Retain()
	tracker.Retain()
	tracker.Release()
	require.Equal(t, int32(0), fired.Load())

	tracker.Release()
	require.Equal(t, int32(0), fired.Load())

	tracker.Release()
	require.Equal(t, int32(1), fired.Load())
}

func TestTaskTracker_FiresAtMostOnce(t *testing.T) {
	var fired atomic.Int32
	tracker := newTaskTracker(func() { fired.Add(1) })
	tracker.Retain()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Release()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), fired.Load())
}

func TestTrackUnstructuredTask_WithoutTrackerRunsUntracked(t *testing.T) {
	done := make(chan struct{})
	TrackUnstructuredTask(context.Background(), func(ctx context.Context) {
		close(done)
	})
	<-done
}

func TestTrackUnstructuredTask_RetainsAndReleasesInstalledTracker(t *testing.T) {
	var fired atomic.Bool
	tracker := newTaskTracker(func() { fired.Store(true) })
	ctx := withTaskTracker(context.Background(), tracker)

	started := make(chan struct{})
	finish := make(chan struct{})
	TrackUnstructuredTask(ctx, func(ctx context.Context) {
		close(started)
		<-finish
	})
	<-started

	tracker.Release() // drop the creator's own reference
	require.False(t, fired.Load(), "tracker must not fire while the descendant is still running")

	close(finish)
	require.Eventually(t, fired.Load, time.Second, 10*time.Millisecond)
}
