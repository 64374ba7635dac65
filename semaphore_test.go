package asyncobjects

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncSemaphore_WaitConsumesPermit(t *testing.T) {
	s := NewAsyncSemaphore(1)
	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Wait(ctx)
	require.ErrorIs(t, err, Cancelled)
}

func TestAsyncSemaphore_SignalHandsOffDirectly(t *testing.T) {
	s := NewAsyncSemaphore(0)

	var (
		mu        sync.Mutex
		order     []int
		wg        sync.WaitGroup
		readyOnce = make(chan struct{})
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				close(readyOnce)
			}
			require.NoError(t, s.Wait(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}

	time.Sleep(30 * time.Millisecond) // let all three register as waiters
	s.Signal()
	s.Signal()
	s.Signal()
	wg.Wait()

	require.Len(t, order, 3)
	require.ElementsMatch(t, []int{0, 1, 2}, order)
}

func TestAsyncSemaphore_FIFOFairness(t *testing.T) {
	s := NewAsyncSemaphore(0)
	const n = 5
	resumeOrder := make(chan int, n)

	for i := 0; i < n; i++ {
		go func(i int) {
			_ = s.Wait(context.Background())
			resumeOrder <- i
		}(i)
		time.Sleep(5 * time.Millisecond) // force registration order
	}

	for i := 0; i < n; i++ {
		s.Signal()
	}

	for i := 0; i < n; i++ {
		got := <-resumeOrder
		require.Equal(t, i, got)
	}
}

func TestAsyncSemaphore_WaitTimeout(t *testing.T) {
	s := NewAsyncSemaphore(0)
	err := s.WaitTimeout(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, TimedOut)

	// no permit should have leaked to a later signal/wait
	s.Signal()
	require.NoError(t, s.Wait(context.Background()))
}

func TestAsyncSemaphore_BoundsConcurrentEntries(t *testing.T) {
	s := NewAsyncSemaphore(3)
	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Wait(context.Background()))
			n := inFlight.Add(1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(40 * time.Millisecond)
			inFlight.Add(-1)
			s.Signal()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(3), maxInFlight.Load())
}

func TestAsyncSemaphore_CloseResumesWaitersWithCancelled(t *testing.T) {
	s := NewAsyncSemaphore(0)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Wait(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, Cancelled)
	case <-time.After(time.Second):
		t.Fatal("waiter was not resumed by Close")
	}
}
