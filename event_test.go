package asyncobjects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncEvent_SignalThenWaitReturnsImmediately(t *testing.T) {
	e := NewAsyncEvent(false)
	e.Signal()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func TestAsyncEvent_SignalIsIdempotent(t *testing.T) {
	e := NewAsyncEvent(false)
	e.Signal()
	e.Signal()
	require.NoError(t, e.Wait(context.Background()))
}

func TestAsyncEvent_ResetThenSignalThenWait(t *testing.T) {
	e := NewAsyncEvent(true)
	e.Reset()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Wait(context.Background()) }()

	select {
	case <-errCh:
		t.Fatal("wait returned before signal")
	case <-time.After(20 * time.Millisecond):
	}

	e.Signal()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait never resumed after signal")
	}
}

func TestAsyncEvent_WaitTimeout(t *testing.T) {
	e := NewAsyncEvent(false)
	err := e.WaitTimeout(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, TimedOut)
}

func TestAsyncEvent_CloseResumesWaitersWithCancelled(t *testing.T) {
	e := NewAsyncEvent(false)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Wait(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, Cancelled)
	case <-time.After(time.Second):
		t.Fatal("waiter was not resumed by Close")
	}
}

func TestAsyncEvent_CancelledContext(t *testing.T) {
	e := NewAsyncEvent(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Wait(ctx)
	require.ErrorIs(t, err, Cancelled)
}
