package asyncobjects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_FulfillThenGetReturnsImmediately(t *testing.T) {
	f := NewFuture[int]()
	f.Fulfill(7)

	value, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, value)
}

func TestFuture_FirstFulfillWins(t *testing.T) {
	f := NewFuture[string]()
	f.Fulfill("first")
	f.Fulfill("second")

	value, _, settled := f.Result()
	require.True(t, settled)
	require.Equal(t, "first", value)
}

func TestFuture_GetSuspendsUntilFulfilled(t *testing.T) {
	f := NewFuture[int]()
	resultCh := make(chan int, 1)
	go func() {
		v, err := f.Get(context.Background())
		require.NoError(t, err)
		resultCh <- v
	}()

	time.Sleep(20 * time.Millisecond)
	f.Fulfill(99)

	select {
	case v := <-resultCh:
		require.Equal(t, 99, v)
	case <-time.After(time.Second):
		t.Fatal("Get never resumed after Fulfill")
	}
}

func TestFuture_FulfillErrorSurfacesOnGet(t *testing.T) {
	boom := errors.New("boom")
	f := NewFuture[int]()
	f.FulfillError(boom)

	_, err := f.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestFuture_GetCancelledContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	require.ErrorIs(t, err, Cancelled)
}

func TestFuture_NewWithResult(t *testing.T) {
	f := NewFutureWithResult(5, nil)
	value, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, value)
}

func TestFuture_NewFutureAttempt(t *testing.T) {
	f := NewFutureAttempt(func(r *Resolver[int]) {
		time.Sleep(10 * time.Millisecond)
		r.Fulfill(3)
	})

	value, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, value)
}
