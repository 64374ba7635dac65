package asyncobjects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaiterRegistry_ResumeFrontIsFIFO(t *testing.T) {
	r := newWaiterRegistry[int]()
	_, ch1 := r.insert()
	_, ch2 := r.insert()
	_, ch3 := r.insert()

	require.True(t, r.resumeFront(waiterResult[int]{value: 1}))
	require.True(t, r.resumeFront(waiterResult[int]{value: 2}))
	require.True(t, r.resumeFront(waiterResult[int]{value: 3}))
	require.False(t, r.resumeFront(waiterResult[int]{value: 4}))

	require.Equal(t, 1, (<-ch1).value)
	require.Equal(t, 2, (<-ch2).value)
	require.Equal(t, 3, (<-ch3).value)
}

func TestWaiterRegistry_RemoveThenResumeByIDFails(t *testing.T) {
	r := newWaiterRegistry[int]()
	id, _ := r.insert()

	require.True(t, r.remove(id))
	require.False(t, r.remove(id))
	require.False(t, r.resumeByID(id, waiterResult[int]{value: 9}))
}

func TestWaiterRegistry_ResumeAllDrainsEveryWaiter(t *testing.T) {
	r := newWaiterRegistry[int]()
	_, ch1 := r.insert()
	_, ch2 := r.insert()

	r.resumeAll(waiterResult[int]{value: 7})
	require.Equal(t, 0, r.len())
	require.Equal(t, 7, (<-ch1).value)
	require.Equal(t, 7, (<-ch2).value)
}

func TestWaitFor_AdmitsImmediatelyWithoutRegistering(t *testing.T) {
	l := NewLocker()
	r := newWaiterRegistry[int]()

	value, err := waitFor(context.Background(), l, r, func() (int, bool) {
		return 42, true
	})
	require.NoError(t, err)
	require.Equal(t, 42, value)
	require.Equal(t, 0, r.len())
}

func TestWaitFor_SuspendsThenResumes(t *testing.T) {
	l := NewLocker()
	r := newWaiterRegistry[int]()
	admit := false

	resultCh := make(chan struct {
		value int
		err   error
	}, 1)
	go func() {
		v, err := waitFor(context.Background(), l, r, func() (int, bool) {
			return 0, admit
		})
		resultCh <- struct {
			value int
			err   error
		}{v, err}
	}()

	require.Eventually(t, func() bool {
		var n int
		l.Perform(func() { n = r.len() })
		return n == 1
	}, time.Second, 5*time.Millisecond)

	l.Perform(func() {
		admit = true
		r.resumeFront(waiterResult[int]{value: 5})
	})

	res := <-resultCh
	require.NoError(t, res.err)
	require.Equal(t, 5, res.value)
}

func TestWaitFor_CancelledContextRemovesWaiter(t *testing.T) {
	l := NewLocker()
	r := newWaiterRegistry[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := waitFor(ctx, l, r, func() (int, bool) {
		return 0, false
	})
	require.ErrorIs(t, err, Cancelled)
	require.Equal(t, 0, r.len())
}

func TestWaitFor_AlreadyCancelledContextNeverRegisters(t *testing.T) {
	l := NewLocker()
	r := newWaiterRegistry[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitFor(ctx, l, r, func() (int, bool) {
		return 0, false
	})
	require.ErrorIs(t, err, Cancelled)
	require.Equal(t, 0, r.len())
}
