package rtkernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForQueuedWaiter(t *testing.T, q *waitQueue) {
	t.Helper()
	require.Eventually(t, func() bool { return q.waitCount == 1 }, time.Second, time.Millisecond)
}

func TestEventGroupOrWaitWakesOnFirstMatchingBit(t *testing.T) {
	k := NewKernel()
	e, err := k.CreateEventGroup("e")
	require.NoError(t, err)

	type result struct {
		recved uint32
		err    error
	}
	done := make(chan result, 1)
	th, err := k.CreateThread("waiter", func(any) {
		recved, err := k.RecvEvent(e, 0b0110, EventOr, Forever)
		done <- result{recved, err}
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	waitForQueuedWaiter(t, e.waitQ)
	e.Send(0b0010)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, uint32(0b0010), r.recved)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke on OR match")
	}
}

func TestEventFlagsAND(t *testing.T) {
	k := NewKernel()
	e, err := k.CreateEventGroup("e")
	require.NoError(t, err)

	type result struct {
		recved uint32
		err    error
	}
	done := make(chan result, 1)
	th, err := k.CreateThread("waiter", func(any) {
		recved, err := k.RecvEvent(e, 0b0011, EventAnd, Forever)
		done <- result{recved, err}
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	waitForQueuedWaiter(t, e.waitQ)
	e.Send(0b0001)

	select {
	case <-done:
		t.Fatal("AND wait satisfied by a partial bit match")
	case <-time.After(50 * time.Millisecond):
	}

	e.Send(0b0010)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, uint32(0b0011), r.recved)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke once both bits were set")
	}
}

func TestEventGroupClearConsumesMatchedBits(t *testing.T) {
	k := NewKernel()
	e, err := k.CreateEventGroup("e")
	require.NoError(t, err)

	done := make(chan uint32, 1)
	th, err := k.CreateThread("waiter", func(any) {
		recved, err := k.RecvEvent(e, 0b0001, EventOr|EventClear, Forever)
		require.NoError(t, err)
		done <- recved
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	waitForQueuedWaiter(t, e.waitQ)
	e.Send(0b0011)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}

	// Bit 0 was cleared on consumption; bit 1 (never requested) survives.
	_, err = k.RecvEvent(e, 0b0001, EventOr, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	matched, err := k.RecvEvent(e, 0b0010, EventOr, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b0010), matched)
}

func TestEventGroupRecvTimeout(t *testing.T) {
	k := NewKernel()
	e, err := k.CreateEventGroup("e")
	require.NoError(t, err)

	done := make(chan error, 1)
	th, err := k.CreateThread("waiter", func(any) {
		_, err := k.RecvEvent(e, 0b1, EventOr, 3)
		done <- err
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	waitForQueuedWaiter(t, e.waitQ)
	for i := 0; i < 3; i++ {
		k.Tick(1)
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("waiter never timed out")
	}
}

func TestEventGroupDeleteBreaksWaiters(t *testing.T) {
	k := NewKernel()
	e, err := k.CreateEventGroup("e")
	require.NoError(t, err)

	done := make(chan error, 1)
	th, err := k.CreateThread("waiter", func(any) {
		_, err := k.RecvEvent(e, 0b1, EventOr, Forever)
		done <- err
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	waitForQueuedWaiter(t, e.waitQ)
	k.DeleteEventGroup(e)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBroken)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke on delete")
	}
}
