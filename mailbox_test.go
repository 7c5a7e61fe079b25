package rtkernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxSendRecvFIFO(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 4, FIFO)
	require.NoError(t, err)

	require.NoError(t, k.Send(mb, "a"))
	require.NoError(t, k.Send(mb, "b"))

	msg, err := k.RecvMail(mb, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", msg)

	msg, err = k.RecvMail(mb, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", msg)

	_, err = k.RecvMail(mb, 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMailboxFull(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 2, FIFO)
	require.NoError(t, err)

	require.NoError(t, k.Send(mb, 1))
	require.NoError(t, k.Send(mb, 2))
	assert.ErrorIs(t, k.Send(mb, 3), ErrFull)
}

func TestMailboxRecvBlocksUntilSend(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 2, FIFO)
	require.NoError(t, err)

	done := make(chan any, 1)
	th, err := k.CreateThread("waiter", func(any) {
		msg, err := k.RecvMail(mb, Forever)
		require.NoError(t, err)
		done <- msg
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	require.Eventually(t, func() bool { return mb.recvQ.waitCount == 1 }, time.Second, time.Millisecond)
	require.NoError(t, k.Send(mb, "hello"))

	select {
	case msg := <-done:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("waiter never received the mail")
	}
}

func TestMailboxRecvTimeout(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 2, FIFO)
	require.NoError(t, err)

	done := make(chan error, 1)
	th, err := k.CreateThread("waiter", func(any) {
		_, err := k.RecvMail(mb, 4)
		done <- err
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	require.Eventually(t, func() bool { return mb.recvQ.waitCount == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 4; i++ {
		k.Tick(1)
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("waiter never timed out")
	}
}

// TestMailboxSendToQueuedWaiterBypassesRing checks that a message handed
// to an already-waiting receiver is claimed on that receiver directly
// and never touches the ring buffer, so a second queued receiver cannot
// observe or steal it, and len stays zero rather than going negative.
func TestMailboxSendToQueuedWaiterBypassesRing(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 2, FIFO)
	require.NoError(t, err)

	results := make(chan any, 2)
	spawn := func(name string) {
		th, err := k.CreateThread(name, func(any) {
			msg, err := k.RecvMail(mb, Forever)
			require.NoError(t, err)
			results <- msg
		}, nil, 4096, 10, 0)
		require.NoError(t, err)
		require.NoError(t, k.Startup(th))
	}
	spawn("r1")
	spawn("r2")
	k.Start()

	require.Eventually(t, func() bool { return mb.recvQ.waitCount == 2 }, time.Second, time.Millisecond)

	require.NoError(t, k.Send(mb, "first"))
	require.NoError(t, k.Send(mb, "second"))

	got := make(map[any]bool, 2)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-results:
			got[msg] = true
		case <-time.After(time.Second):
			t.Fatal("not every waiter received its mail")
		}
	}
	assert.True(t, got["first"] && got["second"], "each waiter must receive a distinct message")
	assert.Equal(t, 0, mb.len, "messages claimed directly by waiters must never enter the ring")
}

func TestMailboxDetachBreaksWaiters(t *testing.T) {
	k := NewKernel()
	mb, err := k.CreateMailbox("mb", 2, FIFO)
	require.NoError(t, err)

	done := make(chan error, 1)
	th, err := k.CreateThread("waiter", func(any) {
		_, err := k.RecvMail(mb, Forever)
		done <- err
	}, nil, 4096, 10, 0)
	require.NoError(t, err)
	require.NoError(t, k.Startup(th))
	k.Start()

	require.Eventually(t, func() bool { return mb.recvQ.waitCount == 1 }, time.Second, time.Millisecond)
	k.DetachMailbox(mb)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBroken)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke on detach")
	}
}
