package rtkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReadyTable(t *testing.T) (*Kernel, *readyTable) {
	t.Helper()
	k := &Kernel{hal: newMutexHAL()}
	rt := newReadyTable(k, 32)
	k.sched = rt
	return k, rt
}

func TestReadyTableHighestPriorityWins(t *testing.T) {
	_, rt := newTestReadyTable(t)

	low := &Thread{CurrentPriority: 20, cpuToken: make(chan struct{}, 1)}
	high := &Thread{CurrentPriority: 2, cpuToken: make(chan struct{}, 1)}
	mid := &Thread{CurrentPriority: 10, cpuToken: make(chan struct{}, 1)}

	rt.InsertReady(low)
	rt.InsertReady(high)
	rt.InsertReady(mid)

	require.Same(t, high, rt.highestReady())
}

func TestReadyTableRoundRobinSamePriority(t *testing.T) {
	_, rt := newTestReadyTable(t)

	a := &Thread{CurrentPriority: 5, cpuToken: make(chan struct{}, 1)}
	b := &Thread{CurrentPriority: 5, cpuToken: make(chan struct{}, 1)}

	rt.InsertReady(a)
	rt.InsertReady(b)
	assert.Same(t, a, rt.highestReady())

	rt.RemoveReady(a)
	rt.InsertReady(a)
	assert.Same(t, b, rt.highestReady())
}

func TestReadyTableRemoveClearsBitmapWhenGroupEmpty(t *testing.T) {
	_, rt := newTestReadyTable(t)

	only := &Thread{CurrentPriority: 7, cpuToken: make(chan struct{}, 1)}
	rt.InsertReady(only)
	require.NotZero(t, rt.groupBitmap)

	rt.RemoveReady(only)
	assert.Zero(t, rt.groupBitmap)
	assert.Nil(t, rt.highestReady())
}

func TestReadyTableRescheduleHandsOffToken(t *testing.T) {
	_, rt := newTestReadyTable(t)

	a := &Thread{CurrentPriority: 5, cpuToken: make(chan struct{}, 1)}
	rt.InsertReady(a)

	rt.Reschedule()

	select {
	case <-a.cpuToken:
	default:
		t.Fatal("expected cpu token to be handed to the sole ready thread")
	}
	assert.Same(t, a, rt.current)
}

func TestReadyTableRescheduleNoOpWhenCurrentUnchanged(t *testing.T) {
	_, rt := newTestReadyTable(t)

	a := &Thread{CurrentPriority: 5, cpuToken: make(chan struct{}, 1)}
	rt.InsertReady(a)
	rt.Reschedule()
	<-a.cpuToken

	// Rescheduling again with the same highest-ready thread must not
	// resend the token.
	rt.Reschedule()
	select {
	case <-a.cpuToken:
		t.Fatal("token resent to the same already-current thread")
	default:
	}
}
