package rtkernel

import "container/heap"

// Timer is a one-shot, tick-denominated deadline, embedded in every
// [Thread] to drive Sleep/blocking-timeout expiry. It is deliberately
// not exposed as a standalone kernel object: every timeout in this
// package belongs to the thread waiting on it, rather than the
// reference kernel's independent rt_timer object (a feature this
// package does not carry as a standalone primitive).
type Timer struct {
	name string
	cb   func(arg any)
	arg  any

	deadline uint64
	active   bool
	index    int // heap.Interface bookkeeping
}

// TimerDriver is the pluggable deadline scheduler consulted on every
// tick. Init prepares a timer for use;
// Detach removes it permanently; SetTimeout arms (or re-arms) a relative
// deadline without starting it; Start enqueues an armed timer; Stop
// removes it from the active set without forgetting its configuration.
// All methods are called with the kernel's critical section held.
type TimerDriver interface {
	Init(t *Timer, name string, cb func(arg any), arg any)
	Detach(t *Timer)
	SetTimeout(t *Timer, ticks uint32)
	Start(t *Timer)
	Stop(t *Timer)
	// Advance runs every timer whose deadline is <= now, invoking its
	// callback and clearing its active flag. now is the kernel's
	// monotonic tick counter after incrementing by the tick driver.
	Advance(now uint64)
}

// timerHeap is a container/heap min-heap over Timer.deadline, the
// concrete structure backing [timerWheel] — named "wheel" for parity
// with the reference kernel's rt_timer, though a heap rather than a
// literal wheel turned out the more idiomatic Go fit for a sparse,
// dynamically-sized timer set.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// timerWheel is the default [TimerDriver]: a heap keyed by absolute
// deadline tick, consulted once per [Kernel.Tick].
type timerWheel struct {
	now  uint64
	h    timerHeap
}

func newTimerWheel() *timerWheel {
	w := &timerWheel{}
	heap.Init(&w.h)
	return w
}

func (w *timerWheel) Init(t *Timer, name string, cb func(arg any), arg any) {
	t.name = name
	t.cb = cb
	t.arg = arg
	t.deadline = 0
	t.active = false
	t.index = -1
}

func (w *timerWheel) Detach(t *Timer) {
	w.Stop(t)
}

func (w *timerWheel) SetTimeout(t *Timer, ticks uint32) {
	if t.active {
		w.removeFromHeap(t)
	}
	t.deadline = w.now + uint64(ticks)
}

func (w *timerWheel) Start(t *Timer) {
	if t.active {
		return
	}
	t.active = true
	heap.Push(&w.h, t)
}

func (w *timerWheel) Stop(t *Timer) {
	if !t.active {
		return
	}
	w.removeFromHeap(t)
}

func (w *timerWheel) removeFromHeap(t *Timer) {
	if t.index < 0 || t.index >= len(w.h) {
		t.active = false
		return
	}
	heap.Remove(&w.h, t.index)
	t.active = false
}

// Advance pops and fires every timer whose deadline has arrived. Fired
// timers are popped before invoking their callback so a callback that
// re-arms the same timer (as [Kernel.threadTimeoutCallback] never does,
// but a generic driver must tolerate) sees a consistent heap.
func (w *timerWheel) Advance(now uint64) {
	w.now = now
	for w.h.Len() > 0 && w.h[0].deadline <= now {
		t := heap.Pop(&w.h).(*Timer)
		t.active = false
		cb, arg := t.cb, t.arg
		if cb != nil {
			cb(arg)
		}
	}
}
