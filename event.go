package rtkernel

// EventOption selects how [EventGroup.Recv] matches a thread's requested
// bits against the group's current flag set. Exactly one of
// EventAnd/EventOr must be set; EventClear may be OR'd in to
// additionally request that matched bits be cleared on a successful
// receive.
type EventOption uint8

const (
	EventAnd   EventOption = 1 << 0
	EventOr    EventOption = 1 << 1
	EventClear EventOption = 1 << 2
)

// EventGroup is a 32-bit flag set with AND/OR/CLEAR wait semantics. Only
// the "general" flavor is implemented — no priority-ordered wait queue
// variant, since an event group's waiters are always FIFO-ordered among
// threads waiting on disjoint bit patterns.
type EventGroup struct {
	ObjectHeader

	kernel *Kernel
	set    uint32
	waitQ  *waitQueue
}

// InitEventGroup fills in a statically-owned event group.
func (k *Kernel) InitEventGroup(name string) (*EventGroup, error) {
	return k.newEventGroup(name, true)
}

// CreateEventGroup allocates an event group from the heap.
func (k *Kernel) CreateEventGroup(name string) (*EventGroup, error) {
	return k.newEventGroup(name, false)
}

func (k *Kernel) newEventGroup(name string, isStatic bool) (*EventGroup, error) {
	e := &EventGroup{kernel: k, waitQ: newWaitQueue(FIFO)}
	if err := k.registry.register(&e.ObjectHeader, ClassEvent, name, isStatic, e); err != nil {
		return nil, err
	}
	k.metrics.incObjectsCreated()
	return e, nil
}

// Send ORs set into the group's flags and wakes every waiting thread
// whose request is now satisfied. Runs safely from an ISR context via
// [Kernel.FromISR].
func (k *Kernel) sendEvent(e *EventGroup, set uint32) {
	irq := e.kernel.hal.InterruptsDisable()
	e.set |= set

	var woken []*Thread
	for n := e.waitQ.head; n != nil; {
		next := n.next
		if eventSatisfied(e.set, n.eventSet, n.eventInfo) {
			if n.eventInfo&EventClear != 0 {
				e.set &^= n.eventSet
			}
			n.eventSet = e.set // deliver the group's flags as left after this waiter's clear
			e.waitQ.unlink(n)
			n.err = nil
			n.state = ThreadReady
			e.kernel.sched.InsertReady(n)
			woken = append(woken, n)
		}
		n = next
	}
	e.kernel.hal.InterruptsRestore(irq)

	if len(woken) > 0 {
		e.kernel.metrics.incWaitWakes()
		e.kernel.log(LevelDebug, "event", "wait woken", 0, e.id, 0, nil, map[string]any{"count": len(woken)})
		e.kernel.reschedule()
	}
}

// Send is the exported form of sendEvent.
func (e *EventGroup) Send(set uint32) { e.kernel.sendEvent(e, set) }

func eventSatisfied(current, want uint32, opt EventOption) bool {
	if opt&EventAnd != 0 {
		return current&want == want
	}
	return current&want != 0
}

// Recv blocks the calling thread until set's bits match the group's
// flags under opt's AND/OR rule (optionally clearing them), or timeout
// elapses. Returns the group's flag set and nil on success, or (0, err)
// on timeout/break. When the request is already satisfied on entry, the
// flags are read before any EventClear; when the thread is woken by
// Send, they are read after its EventClear has been applied. A zero
// timeout performs a non-blocking poll.
func (k *Kernel) RecvEvent(e *EventGroup, set uint32, opt EventOption, timeout Ticks) (uint32, error) {
	self := k.Self()
	assert("RecvEvent", self != nil, "RecvEvent called outside a thread context")
	assert("RecvEvent", opt&(EventAnd|EventOr) != 0, "event option must request AND or OR")

	irq := k.hal.InterruptsDisable()
	if eventSatisfied(e.set, set, opt) {
		matched := e.set
		if opt&EventClear != 0 {
			e.set &^= set
		}
		k.hal.InterruptsRestore(irq)
		return matched, nil
	}
	if timeout == 0 {
		k.hal.InterruptsRestore(irq)
		return 0, ErrTimeout
	}
	if _, inISR := k.isr.Load(goroutineID()); inISR {
		k.hal.InterruptsRestore(irq)
	}
	k.assertNotISR("RecvEvent")

	self.eventSet = set
	self.eventInfo = opt
	self.err = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	e.waitQ.enqueue(self)
	if timeout != Forever {
		k.timers.SetTimeout(&self.timer, uint32(timeout))
		k.timers.Start(&self.timer)
	}
	k.metrics.incWaitEnqueues()
	k.hal.InterruptsRestore(irq)
	k.log(LevelDebug, "event", "wait enqueued", self.id, e.id, 0, nil, nil)

	k.reschedule()
	k.parkSelf(self)

	if self.err != nil {
		return 0, self.err
	}
	return self.eventSet, nil
}

// Detach removes a statically-owned event group from the registry and
// wakes every waiter with ErrBroken.
func (k *Kernel) DetachEventGroup(e *EventGroup) {
	k.breakEventWaiters(e)
	k.registry.unregister(&e.ObjectHeader)
}

// Delete is Detach for a heap-owned event group.
func (k *Kernel) DeleteEventGroup(e *EventGroup) {
	k.breakEventWaiters(e)
	k.registry.unregister(&e.ObjectHeader)
	k.metrics.incObjectsDestroyed()
}

func (k *Kernel) breakEventWaiters(e *EventGroup) {
	irq := k.hal.InterruptsDisable()
	var woken []*Thread
	for n := e.waitQ.popFront(); n != nil; n = e.waitQ.popFront() {
		n.err = ErrBroken
		n.state = ThreadReady
		k.sched.InsertReady(n)
		woken = append(woken, n)
	}
	k.hal.InterruptsRestore(irq)
	if len(woken) > 0 {
		k.metrics.incWaitBroken()
		k.log(LevelWarn, "broken", "waiters broken", 0, e.id, 0, ErrBroken, map[string]any{"count": len(woken)})
		k.reschedule()
	}
}
