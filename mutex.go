package rtkernel

// Mutex is a recursive, priority-inheriting lock: the same thread may
// take it repeatedly (tracked by hold) and release it the same number
// of times, and a lower-priority owner is temporarily boosted to the
// priority of any higher-priority waiter.
type Mutex struct {
	ObjectHeader

	kernel *Kernel
	owner  *Thread
	hold   int

	// originalPriority is the owner's priority at the moment it first
	// acquired the mutex (hold went 0->1), restored when hold returns
	// to 0. It is not a stack of prior boosts — single-level
	// inheritance only, matching the reference kernel.
	originalPriority uint8

	waitQ *waitQueue
}

// InitMutex fills in a statically-owned mutex.
func (k *Kernel) InitMutex(name string) (*Mutex, error) {
	return k.newMutex(name, true)
}

// CreateMutex allocates a mutex from the heap.
func (k *Kernel) CreateMutex(name string) (*Mutex, error) {
	return k.newMutex(name, false)
}

func (k *Kernel) newMutex(name string, isStatic bool) (*Mutex, error) {
	m := &Mutex{kernel: k, waitQ: newWaitQueue(Priority)}
	if err := k.registry.register(&m.ObjectHeader, ClassMutex, name, isStatic, m); err != nil {
		return nil, err
	}
	k.metrics.incObjectsCreated()
	return m, nil
}

// Take acquires m, blocking if it's held by another thread. Recursive:
// a thread already holding m just increments hold and returns
// immediately, regardless of timeout. A waiter whose priority is
// strictly higher than the current owner's boosts the owner's priority
// for the duration of the hold (equal priority does not boost).
func (k *Kernel) TakeMutex(m *Mutex, timeout Ticks) error {
	self := k.Self()
	assert("TakeMutex", self != nil, "TakeMutex called outside a thread context")

	irq := k.hal.InterruptsDisable()

	if m.owner == nil {
		m.owner = self
		m.hold = 1
		m.originalPriority = self.CurrentPriority
		k.hal.InterruptsRestore(irq)
		return nil
	}
	if m.owner == self {
		m.hold++
		k.hal.InterruptsRestore(irq)
		return nil
	}
	if timeout == 0 {
		k.hal.InterruptsRestore(irq)
		return ErrTimeout
	}
	if _, inISR := k.isr.Load(goroutineID()); inISR {
		k.hal.InterruptsRestore(irq)
	}
	k.assertNotISR("TakeMutex")

	var boosted *Thread
	var boostedTo uint8
	if self.CurrentPriority < m.owner.CurrentPriority {
		boosted, boostedTo = m.owner, self.CurrentPriority
		k.changePriorityLocked(m.owner, self.CurrentPriority)
		k.metrics.incPriorityBoosts()
	}

	self.err = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	m.waitQ.enqueue(self)
	if timeout != Forever {
		k.timers.SetTimeout(&self.timer, uint32(timeout))
		k.timers.Start(&self.timer)
	}
	k.metrics.incWaitEnqueues()
	k.hal.InterruptsRestore(irq)

	if boosted != nil {
		k.log(LevelDebug, "mutex", "owner priority boosted", boosted.id, m.id, 0, nil, map[string]any{"priority": boostedTo})
	}
	k.log(LevelDebug, "mutex", "wait enqueued", self.id, m.id, 0, nil, nil)

	k.reschedule()
	k.parkSelf(self)

	return self.err
}

// ReleaseMutex releases one hold on m. Returns ErrNotOwner if the
// calling thread does not currently hold it. Ownership passes to the
// head of the wait queue only once hold returns to zero; the owner's
// priority is restored to originalPriority at that point if it had
// been boosted.
func (k *Kernel) ReleaseMutex(m *Mutex) error {
	self := k.Self()
	assert("ReleaseMutex", self != nil, "ReleaseMutex called outside a thread context")

	irq := k.hal.InterruptsDisable()
	if m.owner != self {
		k.hal.InterruptsRestore(irq)
		return ErrNotOwner
	}
	m.hold--
	if m.hold > 0 {
		k.hal.InterruptsRestore(irq)
		return nil
	}

	restored := self.CurrentPriority != m.originalPriority
	restoredTo := m.originalPriority
	if restored {
		k.changePriorityLocked(self, m.originalPriority)
		k.metrics.incPriorityRestores()
	}

	var woken *Thread
	if !m.waitQ.empty() {
		woken = m.waitQ.popFront()
		m.owner = woken
		m.hold = 1
		m.originalPriority = woken.CurrentPriority
		woken.err = nil
		woken.state = ThreadReady
		k.sched.InsertReady(woken)
	} else {
		m.owner = nil
		m.hold = 0
	}
	k.hal.InterruptsRestore(irq)

	if restored {
		k.log(LevelDebug, "mutex", "owner priority restored", self.id, m.id, 0, nil, map[string]any{"priority": restoredTo})
	}
	if woken != nil {
		k.metrics.incWaitWakes()
		k.log(LevelDebug, "mutex", "wait woken", woken.id, m.id, 0, nil, nil)
	}
	k.reschedule()
	return nil
}

// DetachMutex removes a statically-owned mutex from the registry and
// wakes every waiter with ErrBroken. A held mutex is force-released: its
// owner's boosted priority, if any, is not restored, since the mutex no
// longer exists to track originalPriority against.
func (k *Kernel) DetachMutex(m *Mutex) {
	k.breakMutexWaiters(m)
	k.registry.unregister(&m.ObjectHeader)
}

// DeleteMutex is Detach for a heap-owned mutex.
func (k *Kernel) DeleteMutex(m *Mutex) {
	k.breakMutexWaiters(m)
	k.registry.unregister(&m.ObjectHeader)
	k.metrics.incObjectsDestroyed()
}

func (k *Kernel) breakMutexWaiters(m *Mutex) {
	irq := k.hal.InterruptsDisable()
	var woken []*Thread
	for n := m.waitQ.popFront(); n != nil; n = m.waitQ.popFront() {
		n.err = ErrBroken
		n.state = ThreadReady
		k.sched.InsertReady(n)
		woken = append(woken, n)
	}
	m.owner = nil
	m.hold = 0
	k.hal.InterruptsRestore(irq)
	if len(woken) > 0 {
		k.metrics.incWaitBroken()
		k.log(LevelWarn, "broken", "waiters broken", 0, m.id, 0, ErrBroken, map[string]any{"count": len(woken)})
		k.reschedule()
	}
}
