package rtkernel

// Semaphore is a counting semaphore whose value is signed: a positive
// value is spare capacity, and each pending Take decrements value past
// zero. Because a timed-out Take does not give its decrement back, a
// negative value can exceed the number of threads actually queued, so
// Release checks the wait queue as well as value before waking anyone.
type Semaphore struct {
	ObjectHeader

	kernel *Kernel
	value  int32
	waitQ  *waitQueue
}

// InitSemaphore fills in a statically-owned semaphore with the given
// starting value and wait-queue ordering.
func (k *Kernel) InitSemaphore(name string, value int32, mode WaitMode) (*Semaphore, error) {
	return k.newSemaphore(name, value, mode, true)
}

// CreateSemaphore allocates a semaphore from the heap.
func (k *Kernel) CreateSemaphore(name string, value int32, mode WaitMode) (*Semaphore, error) {
	return k.newSemaphore(name, value, mode, false)
}

func (k *Kernel) newSemaphore(name string, value int32, mode WaitMode, isStatic bool) (*Semaphore, error) {
	s := &Semaphore{kernel: k, value: value, waitQ: newWaitQueue(mode)}
	if err := k.registry.register(&s.ObjectHeader, ClassSemaphore, name, isStatic, s); err != nil {
		return nil, err
	}
	k.metrics.incObjectsCreated()
	return s, nil
}

// Take blocks the calling thread until value is positive, decrementing
// it on success. timeout follows [Ticks] semantics.
//
// Matching the reference kernel exactly: a blocked Take decrements
// value immediately, before it's known whether the wait will time out —
// value goes to zero or negative to record that a taker is now queued.
// A timeout does not re-increment value, so a failed take leaves the
// counter skewed (more negative than the true queue depth calls for)
// until the next Release brings it back up. This looks like a leak but
// is intentional: the reference kernel decrements synchronously inside
// take() before discovering whether the subsequent wait will succeed,
// and this package preserves that sequencing rather than "fixing" it.
func (k *Kernel) Take(s *Semaphore, timeout Ticks) error {
	self := k.Self()
	assert("Take", self != nil, "Take called outside a thread context")

	irq := k.hal.InterruptsDisable()
	if s.value > 0 {
		s.value--
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
	k.assertNotISR("Take")

	s.value-- // see doc comment: decremented even though this waiter may time out
	self.err = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	s.waitQ.enqueue(self)
	if timeout != Forever {
		k.timers.SetTimeout(&self.timer, uint32(timeout))
		k.timers.Start(&self.timer)
	}
	k.metrics.incWaitEnqueues()
	k.hal.InterruptsRestore(irq)
	k.log(LevelDebug, "sem", "wait enqueued", self.id, s.id, 0, nil, nil)

	k.reschedule()
	k.parkSelf(self)

	return self.err
}

// TryTake is Take with an implicit zero timeout: never blocks.
func (k *Kernel) TryTake(s *Semaphore) error {
	return k.Take(s, 0)
}

// Release increments value; if that leaves value at or below zero and a
// thread is waiting, the head of the wait queue is woken to claim the
// unit Release just handed back. Safe to call from [Kernel.FromISR].
func (k *Kernel) Release(s *Semaphore) {
	irq := k.hal.InterruptsDisable()
	s.value++

	var woken *Thread
	if s.value <= 0 && !s.waitQ.empty() {
		woken = s.waitQ.popFront()
		woken.err = nil
		woken.state = ThreadReady
		k.sched.InsertReady(woken)
	}
	k.hal.InterruptsRestore(irq)

	if woken != nil {
		k.metrics.incWaitWakes()
		k.log(LevelDebug, "sem", "wait woken", woken.id, s.id, 0, nil, nil)
		k.reschedule()
	}
}

func (k *Kernel) breakSemaphoreWaiters(s *Semaphore) {
	irq := k.hal.InterruptsDisable()
	var woken []*Thread
	for n := s.waitQ.popFront(); n != nil; n = s.waitQ.popFront() {
		n.err = ErrBroken
		n.state = ThreadReady
		k.sched.InsertReady(n)
		woken = append(woken, n)
	}
	k.hal.InterruptsRestore(irq)
	if len(woken) > 0 {
		k.metrics.incWaitBroken()
		k.log(LevelWarn, "broken", "waiters broken", 0, s.id, 0, ErrBroken, map[string]any{"count": len(woken)})
		k.reschedule()
	}
}

// DetachSemaphore removes a statically-owned semaphore from the registry
// and wakes every waiter with ErrBroken.
func (k *Kernel) DetachSemaphore(s *Semaphore) {
	k.breakSemaphoreWaiters(s)
	k.registry.unregister(&s.ObjectHeader)
}

// DeleteSemaphore is Detach for a heap-owned semaphore.
func (k *Kernel) DeleteSemaphore(s *Semaphore) {
	k.breakSemaphoreWaiters(s)
	k.registry.unregister(&s.ObjectHeader)
	k.metrics.incObjectsDestroyed()
}

// SemaphoreValue returns the semaphore's current signed count
// (diagnostic only — not part of any synchronization guarantee since
// it's stale the instant the critical section releases). A value at or
// below zero does not necessarily mean no capacity is left to hand
// out — it may instead count threads already queued on this semaphore.
func (k *Kernel) SemaphoreValue(s *Semaphore) int32 {
	irq := k.hal.InterruptsDisable()
	defer k.hal.InterruptsRestore(irq)
	return s.value
}
