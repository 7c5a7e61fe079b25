package rtkernel

// Mailbox is a fixed-capacity ring buffer of word-sized mail. Go has no
// native machine word to box mail in, so each slot holds an `any`
// instead; the FULL-queue semantics are otherwise unchanged: Send never
// blocks and fails fast with [ErrFull] when the ring is saturated — it
// never wakes a send-side waiter, because there is no such thing as a
// send-side wait in this object.
type Mailbox struct {
	ObjectHeader

	kernel    *Kernel
	buf       []any
	head, len int

	recvQ *waitQueue
}

// InitMailbox fills in a statically-owned mailbox with the given
// capacity and receive-side wait ordering.
func (k *Kernel) InitMailbox(name string, capacity int, mode WaitMode) (*Mailbox, error) {
	return k.newMailbox(name, capacity, mode, true)
}

// CreateMailbox allocates a mailbox from the heap.
func (k *Kernel) CreateMailbox(name string, capacity int, mode WaitMode) (*Mailbox, error) {
	return k.newMailbox(name, capacity, mode, false)
}

func (k *Kernel) newMailbox(name string, capacity int, mode WaitMode, isStatic bool) (*Mailbox, error) {
	assert("NewMailbox", capacity > 0, "mailbox capacity must be positive")
	mb := &Mailbox{kernel: k, buf: make([]any, capacity), recvQ: newWaitQueue(mode)}
	if err := k.registry.register(&mb.ObjectHeader, ClassMailbox, name, isStatic, mb); err != nil {
		return nil, err
	}
	k.metrics.incObjectsCreated()
	return mb, nil
}

// Send enqueues msg, failing immediately with [ErrFull] if the ring is
// already at capacity. Safe to call from [Kernel.FromISR]. If a
// receiver is already waiting, msg is handed to it directly (claimed on
// its wakeValue inside this same critical section) rather than round-
// tripping through the ring buffer, since [readytable.go]'s Reschedule
// never parks the waker and another thread could otherwise reach the
// ring first and steal the slot the wake promised.
func (k *Kernel) Send(mb *Mailbox, msg any) error {
	irq := k.hal.InterruptsDisable()

	var woken *Thread
	if !mb.recvQ.empty() {
		woken = mb.recvQ.popFront()
		woken.wakeValue = msg
		woken.err = nil
		woken.state = ThreadReady
		k.sched.InsertReady(woken)
	} else {
		if mb.len == cap(mb.buf) {
			k.hal.InterruptsRestore(irq)
			return ErrFull
		}
		mb.buf[(mb.head+mb.len)%cap(mb.buf)] = msg
		mb.len++
	}
	k.hal.InterruptsRestore(irq)

	if woken != nil {
		k.metrics.incWaitWakes()
		k.log(LevelDebug, "mailbox", "wait woken", woken.id, mb.id, 0, nil, nil)
		k.reschedule()
	}
	return nil
}

// Recv blocks the calling thread until mail is available. timeout
// follows [Ticks] semantics.
func (k *Kernel) RecvMail(mb *Mailbox, timeout Ticks) (any, error) {
	self := k.Self()
	assert("RecvMail", self != nil, "RecvMail called outside a thread context")

	irq := k.hal.InterruptsDisable()
	if mb.len > 0 {
		msg := k.popMail(mb)
		k.hal.InterruptsRestore(irq)
		return msg, nil
	}
	if timeout == 0 {
		k.hal.InterruptsRestore(irq)
		return nil, ErrEmpty
	}
	if _, inISR := k.isr.Load(goroutineID()); inISR {
		k.hal.InterruptsRestore(irq)
	}
	k.assertNotISR("RecvMail")

	self.err = nil
	self.wakeValue = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	mb.recvQ.enqueue(self)
	if timeout != Forever {
		k.timers.SetTimeout(&self.timer, uint32(timeout))
		k.timers.Start(&self.timer)
	}
	k.metrics.incWaitEnqueues()
	k.hal.InterruptsRestore(irq)
	k.log(LevelDebug, "mailbox", "wait enqueued", self.id, mb.id, 0, nil, nil)

	k.reschedule()
	k.parkSelf(self)

	if self.err != nil {
		return nil, self.err
	}

	msg := self.wakeValue
	self.wakeValue = nil
	return msg, nil
}

func (k *Kernel) popMail(mb *Mailbox) any {
	msg := mb.buf[mb.head]
	mb.buf[mb.head] = nil
	mb.head = (mb.head + 1) % cap(mb.buf)
	mb.len--
	return msg
}

func (k *Kernel) breakMailboxWaiters(mb *Mailbox) {
	irq := k.hal.InterruptsDisable()
	var woken []*Thread
	for n := mb.recvQ.popFront(); n != nil; n = mb.recvQ.popFront() {
		n.err = ErrBroken
		n.state = ThreadReady
		k.sched.InsertReady(n)
		woken = append(woken, n)
	}
	k.hal.InterruptsRestore(irq)
	if len(woken) > 0 {
		k.metrics.incWaitBroken()
		k.log(LevelWarn, "broken", "waiters broken", 0, mb.id, 0, ErrBroken, map[string]any{"count": len(woken)})
		k.reschedule()
	}
}

// DetachMailbox removes a statically-owned mailbox from the registry and
// wakes every receiver with ErrBroken.
func (k *Kernel) DetachMailbox(mb *Mailbox) {
	k.breakMailboxWaiters(mb)
	k.registry.unregister(&mb.ObjectHeader)
}

// DeleteMailbox is Detach for a heap-owned mailbox.
func (k *Kernel) DeleteMailbox(mb *Mailbox) {
	k.breakMailboxWaiters(mb)
	k.registry.unregister(&mb.ObjectHeader)
	k.metrics.incObjectsDestroyed()
}
