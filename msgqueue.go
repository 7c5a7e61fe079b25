package rtkernel

// MsgQueue is a fixed-capacity pool of fixed-size cells linked through a
// free list and a FIFO occupied-cell list. Unlike [Mailbox], each
// message is a byte payload bounded by cellSize rather than a single
// boxed value, and Urgent lets a sender jump the queue.
type MsgQueue struct {
	ObjectHeader

	kernel   *Kernel
	cellSize int
	cells    [][]byte
	free     []int
	occupied []int
	sizes    []int // sizes[cellIdx] = valid byte count currently stored there

	recvQ *waitQueue
}

// InitMsgQueue fills in a statically-owned message queue with the given
// cell count, per-message byte capacity, and receive-side wait ordering.
func (k *Kernel) InitMsgQueue(name string, cellCount, cellSize int, mode WaitMode) (*MsgQueue, error) {
	return k.newMsgQueue(name, cellCount, cellSize, mode, true)
}

// CreateMsgQueue allocates a message queue from the heap.
func (k *Kernel) CreateMsgQueue(name string, cellCount, cellSize int, mode WaitMode) (*MsgQueue, error) {
	return k.newMsgQueue(name, cellCount, cellSize, mode, false)
}

func (k *Kernel) newMsgQueue(name string, cellCount, cellSize int, mode WaitMode, isStatic bool) (*MsgQueue, error) {
	assert("NewMsgQueue", cellCount > 0, "cell count must be positive")
	assert("NewMsgQueue", cellSize > 0, "cell size must be positive")

	q := &MsgQueue{
		kernel:   k,
		cellSize: cellSize,
		cells:    make([][]byte, cellCount),
		free:     make([]int, cellCount),
		sizes:    make([]int, cellCount),
		recvQ:    newWaitQueue(mode),
	}
	for i := range q.cells {
		q.cells[i] = make([]byte, cellSize)
		q.free[i] = cellCount - 1 - i // pop from tail = ascending index order
	}

	if err := k.registry.register(&q.ObjectHeader, ClassMsgQueue, name, isStatic, q); err != nil {
		return nil, err
	}
	k.metrics.incObjectsCreated()
	return q, nil
}

func (k *Kernel) takeCell(q *MsgQueue, msg []byte) (int, error) {
	if len(msg) > q.cellSize {
		return 0, ErrMessageTooLarge
	}
	if len(q.free) == 0 {
		return 0, ErrFull
	}
	idx := q.free[len(q.free)-1]
	q.free = q.free[:len(q.free)-1]
	n := copy(q.cells[idx], msg)
	q.sizes[idx] = n
	return idx, nil
}

// Send enqueues msg at the tail of the queue. Fails fast with [ErrFull]
// if every cell is occupied, or [ErrMessageTooLarge] if msg exceeds the
// configured cell size. Safe to call from [Kernel.FromISR]. If a
// receiver is already waiting, msg is claimed on its wakeValue directly,
// bypassing the cell pool entirely — see [Kernel.Send] for why this
// must happen inside the same critical section as the wake rather than
// as a second pop after the receiver resumes.
func (k *Kernel) SendMsg(q *MsgQueue, msg []byte) error {
	return k.sendMsg(q, msg, false)
}

// Urgent enqueues msg at the head of the queue, jumping ahead of every
// message already waiting to be received. Has no effect on ordering
// when a receiver is already waiting, since the message is claimed
// immediately rather than queued.
func (k *Kernel) Urgent(q *MsgQueue, msg []byte) error {
	return k.sendMsg(q, msg, true)
}

func (k *Kernel) sendMsg(q *MsgQueue, msg []byte, urgent bool) error {
	if len(msg) > q.cellSize {
		return ErrMessageTooLarge
	}

	irq := k.hal.InterruptsDisable()

	var woken *Thread
	if !q.recvQ.empty() {
		woken = q.recvQ.popFront()
		claimed := make([]byte, len(msg))
		copy(claimed, msg)
		woken.wakeValue = claimed
		woken.err = nil
		woken.state = ThreadReady
		k.sched.InsertReady(woken)
	} else {
		idx, err := k.takeCell(q, msg)
		if err != nil {
			k.hal.InterruptsRestore(irq)
			return err
		}
		if urgent {
			q.occupied = append([]int{idx}, q.occupied...)
		} else {
			q.occupied = append(q.occupied, idx)
		}
	}
	k.hal.InterruptsRestore(irq)

	if woken != nil {
		k.metrics.incWaitWakes()
		k.log(LevelDebug, "msgqueue", "wait woken", woken.id, q.id, 0, nil, nil)
		k.reschedule()
	}
	return nil
}

// RecvMsg blocks the calling thread until a message is available.
// timeout follows [Ticks] semantics. The returned slice is only valid
// for the caller and is not retained by the queue.
func (k *Kernel) RecvMsg(q *MsgQueue, timeout Ticks) ([]byte, error) {
	self := k.Self()
	assert("RecvMsg", self != nil, "RecvMsg called outside a thread context")

	irq := k.hal.InterruptsDisable()
	if len(q.occupied) > 0 {
		msg := k.popCell(q)
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
	k.assertNotISR("RecvMsg")

	self.err = nil
	self.wakeValue = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	q.recvQ.enqueue(self)
	if timeout != Forever {
		k.timers.SetTimeout(&self.timer, uint32(timeout))
		k.timers.Start(&self.timer)
	}
	k.metrics.incWaitEnqueues()
	k.hal.InterruptsRestore(irq)
	k.log(LevelDebug, "msgqueue", "wait enqueued", self.id, q.id, 0, nil, nil)

	k.reschedule()
	k.parkSelf(self)

	if self.err != nil {
		return nil, self.err
	}

	msg, _ := self.wakeValue.([]byte)
	self.wakeValue = nil
	return msg, nil
}

func (k *Kernel) popCell(q *MsgQueue) []byte {
	idx := q.occupied[0]
	q.occupied = q.occupied[1:]
	msg := make([]byte, q.sizes[idx])
	copy(msg, q.cells[idx][:q.sizes[idx]])
	q.free = append(q.free, idx)
	return msg
}

func (k *Kernel) breakMsgQueueWaiters(q *MsgQueue) {
	irq := k.hal.InterruptsDisable()
	var woken []*Thread
	for n := q.recvQ.popFront(); n != nil; n = q.recvQ.popFront() {
		n.err = ErrBroken
		n.state = ThreadReady
		k.sched.InsertReady(n)
		woken = append(woken, n)
	}
	k.hal.InterruptsRestore(irq)
	if len(woken) > 0 {
		k.metrics.incWaitBroken()
		k.log(LevelWarn, "broken", "waiters broken", 0, q.id, 0, ErrBroken, map[string]any{"count": len(woken)})
		k.reschedule()
	}
}

// DetachMsgQueue removes a statically-owned message queue from the
// registry and wakes every receiver with ErrBroken.
func (k *Kernel) DetachMsgQueue(q *MsgQueue) {
	k.breakMsgQueueWaiters(q)
	k.registry.unregister(&q.ObjectHeader)
}

// DeleteMsgQueue is Detach for a heap-owned message queue.
func (k *Kernel) DeleteMsgQueue(q *MsgQueue) {
	k.breakMsgQueueWaiters(q)
	k.registry.unregister(&q.ObjectHeader)
	k.metrics.incObjectsDestroyed()
}
