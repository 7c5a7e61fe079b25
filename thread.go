package rtkernel

// ThreadState is a thread's position in its lifecycle state machine:
//
//	INIT --startup--> SUSPEND --resume--> READY
//	READY --suspend/sleep/wait--> SUSPEND
//	READY --exit--> CLOSE
//	SUSPEND --timeout or wake--> READY
//	INIT/READY/SUSPEND --Control(ControlClose)--> CLOSE
//
// CLOSE is terminal; any transition not listed above is illegal and
// rejected with [ErrInvalidState] (or, for a null/invalid handle, an
// [AssertionError]).
type ThreadState uint32

const (
	ThreadInit ThreadState = iota
	ThreadReady
	ThreadSuspend
	ThreadClose
)

func (s ThreadState) String() string {
	switch s {
	case ThreadInit:
		return "INIT"
	case ThreadReady:
		return "READY"
	case ThreadSuspend:
		return "SUSPEND"
	case ThreadClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// listKind records which of the mutually-exclusive intrusive lists a
// thread's node currently belongs to; a thread's node is linked into at
// most one list at a time.
type listKind uint8

const (
	listNone listKind = iota
	listReady
	listWait
	listDefunct
)

// Thread is the unit of execution: identity, priority, state, and the
// bookkeeping the scheduler needs for it. It is backed by a single Go
// goroutine, parked on cpuToken whenever the scheduler's bookkeeping
// considers it not running — cpuToken is what realizes "exactly one
// thread running at a time" on top of real goroutines.
type Thread struct {
	ObjectHeader

	kernel *Kernel

	entry func(param any)
	param any

	stack     []byte
	stackBase uintptr
	sp        uintptr

	InitPriority    uint8
	CurrentPriority uint8
	groupMask       uint32
	bitMask         uint32

	state ThreadState

	InitTick      uint32
	RemainingTick uint32

	err error

	timer Timer

	eventSet  uint32
	eventInfo EventOption

	// wakeValue carries the specific mailbox message or message-queue
	// payload claimed for this thread by Send/SendMsg/Urgent inside the
	// same critical section as the wake, so a concurrently running
	// thread can never steal it between wake and resume.
	wakeValue any

	UserData any
	Flags    uint32

	// intrusive node linkage: at most one of {ready table, wait queue,
	// defunct list} at a time.
	listKind listKind
	prev     *Thread
	next     *Thread
	waitQ    *waitQueue

	cpuToken chan struct{}
	started  bool
}

// Priority returns the thread's current (possibly boosted) priority.
func (t *Thread) Priority() uint8 { return t.CurrentPriority }

// State returns the thread's current lifecycle state.
func (t *Thread) State() ThreadState { return t.state }

// Error returns the last wake-up reason stamped on this thread (nil
// means the most recent blocking call completed successfully).
func (t *Thread) Error() error { return t.err }

// StackUsage scans the painted watermark pattern to estimate high-water
// stack usage in bytes, from the base upward. Only meaningful when the
// configured [HAL] actually paints and the thread's stack is otherwise
// untouched by non-kernel memory (a best-effort diagnostic, as in the
// reference kernel).
func (t *Thread) StackUsage() int {
	used := 0
	for i := 0; i < len(t.stack); i++ {
		if t.stack[i] != watermarkByte {
			used = i + 1
		}
	}
	return used
}

func priorityBitmap(prio uint8) (group, groupMask, bitMask uint32) {
	group = uint32(prio) >> 3
	groupMask = 1 << group
	bitMask = 1 << (uint32(prio) & 7)
	return
}

// InitThread fills in a statically-owned thread: the caller supplies the
// stack buffer. The thread is left in state INIT; call [Kernel.Startup]
// to make it runnable.
func (k *Kernel) InitThread(name string, entry func(any), param any, stack []byte, prio uint8, tick uint32) (*Thread, error) {
	return k.newThread(name, entry, param, stack, prio, tick, true)
}

// CreateThread allocates a thread and its stack from the heap and
// delegates to InitThread's field setup. Returns (nil, ErrNoMemory) when
// stackSize is not positive; the stack itself comes from Go's allocator,
// and no allocator can be injected.
func (k *Kernel) CreateThread(name string, entry func(any), param any, stackSize int, prio uint8, tick uint32) (*Thread, error) {
	if stackSize <= 0 {
		return nil, ErrNoMemory
	}
	stack := make([]byte, stackSize)
	return k.newThread(name, entry, param, stack, prio, tick, false)
}

func (k *Kernel) newThread(name string, entry func(any), param any, stack []byte, prio uint8, tick uint32, isStatic bool) (*Thread, error) {
	assert("NewThread", entry != nil, "entry must not be nil")
	assert("NewThread", uint16(prio) < k.prioMax, "priority out of range")

	t := &Thread{
		kernel:       k,
		entry:        entry,
		param:        param,
		stack:        stack,
		InitPriority: prio,
		InitTick:     tick,
		state:        ThreadInit,
		cpuToken:     make(chan struct{}, 1),
	}
	k.timers.Init(&t.timer, name+"-timer", k.threadTimeoutCallback, t)

	if err := k.registry.register(&t.ObjectHeader, ClassThread, name, isStatic, t); err != nil {
		return nil, err
	}

	irq := k.hal.InterruptsDisable()
	t.sp = k.hal.StackInit(entry, param, stack, func() { k.exitTrampoline(t) })
	k.hal.InterruptsRestore(irq)

	k.metrics.incThreadsCreated()
	k.log(LevelDebug, "thread", "thread initialized", t.id, 0, 0, nil, map[string]any{"name": name, "priority": prio})

	return t, nil
}

// Startup transitions a thread from INIT to SUSPEND and then immediately
// resumes it. Spawns the backing goroutine, which parks until the
// scheduler hands it the CPU token.
func (k *Kernel) Startup(t *Thread) error {
	assert("Startup", t != nil, "thread must not be nil")

	irq := k.hal.InterruptsDisable()
	if t.state != ThreadInit {
		k.hal.InterruptsRestore(irq)
		return ErrInvalidState
	}
	t.CurrentPriority = t.InitPriority
	_, t.groupMask, t.bitMask = priorityBitmap(t.CurrentPriority)
	t.RemainingTick = t.InitTick
	t.state = ThreadSuspend
	k.hal.InterruptsRestore(irq)

	if !t.started {
		t.started = true
		go k.runThread(t)
	}

	return k.Resume(t)
}

// runThread is the goroutine hosting t's execution. It parks on the CPU
// token until the scheduler first schedules it, runs the user entry
// point, and on return falls into the exit trampoline. Resuming the
// thread invokes entry(param); returning from entry falls into the
// kernel's own exit routine, realized here with a goroutine instead of
// a painted stack.
func (k *Kernel) runThread(t *Thread) {
	<-t.cpuToken
	k.bindCurrent(t)
	t.entry(t.param)
	k.exitTrampoline(t)
}

// Self returns the thread whose goroutine is calling it. Valid only when
// called from within a thread's entry function or something it calls
// synchronously — i.e. the calling convention every blocking kernel
// operation in this package assumes.
func (k *Kernel) Self() *Thread {
	return k.currentFor(goroutineID())
}

// Yield rotates the calling thread to the tail of its own priority's
// ready queue if it has a same-priority peer, and requests a reschedule;
// otherwise it is a no-op.
func (k *Kernel) Yield() {
	self := k.Self()
	if self == nil {
		return
	}
	irq := k.hal.InterruptsDisable()
	hasPeer := self.state == ThreadReady && self.next != nil && self.next.listKind == listReady
	if hasPeer {
		k.sched.RemoveReady(self)
		k.sched.InsertReady(self)
	}
	k.hal.InterruptsRestore(irq)
	if !hasPeer {
		return
	}
	k.reschedule()
	k.parkSelf(self)
}

// Sleep suspends the calling thread for the given number of ticks.
// ticks must be > 0; use [Kernel.Yield] to merely rotate among peers.
// Returns nil once the sleep elapses normally, or the error stamped by
// whoever woke the thread early.
func (k *Kernel) Sleep(ticks uint32) error {
	self := k.Self()
	assert("Sleep", self != nil, "Sleep called outside a thread context")
	return k.Delay(self, ticks)
}

// Delay is the operation Sleep delegates to once self is known,
// separated out so tests can drive it directly.
func (k *Kernel) Delay(self *Thread, ticks uint32) error {
	k.assertNotISR("Delay")
	irq := k.hal.InterruptsDisable()
	assert("Delay", self.state == ThreadReady, "thread not READY")
	self.err = nil
	k.sched.RemoveReady(self)
	self.state = ThreadSuspend
	k.timers.SetTimeout(&self.timer, ticks)
	k.timers.Start(&self.timer)
	k.hal.InterruptsRestore(irq)

	k.reschedule()
	k.parkSelf(self)

	if self.err == ErrTimeout {
		return nil
	}
	return self.err
}

// Suspend transitions t from READY to SUSPEND with no timer armed.
// Precondition t.state == READY; returns ErrInvalidState otherwise.
func (k *Kernel) Suspend(t *Thread) error {
	assert("Suspend", t != nil, "thread must not be nil")
	if t == k.Self() {
		k.assertNotISR("Suspend")
	}
	irq := k.hal.InterruptsDisable()
	if t.state != ThreadReady {
		k.hal.InterruptsRestore(irq)
		return ErrInvalidState
	}
	k.sched.RemoveReady(t)
	t.state = ThreadSuspend
	k.hal.InterruptsRestore(irq)

	k.reschedule()
	if t == k.Self() {
		k.parkSelf(t)
	}
	return nil
}

// Resume transitions t from SUSPEND to READY: unlinks it from whatever
// wait list and timer it was on and inserts it into the ready table.
// Precondition t.state == SUSPEND; returns ErrInvalidState otherwise.
func (k *Kernel) Resume(t *Thread) error {
	assert("Resume", t != nil, "thread must not be nil")
	irq := k.hal.InterruptsDisable()
	if t.state != ThreadSuspend {
		k.hal.InterruptsRestore(irq)
		return ErrInvalidState
	}
	if t.waitQ != nil {
		t.waitQ.unlink(t)
	}
	k.timers.Stop(&t.timer)
	t.state = ThreadReady
	k.sched.InsertReady(t)
	k.hal.InterruptsRestore(irq)

	k.reschedule()
	return nil
}

// ChangePriority updates a thread's current priority, reinserting it
// into the ready table if it was READY. Must be called with the caller
// already inside a critical section; the exported wrapper below manages
// the section for external callers.
func (k *Kernel) changePriorityLocked(t *Thread, newPrio uint8) {
	wasReady := t.state == ThreadReady
	if wasReady {
		k.sched.RemoveReady(t)
	}
	t.CurrentPriority = newPrio
	_, t.groupMask, t.bitMask = priorityBitmap(newPrio)
	if wasReady {
		k.sched.InsertReady(t)
	}
}

// ChangePriority is the public, self-locking form of changePriorityLocked.
func (k *Kernel) ChangePriority(t *Thread, newPrio uint8) {
	assert("ChangePriority", uint16(newPrio) < k.prioMax, "priority out of range")
	irq := k.hal.InterruptsDisable()
	k.changePriorityLocked(t, newPrio)
	k.hal.InterruptsRestore(irq)
	k.reschedule()
}

// ControlCommand selects the operation dispatched by [Kernel.Control].
type ControlCommand uint8

const (
	ControlChangePriority ControlCommand = iota
	ControlStartup
	ControlClose
)

// Control dispatches CHANGE_PRIORITY / STARTUP / CLOSE. arg is the new
// priority for ControlChangePriority and is ignored otherwise.
func (k *Kernel) Control(t *Thread, cmd ControlCommand, arg uint8) error {
	switch cmd {
	case ControlChangePriority:
		k.ChangePriority(t, arg)
		return nil
	case ControlStartup:
		return k.Startup(t)
	case ControlClose:
		return k.closeThread(t)
	default:
		return ErrInvalidState
	}
}

func (k *Kernel) closeThread(t *Thread) error {
	irq := k.hal.InterruptsDisable()
	if t.state == ThreadClose {
		k.hal.InterruptsRestore(irq)
		return ErrInvalidState
	}
	if t.state == ThreadReady {
		k.sched.RemoveReady(t)
	} else if t.waitQ != nil {
		t.waitQ.unlink(t)
	}
	k.timers.Detach(&t.timer)
	t.state = ThreadClose
	k.hal.InterruptsRestore(irq)
	k.finishClose(t)
	return nil
}

// exitTrampoline is what the thread's goroutine falls into when its
// entry function returns: remove from ready queue, mark CLOSE, detach
// the timer, then either detach (static) or enqueue on the defunct list
// (heap-owned) for a later sweep outside the critical section, and
// request a reschedule that never returns to this goroutine.
func (k *Kernel) exitTrampoline(t *Thread) {
	k.exit(t)
}

func (k *Kernel) exit(t *Thread) {
	irq := k.hal.InterruptsDisable()
	if t.state == ThreadReady {
		k.sched.RemoveReady(t)
	}
	t.state = ThreadClose
	k.timers.Detach(&t.timer)
	k.hal.InterruptsRestore(irq)

	k.finishClose(t)
	k.metrics.incThreadsExited()
	k.log(LevelDebug, "thread", "thread exited", t.id, 0, 0, nil, nil)

	k.reschedule()
	k.unbindCurrent(t)
	// This goroutine's kernel-visible life is over; park forever rather
	// than returning into whatever called entry (there is nothing to
	// return to — exit is a terminal trampoline, as on real hardware).
	select {}
}

func (k *Kernel) finishClose(t *Thread) {
	if t.IsStatic() {
		k.registry.unregister(&t.ObjectHeader)
		return
	}
	irq := k.hal.InterruptsDisable()
	k.pushDefunct(t)
	k.hal.InterruptsRestore(irq)
}

// FindThread looks up a thread by name in the object registry.
func (k *Kernel) FindThread(name string) *Thread {
	if obj := k.registry.find(ClassThread, name); obj != nil {
		return obj.(*Thread)
	}
	return nil
}

// threadTimeoutCallback is the timer-expiry callback installed on every
// thread's embedded timer: stamp ErrTimeout, unlink from whatever wait
// list the thread is on, and insert into the ready table. Invoked by the
// timer driver with the critical section already held (it runs in the
// same disabled context as the tick ISR), so it does not reschedule
// itself; [Kernel.Tick] requests the reschedule once the driver returns.
func (k *Kernel) threadTimeoutCallback(arg any) {
	t := arg.(*Thread)
	assert("timeout", t.state == ThreadSuspend, "timed-out thread not SUSPEND")
	t.err = ErrTimeout
	if t.waitQ != nil {
		t.waitQ.unlink(t)
	}
	t.state = ThreadReady
	k.sched.InsertReady(t)
	k.metrics.incWaitTimeouts()
	k.log(LevelDebug, "timeout", "wait timed out", t.id, 0, 0, ErrTimeout, nil)
}

// parkSelf blocks the calling goroutine until the scheduler hands it the
// CPU token again, realizing the "context switches occur with interrupts
// enabled" half of a blocking operation. Must be called without the
// critical section held.
func (k *Kernel) parkSelf(self *Thread) {
	<-self.cpuToken
	k.metrics.incContextSwitches()
}
