package rtkernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/goroutineid"
)

// Kernel owns every piece of scheduling state: the object registry, the
// ready table, the timer driver, the hardware gate, and the defunct
// list of threads waiting on a sweep. It is the sole entry point for
// every operation in this package — there is no package-level global
// state, so an embedder can run more than one independent kernel in the
// same process (e.g. in tests).
type Kernel struct {
	hal     HAL
	sched   Scheduler
	timers  TimerDriver
	registry *objectRegistry
	logger  Logger
	metrics *Metrics
	prioMax uint16

	tick atomic.Uint64

	current sync.Map // goroutine id (int64) -> *Thread
	isr     sync.Map // goroutine id (int64) -> struct{}, set while inside FromISR

	defunctMu   sync.Mutex
	defunctHead *Thread
	defunctTail *Thread

	defaultTickPeriod time.Duration

	booted atomic.Bool
}

// reschedule is the gated form of k.sched.Reschedule() used by every
// wake/block/priority-change path: before Start has run, no thread has
// ever been handed a CPU token, so there is nothing to preempt and no
// reason to start one early just because a thread happened to become
// ready during boot-time setup. Start performs the real first handoff.
func (k *Kernel) reschedule() {
	if k.booted.Load() {
		k.sched.Reschedule()
	}
}

// NewKernel constructs a kernel with the given options applied over the
// defaults (32 priority levels, no-op logger, software HAL/scheduler/
// timer driver, metrics disabled, 1ms tick period).
func NewKernel(opts ...KernelOption) *Kernel {
	cfg := resolveKernelConfig(opts)

	k := &Kernel{
		logger:  cfg.logger,
		prioMax: cfg.maxPriority,
	}
	if cfg.metrics {
		k.metrics = &Metrics{enabled: true}
	}

	if cfg.hal != nil {
		k.hal = cfg.hal
	} else {
		k.hal = newMutexHAL()
	}

	if cfg.scheduler != nil {
		k.sched = cfg.scheduler
	} else {
		k.sched = newReadyTable(k, cfg.maxPriority)
	}

	if cfg.timers != nil {
		k.timers = cfg.timers
	} else {
		k.timers = newTimerWheel()
	}

	k.registry = newObjectRegistry()
	k.defaultTickPeriod = cfg.tickPeriod

	return k
}

// Tick advances the kernel's monotonic tick counter by n and runs every
// timer whose deadline has arrived. Typically called once per n==1 from
// a dedicated driver goroutine (see RunTickDriver) or directly by an
// embedder that owns its own timing source.
func (k *Kernel) Tick(n uint32) {
	irq := k.hal.InterruptsDisable()
	now := k.tick.Add(uint64(n))
	k.timers.Advance(now)
	k.hal.InterruptsRestore(irq)
	k.metrics.incTimerFires()
	k.reschedule()
}

// TickCount returns the kernel's current tick counter.
func (k *Kernel) TickCount() uint64 { return k.tick.Load() }

// Metrics returns the kernel's counter snapshot, or a zero Snapshot if
// [WithMetrics] was never enabled.
func (k *Kernel) Metrics() Snapshot { return k.metrics.Snapshot() }

// RunTickDriver pins the calling goroutine (best-effort, Linux only —
// see hal_linux.go) and then blocks, calling Tick(1) once per tick
// period until stop is closed. Intended to be run in its own goroutine
// by an embedder that wants the default software HAL's tick source
// instead of driving Tick itself from real hardware. period <= 0 uses
// the period configured via WithTickPeriod (default 1ms).
func (k *Kernel) RunTickDriver(period time.Duration, stop <-chan struct{}) {
	if period <= 0 {
		period = k.defaultTickPeriod
	}
	pinCurrentThread()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			k.Tick(1)
		}
	}
}

// FromISR runs fn modeling a hardware interrupt service routine: fn may
// call wake-side kernel operations (Release, Send, Resume, event Send)
// but any blocking call made from inside it panics with an
// AssertionError. fn must not itself acquire the critical section (the
// kernel operations it's expected to call already do, internally).
func (k *Kernel) FromISR(fn func()) {
	gid := goroutineID()
	k.isr.Store(gid, struct{}{})
	defer k.isr.Delete(gid)
	fn()
}

func (k *Kernel) assertNotISR(op string) {
	if _, ok := k.isr.Load(goroutineID()); ok {
		panic(&AssertionError{Op: op, Msg: "blocking call made from inside FromISR"})
	}
}

// Start performs the initial reschedule that hands the CPU token to the
// highest-priority thread made ready by prior Startup calls. Real
// hardware never needs an explicit call like this one — the very first
// context switch is implicit in powering on — but a goroutine-backed
// kernel does, modeled on the reference kernel's
// rt_system_scheduler_start(). Call once, after every thread meant to
// run at boot has been started.
func (k *Kernel) Start() {
	k.booted.Store(true)
	k.sched.Reschedule()
}

// SweepDefunct drains the defunct list, unregistering every heap-owned
// thread that has exited since the last sweep. Intended to be called
// periodically by an idle-priority thread rather than inline at exit
// time, so that object teardown never happens on a higher-priority
// thread's stack.
func (k *Kernel) SweepDefunct() int {
	k.defunctMu.Lock()
	head := k.defunctHead
	k.defunctHead = nil
	k.defunctTail = nil
	k.defunctMu.Unlock()

	n := 0
	for t := head; t != nil; {
		next := t.next
		t.next = nil
		t.prev = nil
		k.registry.unregister(&t.ObjectHeader)
		k.metrics.incObjectsDestroyed()
		n++
		t = next
	}
	return n
}

// pushDefunct appends t to the defunct list. Called with the kernel's
// critical section already held by the caller (exit/close), but uses
// its own mutex since the defunct list is swept from an unrelated
// goroutine that never holds that section.
func (k *Kernel) pushDefunct(t *Thread) {
	k.defunctMu.Lock()
	defer k.defunctMu.Unlock()
	t.listKind = listDefunct
	t.next = nil
	t.prev = k.defunctTail
	if k.defunctTail != nil {
		k.defunctTail.next = t
	} else {
		k.defunctHead = t
	}
	k.defunctTail = t
}

func (k *Kernel) bindCurrent(t *Thread) {
	k.current.Store(goroutineID(), t)
}

func (k *Kernel) unbindCurrent(t *Thread) {
	k.current.Delete(goroutineID())
}

func (k *Kernel) currentFor(gid int64) *Thread {
	v, ok := k.current.Load(gid)
	if !ok {
		return nil
	}
	return v.(*Thread)
}

// goroutineID returns the calling goroutine's runtime-assigned id via
// goroutineid.Get, needed here because Self() must resolve "the thread
// running on this goroutine" without every kernel call threading a
// *Thread through its argument list.
func goroutineID() int64 {
	return goroutineid.Get()
}
