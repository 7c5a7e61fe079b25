// Package rtkernel implements the thread and inter-thread synchronization
// kernel of a small preemptive real-time operating system, as a Go library.
//
// # Architecture
//
// A [Kernel] owns the process-wide scheduling state: the priority ready
// table, the per-thread timers, and the object registry. Threads
// ([Thread]) have fixed priorities, and at each scheduling point the CPU
// token goes to the highest-priority ready thread. Threads of equal
// priority rotate only when one calls [Kernel.Yield] or blocks; the
// per-thread tick slice (InitTick/RemainingTick) is recorded but does
// not cause rotation. Every mutation of shared kernel state happens inside
// a critical section realized by the injectable [HAL] (by default, a
// single mutex standing in for a hardware interrupt mask; true
// single-core exclusivity is out of scope for a goroutine-backed kernel).
//
// On top of the thread core, five blocking synchronization primitives
// share one [waitQueue] base: [Semaphore], [Mutex] (with single-level
// priority inheritance), [EventGroup], [Mailbox], and [MsgQueue].
//
// # Pluggable collaborators
//
// [HAL], [Scheduler], and [TimerDriver] are interfaces; [NewKernel]
// supplies software-only default implementations sufficient to run and
// test the kernel as a normal Go program. A production embedder backed by
// real hardware would replace the [HAL] with one that actually masks
// interrupts and the [TimerDriver] with one driven by a hardware tick.
//
// # Logging
//
// Kernel events flow through the injectable [Logger] interface
// (structured, category-tagged, lazily level-checked). [rtklog] provides
// a production binding onto logiface+zerolog with per-category rate
// limiting for noisy events such as repeated timeouts.
//
// # Usage
//
//	k := rtkernel.NewKernel(rtkernel.WithMaxPriority(32))
//	sem, _ := k.CreateSemaphore("sem0", 0, rtkernel.FIFO)
//	t, _ := k.CreateThread("worker", func(arg any) {
//	    k.Take(sem, rtkernel.Forever)
//	    // ...
//	}, nil, 4096, 10, 20)
//	k.Startup(t)
//	k.Start()
package rtkernel
