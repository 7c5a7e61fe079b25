package rtkernel

import "sync"

// IRQState is the opaque token returned by [HAL.InterruptsDisable] and
// consumed by [HAL.InterruptsRestore]. Real firmware stores a saved CPU
// flags register here; the software HAL has nothing to save.
type IRQState struct{ depth int }

// HAL is the hardware gate: the only primitive the kernel assumes the
// platform provides. It is consumed, never implemented, by the thread
// and synchronization logic.
//
// InterruptsDisable/InterruptsRestore bracket every kernel critical
// section. StackInit paints a fresh stack for a new thread so that
// resuming it invokes entry(param) and, on return, falls into the
// kernel's exit trampoline; the software HAL does not manage real call
// stacks (Go's runtime already does), so its StackInit is a bookkeeping
// no-op that still records the watermark pattern used by
// [Thread.StackUsage].
type HAL interface {
	InterruptsDisable() IRQState
	InterruptsRestore(IRQState)
	StackInit(entry func(any), param any, stack []byte, exit func()) (sp uintptr)
}

// mutexHAL realizes the global interrupt-disabled critical section with
// a single non-reentrant mutex. Kernel code is written so that no call
// path re-enters the critical section while already holding it.
type mutexHAL struct {
	mu sync.Mutex
}

func newMutexHAL() *mutexHAL { return &mutexHAL{} }

func (h *mutexHAL) InterruptsDisable() IRQState {
	h.mu.Lock()
	return IRQState{}
}

func (h *mutexHAL) InterruptsRestore(IRQState) {
	h.mu.Unlock()
}

// watermarkByte is painted across a thread's stack buffer at Init time so
// an embedder can later estimate high-water usage by scanning for the
// first byte that differs from it (see [Thread.StackUsage]).
const watermarkByte = 0xA5

func (h *mutexHAL) StackInit(entry func(any), param any, stack []byte, exit func()) uintptr {
	for i := range stack {
		stack[i] = watermarkByte
	}
	return 0
}
