//go:build linux

package rtkernel

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinCurrentThread locks the calling goroutine to its current OS thread,
// pins that thread to a single logical CPU, and raises its scheduling
// priority. [Kernel.RunTickDriver] calls this on the goroutine that will
// drive ticks and own the critical section, to get closer, on real Linux
// hardware, to the single dedicated-core assumption the default Go
// scheduler would not give a plain goroutine.
//
// Best-effort: any failure (insufficient privilege for Setpriority, a
// sandboxed affinity mask) is ignored, since none of the kernel's
// correctness properties depend on it.
func pinCurrentThread() {
	runtime.LockOSThread()

	tid := unix.Gettid()

	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(tid, &mask); err == nil {
		for cpu := 0; cpu < mask.Count(); cpu++ {
			if mask.IsSet(cpu) {
				var pinned unix.CPUSet
				pinned.Set(cpu)
				_ = unix.SchedSetaffinity(tid, &pinned)
				break
			}
		}
	}

	_ = unix.Setpriority(unix.PRIO_PROCESS, tid, -5)
}
