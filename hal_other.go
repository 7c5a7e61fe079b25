//go:build !linux

package rtkernel

// pinCurrentThread is a no-op on platforms without a grounded affinity/
// priority syscall binding in this module's dependency set; see
// hal_linux.go for the Linux implementation and DESIGN.md for why no
// portable equivalent is wired.
func pinCurrentThread() {}
