// Package rtkctx bridges context.Context to rtkernel's tick-based
// blocking calls, for embedders that would rather think in deadlines
// and cancellation than in kernel ticks. It is a convenience layered on
// top of the core ABI, not part of it: every rtkernel blocking call
// still takes a [rtkernel.Ticks] directly.
package rtkctx

import (
	"context"
	"time"

	"github.com/joeycumines/go-rtkernel"
)

// Ticks converts ctx's deadline (if any) to a [rtkernel.Ticks] value
// measured in period-sized ticks, rounding up so the resulting wait
// never expires earlier than the deadline. A ctx with no deadline
// yields [rtkernel.Forever]. A ctx already past its deadline yields a
// zero Ticks (poll, not block).
func Ticks(ctx context.Context, period time.Duration) rtkernel.Ticks {
	deadline, ok := ctx.Deadline()
	if !ok {
		return rtkernel.Forever
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	n := remaining / period
	if remaining%period != 0 {
		n++
	}
	if n > time.Duration(int32(^uint32(0)>>1)) {
		return rtkernel.Forever
	}
	return rtkernel.Ticks(n)
}

// WaitResult is the outcome of a [Wait]-wrapped blocking call.
type WaitResult[T any] struct {
	Value T
	Err   error
}

// Wait runs a tick-bounded blocking kernel call (call) on its own
// goroutine and returns whichever finishes first: call's own result, or
// ctx's cancellation. call still receives a tick-denominated timeout
// derived from ctx's deadline, so in the common case it returns on its
// own before ctx.Done() would even fire; the select only matters when
// the caller cancels ctx earlier than the computed tick bound, since
// nothing in this package can interrupt an in-flight blocking kernel
// call early once it has started waiting on its tick timer.
func Wait[T any](ctx context.Context, period time.Duration, call func(timeout rtkernel.Ticks) (T, error)) (T, error) {
	done := make(chan WaitResult[T], 1)
	go func() {
		v, err := call(Ticks(ctx, period))
		done <- WaitResult[T]{Value: v, Err: err}
	}()
	select {
	case r := <-done:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
