package rtkernel

// Ticks is the unit every blocking kernel call's timeout is expressed
// in: the kernel's own tick counter, not wall-clock duration. Zero polls
// without blocking; negative means wait indefinitely; positive is a
// bounded wait. Callers who'd rather think in terms of a deadline or
// context.Context should go through package rtkctx instead of
// converting units by hand.
type Ticks int32

// Forever requests an indefinite wait from any blocking call that takes
// a Ticks timeout.
const Forever Ticks = -1
