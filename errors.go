package rtkernel

import "errors"

// Sentinel errors returned by blocking and non-blocking kernel operations.
//
// These are returned as values, never as panics — the one exception being
// programming-error assertions (a nil object handle, an out-of-range
// priority, an illegal state transition), which go through [assert] and
// are fatal by design.
var (
	// ErrTimeout is returned when a bounded wait elapses before the
	// operation could complete.
	ErrTimeout = errors.New("rtkernel: timeout")

	// ErrFull is returned by a non-blocking send to a mailbox or message
	// queue that has no free capacity.
	ErrFull = errors.New("rtkernel: full")

	// ErrEmpty is returned by a non-blocking receive from an empty
	// mailbox or message queue.
	ErrEmpty = errors.New("rtkernel: empty")

	// ErrInvalidState is returned when an operation's precondition on a
	// thread's state is not met (e.g. suspending a thread that isn't
	// READY, resuming one that isn't SUSPEND).
	ErrInvalidState = errors.New("rtkernel: invalid state")

	// ErrBroken is the wake-up reason stamped on every thread still
	// waiting on a sync object when that object is detached or deleted.
	ErrBroken = errors.New("rtkernel: object broken")

	// ErrNotOwner is returned by Mutex.Release when called by a thread
	// other than the current owner.
	ErrNotOwner = errors.New("rtkernel: not owner")

	// ErrNoMemory is returned by CreateThread when the requested stack
	// size is not positive.
	ErrNoMemory = errors.New("rtkernel: no memory")

	// ErrMessageTooLarge is returned by MsgQueue.Send/Urgent when the
	// payload exceeds the queue's fixed message size.
	ErrMessageTooLarge = errors.New("rtkernel: message too large")

	// ErrNameInUse is returned by the object registry when a new static
	// or heap object is initialized with a name already held by a live
	// object of the same class.
	ErrNameInUse = errors.New("rtkernel: name in use")
)

// AssertionError marks a programming-error precondition violation: a nil
// handle, an out-of-range priority, or an illegal state transition. The
// reference kernel treats these as fatal and delegates recovery to the
// hardware abstraction; this port panics with AssertionError, which a
// caller may recover if it truly wants to survive a programming bug.
type AssertionError struct {
	Op  string
	Msg string
}

func (e *AssertionError) Error() string {
	return "rtkernel: assertion failed in " + e.Op + ": " + e.Msg
}

func assert(op string, cond bool, msg string) {
	if !cond {
		panic(&AssertionError{Op: op, Msg: msg})
	}
}
