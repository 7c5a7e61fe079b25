package rtkernel

import "math/bits"

// Scheduler is the pluggable ready-queue policy. InsertReady and
// RemoveReady maintain the ready set; Reschedule picks the
// highest-priority ready thread and hands it the CPU if it isn't
// already running. InsertReady and RemoveReady are called with the
// kernel's critical section held by the caller; Reschedule is called
// without it, enters the section itself to pick the next thread, and
// releases it before the token handoff.
type Scheduler interface {
	InsertReady(t *Thread)
	RemoveReady(t *Thread)
	Reschedule()
}

// readyTable is the default [Scheduler]: a two-level group/bitmap
// priority table (group = prio>>3, bit = prio&7), unified across every
// configured priority ceiling rather than switching formulas above/below
// 32 priorities, since no externally observable behavior distinguishes
// the two cases. Each priority level is a FIFO intrusive list of ready
// threads, giving same-priority round robin.
type readyTable struct {
	k       *Kernel
	prioMax uint16

	groupBitmap uint32
	groupMasks  []uint8 // len = ceil(prioMax/8)
	heads       []*Thread
	tails       []*Thread

	current *Thread
}

func newReadyTable(k *Kernel, prioMax uint16) *readyTable {
	numGroups := (int(prioMax) + 7) / 8
	return &readyTable{
		k:          k,
		prioMax:    prioMax,
		groupMasks: make([]uint8, numGroups),
		heads:      make([]*Thread, prioMax),
		tails:      make([]*Thread, prioMax),
	}
}

// InsertReady links t to the tail of its priority's ready list and marks
// the corresponding group/bit in the bitmap.
func (s *readyTable) InsertReady(t *Thread) {
	prio := t.CurrentPriority
	t.listKind = listReady
	t.prev = s.tails[prio]
	t.next = nil
	if s.tails[prio] != nil {
		s.tails[prio].next = t
	} else {
		s.heads[prio] = t
	}
	s.tails[prio] = t

	group := uint32(prio) >> 3
	s.groupMasks[group] |= 1 << (prio & 7)
	s.groupBitmap |= 1 << group
}

// RemoveReady unlinks t from its priority's ready list, clearing the
// bitmap bits for that priority/group if the list becomes empty.
func (s *readyTable) RemoveReady(t *Thread) {
	if t.listKind != listReady {
		return
	}
	prio := t.CurrentPriority

	if t.prev != nil {
		t.prev.next = t.next
	} else {
		s.heads[prio] = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		s.tails[prio] = t.prev
	}
	t.prev = nil
	t.next = nil
	t.listKind = listNone

	if s.heads[prio] == nil {
		group := uint32(prio) >> 3
		s.groupMasks[group] &^= 1 << (prio & 7)
		if s.groupMasks[group] == 0 {
			s.groupBitmap &^= 1 << group
		}
	}
}

// highestReady returns the head of the highest-priority non-empty list,
// or nil if the ready table is empty.
func (s *readyTable) highestReady() *Thread {
	if s.groupBitmap == 0 {
		return nil
	}
	group := bits.TrailingZeros32(s.groupBitmap)
	bit := bits.TrailingZeros8(s.groupMasks[group])
	prio := uint16(group)*8 + uint16(bit)
	return s.heads[prio]
}

// Reschedule hands the CPU token to the highest-priority ready thread if
// it differs from the thread currently holding it. It never parks the
// calling goroutine — that is each call site's responsibility: blocking
// operations park unconditionally right after calling Reschedule, while
// wake paths like Resume/Release do not park at all.
func (s *readyTable) Reschedule() {
	irq := s.k.hal.InterruptsDisable()
	next := s.highestReady()
	if next == s.current {
		s.k.hal.InterruptsRestore(irq)
		return
	}
	s.current = next
	s.k.hal.InterruptsRestore(irq)

	if next != nil {
		select {
		case next.cpuToken <- struct{}{}:
		default:
		}
	}
}
