package rtkernel

import "sync/atomic"

// Metrics holds atomic counters describing kernel activity, modeled on
// the teacher package's zero-cost-when-disabled metrics struct. All
// fields are safe for concurrent use; enable collection with
// [WithMetrics].
type Metrics struct {
	enabled bool

	ThreadsCreated    atomic.Uint64
	ThreadsExited     atomic.Uint64
	ContextSwitches   atomic.Uint64
	WaitEnqueues      atomic.Uint64
	WaitWakes         atomic.Uint64
	WaitTimeouts      atomic.Uint64
	WaitBroken        atomic.Uint64
	TimerFires        atomic.Uint64
	ObjectsCreated    atomic.Uint64
	ObjectsDestroyed  atomic.Uint64
	PriorityBoosts    atomic.Uint64
	PriorityRestores  atomic.Uint64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	ThreadsCreated, ThreadsExited                     uint64
	ContextSwitches                                   uint64
	WaitEnqueues, WaitWakes, WaitTimeouts, WaitBroken  uint64
	TimerFires                                        uint64
	ObjectsCreated, ObjectsDestroyed                   uint64
	PriorityBoosts, PriorityRestores                   uint64
}

// Snapshot copies every counter's current value.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		ThreadsCreated:   m.ThreadsCreated.Load(),
		ThreadsExited:    m.ThreadsExited.Load(),
		ContextSwitches:  m.ContextSwitches.Load(),
		WaitEnqueues:     m.WaitEnqueues.Load(),
		WaitWakes:        m.WaitWakes.Load(),
		WaitTimeouts:     m.WaitTimeouts.Load(),
		WaitBroken:       m.WaitBroken.Load(),
		TimerFires:       m.TimerFires.Load(),
		ObjectsCreated:   m.ObjectsCreated.Load(),
		ObjectsDestroyed: m.ObjectsDestroyed.Load(),
		PriorityBoosts:   m.PriorityBoosts.Load(),
		PriorityRestores: m.PriorityRestores.Load(),
	}
}

func (m *Metrics) incThreadsCreated()   { if m != nil && m.enabled { m.ThreadsCreated.Add(1) } }
func (m *Metrics) incThreadsExited()    { if m != nil && m.enabled { m.ThreadsExited.Add(1) } }
func (m *Metrics) incContextSwitches()  { if m != nil && m.enabled { m.ContextSwitches.Add(1) } }
func (m *Metrics) incWaitEnqueues()     { if m != nil && m.enabled { m.WaitEnqueues.Add(1) } }
func (m *Metrics) incWaitWakes()        { if m != nil && m.enabled { m.WaitWakes.Add(1) } }
func (m *Metrics) incWaitTimeouts()     { if m != nil && m.enabled { m.WaitTimeouts.Add(1) } }
func (m *Metrics) incWaitBroken()       { if m != nil && m.enabled { m.WaitBroken.Add(1) } }
func (m *Metrics) incTimerFires()       { if m != nil && m.enabled { m.TimerFires.Add(1) } }
func (m *Metrics) incObjectsCreated()   { if m != nil && m.enabled { m.ObjectsCreated.Add(1) } }
func (m *Metrics) incObjectsDestroyed() { if m != nil && m.enabled { m.ObjectsDestroyed.Add(1) } }
func (m *Metrics) incPriorityBoosts()   { if m != nil && m.enabled { m.PriorityBoosts.Add(1) } }
func (m *Metrics) incPriorityRestores() { if m != nil && m.enabled { m.PriorityRestores.Add(1) } }
