package rtkernel

import (
	"sync"
	"sync/atomic"
)

// ObjectClass identifies the kind of kernel object a registry entry
// names.
type ObjectClass uint8

const (
	ClassThread ObjectClass = iota
	ClassSemaphore
	ClassMutex
	ClassEvent
	ClassMailbox
	ClassMsgQueue
)

func (c ObjectClass) String() string {
	switch c {
	case ClassThread:
		return "thread"
	case ClassSemaphore:
		return "semaphore"
	case ClassMutex:
		return "mutex"
	case ClassEvent:
		return "event"
	case ClassMailbox:
		return "mailbox"
	case ClassMsgQueue:
		return "msgqueue"
	default:
		return "unknown"
	}
}

// ObjectHeader is embedded in every kernel object (threads and every
// sync-object kind), giving it an id, a name, a class, and a static/
// heap-owned flag tracked by the object registry.
type ObjectHeader struct {
	id       uint64
	name     string
	class    ObjectClass
	isStatic bool
}

func (h *ObjectHeader) ID() uint64          { return h.id }
func (h *ObjectHeader) Name() string        { return h.name }
func (h *ObjectHeader) Class() ObjectClass  { return h.class }
func (h *ObjectHeader) IsStatic() bool      { return h.isStatic }

// registryEntry is what object lookup resolves a name to.
type registryEntry struct {
	class ObjectClass
	name  string
	obj   any
}

// objectRegistry is the generic kernel-object registry: name/class
// uniqueness and find-by-name, modeled on the teacher package's weak-
// pointer scavenging registry (registry.go) — adapted here to index
// live, strongly-referenced kernel objects rather than promises, since
// an RTOS object's lifetime is managed explicitly via Detach/Delete
// rather than GC.
type objectRegistry struct {
	mu      sync.RWMutex
	byKey   map[registryKey]*registryEntry
	nextID  atomic.Uint64
}

type registryKey struct {
	class ObjectClass
	name  string
}

func newObjectRegistry() *objectRegistry {
	r := &objectRegistry{byKey: make(map[registryKey]*registryEntry)}
	r.nextID.Store(0)
	return r
}

func (r *objectRegistry) allocID() uint64 {
	return r.nextID.Add(1)
}

// register inserts a new header+object under (class, name). Returns
// ErrNameInUse if the class/name pair is already registered.
func (r *objectRegistry) register(h *ObjectHeader, class ObjectClass, name string, isStatic bool, obj any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{class: class, name: name}
	if _, exists := r.byKey[key]; exists {
		return ErrNameInUse
	}
	h.id = r.allocID()
	h.name = name
	h.class = class
	h.isStatic = isStatic
	r.byKey[key] = &registryEntry{class: class, name: name, obj: obj}
	return nil
}

// unregister removes a previously registered header. Called by Detach
// and Delete for every object kind.
func (r *objectRegistry) unregister(h *ObjectHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{class: h.class, name: h.name}
	delete(r.byKey, key)
}

// find returns the object registered under (class, name), or nil.
func (r *objectRegistry) find(class ObjectClass, name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byKey[registryKey{class: class, name: name}]; ok {
		return e.obj
	}
	return nil
}
