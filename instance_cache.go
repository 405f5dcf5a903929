package nasc

import (
	"errors"
	"sync"

	"github.com/toutaio/toutago-nasc-resolver/registry"
)

// errWaitCycle is returned by waitFor when blocking would close a cycle of
// resolutions waiting on each other.
var errWaitCycle = errors.New("resolution waits on itself")

// resolution identifies one top-level resolve call and every construction
// nested in it. root is the entry the call started with.
type resolution struct {
	root registry.Entry
}

// instanceSlot holds a shared instance and signals when its construction has
// finished.
type instanceSlot struct {
	done  chan struct{}
	owner *resolution
	value any
	err   error
}

// wait blocks until the slot is complete and returns its result.
func (s *instanceSlot) wait() (any, error) {
	<-s.done
	return s.value, s.err
}

// waitFor is wait on behalf of call. It fails with errWaitCycle instead of
// blocking when the slot's owner is, directly or through other blocked
// calls, waiting on call.
func (s *instanceSlot) waitFor(call *resolution) (any, error) {
	select {
	case <-s.done:
		return s.value, s.err
	default:
	}
	if err := waits.block(call, s); err != nil {
		return nil, err
	}
	defer waits.unblock(call)
	return s.wait()
}

// waitGraph records the slot each blocked call is waiting on.
type waitGraph struct {
	mu      sync.Mutex
	waiting map[*resolution]*instanceSlot
}

var waits = waitGraph{waiting: make(map[*resolution]*instanceSlot)}

func (g *waitGraph) block(call *resolution, slot *instanceSlot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A slot owned by call itself is being built by another goroutine of the
	// same construction, which is not a cycle.
	seen := map[*resolution]bool{call: true}
	for next := slot; next != nil; {
		owner := next.owner
		if owner == nil || (owner == call && next == slot) {
			break
		}
		if owner == call {
			return errWaitCycle
		}
		if seen[owner] {
			break
		}
		seen[owner] = true
		next = g.waiting[owner]
	}
	g.waiting[call] = slot
	return nil
}

func (g *waitGraph) unblock(call *resolution) {
	g.mu.Lock()
	delete(g.waiting, call)
	g.mu.Unlock()
}

// instanceCache stores at most one instance per entry.
//
// Callers race to install a slot; the one that installs it constructs the
// instance while every other caller waits on the same slot. A failed
// construction removes its slot so a later call can try again.
type instanceCache struct {
	slots sync.Map // registry.Entry -> *instanceSlot
}

// acquire returns the slot for e and whether the caller, running as call,
// installed it and must therefore complete it.
func (c *instanceCache) acquire(e registry.Entry, call *resolution) (*instanceSlot, bool) {
	if existing, ok := c.slots.Load(e); ok {
		return existing.(*instanceSlot), false
	}
	slot := &instanceSlot{done: make(chan struct{}), owner: call}
	actual, loaded := c.slots.LoadOrStore(e, slot)
	return actual.(*instanceSlot), !loaded
}

// complete publishes the result of a construction to every waiter.
func (c *instanceCache) complete(e registry.Entry, slot *instanceSlot, value any, err error) {
	slot.value, slot.err = value, err
	if err != nil {
		c.slots.CompareAndDelete(e, slot)
	}
	close(slot.done)
}

// clear drops every slot.
func (c *instanceCache) clear() {
	c.slots.Clear()
}

// len returns the number of slots, complete or in flight.
func (c *instanceCache) len() int {
	n := 0
	c.slots.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
