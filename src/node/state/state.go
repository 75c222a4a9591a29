package state

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a node: Starting, Serving, Draining or
// Shutdown.
type State uint32

const (
	// Starting is the state of a node that was created but is not consuming
	// input yet.
	Starting State = iota

	// Serving is the state in which a node reads envelopes and dispatches them
	// to handlers.
	Serving

	// Draining is the state in which a node has stopped reading input and waits
	// for in-flight handlers to complete.
	Draining

	// Shutdown is the state in which a node has cancelled its pending requests
	// and closed its transport.
	Shutdown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Serving:
		return "Serving"
	case Draining:
		return "Draining"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It also tracks the
// goroutines launched by the node, so that they can be counted and waited
// for.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// GoFunc launches a goroutine for a given function and increments the
// waitgroup. Work is never dropped; the number of goroutines is bounded
// upstream by the ingestion queue.
func (b *Manager) GoFunc(f func()) {
	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
}

// Routines returns the number of goroutines launched through GoFunc that have
// not returned yet.
func (b *Manager) Routines() int {
	return int(atomic.LoadInt32(&b.wgCount))
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (b *Manager) WaitRoutines() {
	b.wg.Wait()
}
