package node

import (
	"sync"

	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/telemetry"
)

// Callback is invoked with the reply to a request.
type Callback func(reply *net.Envelope)

// CallbackStore correlates replies with the requests that are waiting for
// them, by msg_id. Each callback fires at most once. The store has its own
// lock, independent from the state lock.
type CallbackStore struct {
	sync.Mutex
	callbacks map[uint64]Callback
}

// NewCallbackStore ...
func NewCallbackStore() *CallbackStore {
	return &CallbackStore{
		callbacks: make(map[uint64]Callback),
	}
}

// Register installs cb for msgID, replacing any previous callback.
func (s *CallbackStore) Register(msgID uint64, cb Callback) {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.callbacks[msgID]; !ok {
		telemetry.PendingCallbacks.Inc()
	}
	s.callbacks[msgID] = cb
}

// Resolve looks for the callback matching the in_reply_to field of env. If
// there is one, it is removed and invoked outside of the lock, and Resolve
// returns true.
func (s *CallbackStore) Resolve(env *net.Envelope) bool {
	id, ok := env.Body.InReplyTo()
	if !ok {
		return false
	}

	s.Lock()
	cb, ok := s.callbacks[id]
	if ok {
		delete(s.callbacks, id)
		telemetry.PendingCallbacks.Dec()
	}
	s.Unlock()

	if !ok {
		return false
	}

	cb(env)
	return true
}

// Cancel removes the callback for msgID without invoking it.
func (s *CallbackStore) Cancel(msgID uint64) bool {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.callbacks[msgID]; !ok {
		return false
	}
	delete(s.callbacks, msgID)
	telemetry.PendingCallbacks.Dec()
	return true
}

// Len returns the number of pending callbacks.
func (s *CallbackStore) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.callbacks)
}
