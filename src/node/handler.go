package node

import (
	"context"
	"sort"
	"sync"

	"github.com/mosaicnetworks/nodekit/src/net"
)

// Handler processes envelopes of one type. Handlers run concurrently, one
// goroutine per envelope, and reach the shared state through Node.WithState.
// A returned error is logged by the dispatcher; it never stops the node.
type Handler[T any] interface {
	Handle(ctx context.Context, n *Node[T], env *net.Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, n *Node[T], env *net.Envelope) error

// Handle calls f.
func (f HandlerFunc[T]) Handle(ctx context.Context, n *Node[T], env *net.Envelope) error {
	return f(ctx, n, env)
}

// Registry maps body types to handlers.
type Registry[T any] struct {
	sync.RWMutex
	handlers map[string]Handler[T]
}

// NewRegistry returns a Registry with the default init and topology handlers.
// Protocols register their own types on top, and may override the defaults.
func NewRegistry[T any]() *Registry[T] {
	r := &Registry[T]{
		handlers: make(map[string]Handler[T]),
	}
	r.Register(TypeInit, HandlerFunc[T](handleInit[T]))
	r.Register(TypeTopology, HandlerFunc[T](handleTopology[T]))
	return r
}

// Register sets the handler for typ.
func (r *Registry[T]) Register(typ string, h Handler[T]) {
	r.Lock()
	defer r.Unlock()
	r.handlers[typ] = h
}

// RegisterFunc sets a function as the handler for typ.
func (r *Registry[T]) RegisterFunc(typ string, f func(ctx context.Context, n *Node[T], env *net.Envelope) error) {
	r.Register(typ, HandlerFunc[T](f))
}

// Lookup returns the handler for typ.
func (r *Registry[T]) Lookup(typ string) (Handler[T], bool) {
	r.RLock()
	defer r.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// Types returns the sorted list of registered types.
func (r *Registry[T]) Types() []string {
	r.RLock()
	defer r.RUnlock()
	res := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}
