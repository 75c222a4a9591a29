package net

import (
	"sync"
)

// InmemTransport implements the Transport interface, to allow nodes to be
// tested in-memory without going through stdin/stdout. Outbound envelopes are
// round-tripped through the JSON codec, recorded, and delivered to the
// connected transport registered for their destination, if any.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan *Envelope
	localAddr  string
	peers      map[string]*InmemTransport
	sent       []*Envelope
	sentCh     chan *Envelope

	shutdown   bool
	shutdownCh chan struct{}
}

// NewInmemTransport is used to initialize a new transport. addr is the node
// id that other transports use to route envelopes to this one.
func NewInmemTransport(addr string) *InmemTransport {
	return &InmemTransport{
		consumerCh: make(chan *Envelope, DefaultQueueSize),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		sentCh:     make(chan *Envelope, 1024),
		shutdownCh: make(chan struct{}),
	}
}

// LocalAddr returns the id this transport is reachable at.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan *Envelope {
	return i.consumerCh
}

// Listen implements the Transport interface. There is no input stream to
// read, so it just blocks until the transport is closed.
func (i *InmemTransport) Listen() error {
	<-i.shutdownCh
	return nil
}

// Deliver queues an inbound envelope as if it had been read from the wire.
// It blocks while the queue is full.
func (i *InmemTransport) Deliver(env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	parsed, err := ParseEnvelope(data)
	if err != nil {
		return err
	}

	select {
	case i.consumerCh <- parsed:
		return nil
	case <-i.shutdownCh:
		return ErrTransportShutdown
	}
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	out, err := ParseEnvelope(data)
	if err != nil {
		return err
	}

	i.Lock()
	if i.shutdown {
		i.Unlock()
		return ErrTransportShutdown
	}
	i.sent = append(i.sent, out)
	peer, ok := i.peers[out.Dest]
	i.Unlock()

	select {
	case i.sentCh <- out:
	default:
	}

	if ok {
		go peer.Deliver(out)
	}

	return nil
}

// Sent returns a copy of every envelope sent so far.
func (i *InmemTransport) Sent() []*Envelope {
	i.RLock()
	defer i.RUnlock()
	return append([]*Envelope(nil), i.sent...)
}

// SentCh streams sent envelopes. Envelopes are dropped from the stream, but
// not from Sent, when nobody keeps up with it.
func (i *InmemTransport) SentCh() <-chan *Envelope {
	return i.sentCh
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t *InmemTransport) {
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = t
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.Lock()
	defer i.Unlock()
	if !i.shutdown {
		i.shutdown = true
		close(i.shutdownCh)
		i.peers = make(map[string]*InmemTransport)
	}
	return nil
}
