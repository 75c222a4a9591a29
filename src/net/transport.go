package net

import "errors"

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

// Transport provides an interface for transports that carry Envelopes in and
// out of a node.
type Transport interface {

	// Listen reads inbound envelopes and queues them on the Consumer channel,
	// in arrival order. It blocks until the input is exhausted (nil), the
	// transport is closed (nil), or a fatal I/O error occurs (non-nil).
	Listen() error

	// Consumer returns the channel of parsed inbound envelopes. The channel
	// has a small bounded capacity; when it is full, Listen stops reading.
	Consumer() <-chan *Envelope

	// Send writes a single envelope. It is safe for concurrent use.
	Send(env *Envelope) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
