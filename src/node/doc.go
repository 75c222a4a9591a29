// Package node implements the runtime shared by all nodekit protocols.
//
// A Node reads envelopes from a transport (see the net package) and
// dispatches each one on its own goroutine. Dispatch first checks whether the
// envelope answers a request this node is waiting on, by matching its
// in_reply_to field against the pending callbacks, and then looks up the
// handler registered for its body type. Envelopes with an unknown type are
// logged and dropped, unless they were replies.
//
// State
//
// Every node owns a NodeState, generic over the protocol payload. It holds the
// node id assigned by init, the topology (the set of peer ids, which only
// grows) and the counter used to mint msg_ids. Handlers only touch it through
// Node.WithState, which holds the state lock for the duration of a closure.
//
// Requests
//
// Node.SendSync sends a request with a fresh msg_id and resends it on a timer
// until the matching reply arrives. The default RetryPolicy resends every
// 500ms and never gives up, which gives at-least-once delivery over a lossy
// network. Receivers are expected to deduplicate.
//
// Shutdown
//
// Run returns when the input ends, its context is done or the output fails.
// In-flight handlers get a grace period to complete, pending requests are
// abandoned with ErrShutdown and the transport is closed.
package node
