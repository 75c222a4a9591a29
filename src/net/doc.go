// Package net implements the wire format and the transports that carry
// envelopes in and out of a node.
//
// Envelopes
//
// An Envelope is a JSON document with a source, a destination, and an open
// body. The body always has a "type" tag; requests that expect an answer carry
// a "msg_id", and answers carry an "in_reply_to" equal to the request's
// "msg_id". ParseEnvelope rejects anything that is not a JSON object with a
// typed body, and BuildReply refuses to answer a message that has no msg_id.
//
// Transports
//
// The Transport interface is used by nodes to receive and send envelopes. There
// are two implementations:
//
// - Stream: newline-delimited JSON over an io.Reader/io.Writer pair, which is
// stdin/stdout in production.
//
// - Inmem: in-memory transport used for testing, which can route envelopes
// between several nodes in the same process.
//
// Inbound envelopes are queued on a small buffered channel. When the channel is
// full, the transport stops reading input until the node catches up.
package net
