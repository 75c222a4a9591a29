package common

import "fmt"

// NodeErrType enumerates the conditions the runtime reports without crashing.
type NodeErrType uint32

const (
	// MalformedEnvelope is raised for input that is not a JSON envelope or that
	// lacks a body type.
	MalformedEnvelope NodeErrType = iota
	// MissingCorrelationField is raised when a reply is requested for a message
	// that carries no msg_id.
	MissingCorrelationField
	// UnknownType is raised when no handler is registered for a type tag.
	UnknownType
	// InvalidPayload is raised by handlers when a required body field is
	// missing or has the wrong shape.
	InvalidPayload
	// TransportClosed is raised when sending on a transport that was shut down.
	TransportClosed
)

// String ...
func (t NodeErrType) String() string {
	switch t {
	case MalformedEnvelope:
		return "Malformed Envelope"
	case MissingCorrelationField:
		return "Missing Correlation Field"
	case UnknownType:
		return "Unknown Type"
	case InvalidPayload:
		return "Invalid Payload"
	case TransportClosed:
		return "Transport Closed"
	default:
		return "Unknown Error"
	}
}

// NodeErr is the error type returned by the codec, the dispatcher and the
// handlers. Subject names what was being processed (usually the message type)
// and detail carries a human readable reason.
type NodeErr struct {
	subject string
	errType NodeErrType
	detail  string
}

// NewNodeErr ...
func NewNodeErr(subject string, errType NodeErrType, detail string) NodeErr {
	return NodeErr{
		subject: subject,
		errType: errType,
		detail:  detail,
	}
}

// Errorf builds a NodeErr with a formatted detail.
func Errorf(subject string, errType NodeErrType, format string, args ...interface{}) NodeErr {
	return NewNodeErr(subject, errType, fmt.Sprintf(format, args...))
}

// Error ...
func (e NodeErr) Error() string {
	return fmt.Sprintf("%s, %s, %s", e.subject, e.errType, e.detail)
}

// Type returns the error code.
func (e NodeErr) Type() NodeErrType {
	return e.errType
}

// IsNodeErr checks that an error is of type NodeErr and that its code matches
// the provided NodeErrType.
func IsNodeErr(err error, t NodeErrType) bool {
	nodeErr, ok := err.(NodeErr)
	return ok && nodeErr.errType == t
}
