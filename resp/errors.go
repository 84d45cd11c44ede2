package resp

import (
	"errors"
)

// ErrNestedArray is returned by Reply.Strings when an array holds nested arrays.
// Use FlatStrings to get the legacy flattened form instead.
var ErrNestedArray = errors.New("resp: array contains nested arrays")

// ErrorKind classifies a failed Reply.
// These kinds help callers decide what to do with the connection afterwards,
// the same way the error types of a request/response protocol do.
type ErrorKind int

const (
	// KindNone is the kind of every successful reply.
	KindNone ErrorKind = 0

	// NoAnswerReceived means the stream ended before a frame completed.
	//
	// Common causes:
	//   - Connection closed by the peer
	//   - Short read of a bulk payload
	//   - Incomplete frame in an in-memory accumulator
	//
	// Connection handling: CLOSE connection
	NoAnswerReceived ErrorKind = -1

	// CommunicationError means the frame was malformed or the transport failed.
	//
	// Common causes:
	//   - Invalid length or count field
	//   - Missing CRLF after a bulk payload
	//   - Unexpected sigil inside an array
	//   - Read/write timeout, connection reset
	//
	// Connection handling: CLOSE connection
	CommunicationError ErrorKind = -2

	// ServerDown is reported after issuing a command known to crash the server.
	//
	// Connection handling: CLOSE connection, no reply will ever arrive
	ServerDown ErrorKind = -3

	// UnknownError covers an unrecognized leading sigil or an unclassified failure.
	//
	// Connection handling: CLOSE connection
	UnknownError ErrorKind = -4

	// ServerError is a '-' reply returned by the peer.
	// The protocol state is intact.
	//
	// Connection handling: connection can be REUSED
	ServerError ErrorKind = -5

	// Unsupported is reported for a command that needs a newer server version
	// than the one negotiated. The command never reached the wire.
	//
	// Connection handling: connection can be REUSED
	Unsupported ErrorKind = -6
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case NoAnswerReceived:
		return "no answer received"
	case CommunicationError:
		return "communication error"
	case ServerDown:
		return "server down"
	case UnknownError:
		return "unknown error"
	case ServerError:
		return "server error"
	case Unsupported:
		return "unsupported on this server version"
	default:
		return "invalid kind"
	}
}

// ShouldCloseConnection reports whether a failure of this kind leaves the
// transport in an unknown state.
func (k ErrorKind) ShouldCloseConnection() bool {
	switch k {
	case KindNone, ServerError, Unsupported:
		return false
	default:
		return true
	}
}

// Error is the Go error form of a failed Reply.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "resp: " + e.Kind.String()
	}
	return "resp: " + e.Kind.String() + ": " + e.Message
}

// ShouldCloseConnection returns true when the protocol state may be corrupted.
func (e *Error) ShouldCloseConnection() bool {
	return e.Kind.ShouldCloseConnection()
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: ServerDown})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection must be closed after them.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection is a helper to decide if an error requires closing
// the connection.
//
// Returns false for nil, ServerError and Unsupported.
// Unknown error types are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

// KindOf returns the ErrorKind carried by err, or UnknownError for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}
