package resp

import (
	"strconv"
)

// Reply is the result of decoding one protocol frame.
// It is a tagged value: the Type field selects which of the other fields is meaningful.
//
//   - TypeError: Kind and Message
//   - TypeStatus: Text
//   - TypeInteger: Integer
//   - TypeBulk: Bulk (nil means the server returned a nil bulk)
//   - TypeArray: Array (nil means the server returned a nil array)
//   - TypePipelined: no payload, the real reply comes from the pipeline flush
//
// Nested arrays are kept as a tree. See Flatten for the legacy flattened form.
type Reply struct {
	Type    Type
	Kind    ErrorKind
	Message string
	Text    string
	Integer int64
	Bulk    []byte
	Array   []Reply
}

// ErrorReply builds a failed reply.
func ErrorReply(kind ErrorKind, msg string) Reply {
	return Reply{Type: TypeError, Kind: kind, Message: msg}
}

// StatusReply builds a status reply.
func StatusReply(text string) Reply {
	return Reply{Type: TypeStatus, Text: text}
}

// IntegerReply builds an integer reply.
func IntegerReply(n int64) Reply {
	return Reply{Type: TypeInteger, Integer: n}
}

// BulkReply builds a bulk reply. A nil slice is a nil bulk.
func BulkReply(b []byte) Reply {
	return Reply{Type: TypeBulk, Bulk: b}
}

// NilBulk is the reply decoded from $-1.
func NilBulk() Reply {
	return Reply{Type: TypeBulk}
}

// ArrayReply builds an array reply. A nil slice is a nil array.
func ArrayReply(elems []Reply) Reply {
	return Reply{Type: TypeArray, Array: elems}
}

// Pipelined is the placeholder returned for a command queued in pipeline mode.
func Pipelined() Reply {
	return Reply{Type: TypePipelined}
}

// IsSuccess returns true for every reply that is not an error.
func (r Reply) IsSuccess() bool {
	return r.Type != TypeError
}

// IsPipelined returns true for the pipeline placeholder.
func (r Reply) IsPipelined() bool {
	return r.Type == TypePipelined
}

// IsNil returns true for a nil bulk or a nil array.
func (r Reply) IsNil() bool {
	switch r.Type {
	case TypeBulk:
		return r.Bulk == nil
	case TypeArray:
		return r.Array == nil
	default:
		return false
	}
}

// Err returns the reply as a Go error, or nil when the reply succeeded.
func (r Reply) Err() error {
	if r.Type != TypeError {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message}
}

// Int returns the numeric value of the reply.
// Integer replies are returned as is; status and bulk replies are parsed.
func (r Reply) Int() (int64, bool) {
	switch r.Type {
	case TypeInteger:
		return r.Integer, true
	case TypeStatus:
		n, err := strconv.ParseInt(r.Text, 10, 64)
		return n, err == nil
	case TypeBulk:
		if r.Bulk == nil {
			return 0, false
		}
		n, err := strconv.ParseInt(string(r.Bulk), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float returns the reply parsed as a float (INCRBYFLOAT, ZSCORE...).
func (r Reply) Float() (float64, bool) {
	switch r.Type {
	case TypeInteger:
		return float64(r.Integer), true
	case TypeStatus, TypeBulk:
		f, err := strconv.ParseFloat(r.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the textual payload of a scalar reply:
// status text, bulk content, integer in base 10, or the error message.
// Arrays and nil bulks return an empty string.
func (r Reply) String() string {
	switch r.Type {
	case TypeStatus:
		return r.Text
	case TypeBulk:
		return string(r.Bulk)
	case TypeInteger:
		return strconv.FormatInt(r.Integer, 10)
	case TypeError:
		return r.Message
	default:
		return ""
	}
}

// Strings returns the elements of an array reply as strings.
// Nested arrays are rejected with ErrNestedArray.
// A nil array returns (nil, nil), an empty array returns an empty slice.
func (r Reply) Strings() ([]string, error) {
	if r.Type == TypeError {
		return nil, r.Err()
	}
	if r.Type != TypeArray {
		return nil, &Error{Kind: CommunicationError, Message: "reply is a " + r.Type.String() + ", not an array"}
	}
	if r.Array == nil {
		return nil, nil
	}

	out := make([]string, len(r.Array))
	for i, elem := range r.Array {
		if elem.Type == TypeArray {
			return nil, ErrNestedArray
		}
		out[i] = elem.String()
	}
	return out, nil
}

// FlatStrings returns the elements of an array reply using the legacy
// flattening of nested arrays (see Flatten).
func (r Reply) FlatStrings() []string {
	return Flatten(r)
}
