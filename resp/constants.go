package resp

// Protocol delimiters
const (
	// CRLF terminates every protocol line
	CRLF = "\r\n"
)

// Reply sigils. The first byte of every frame selects its shape.
const (
	SigilError   byte = '-'
	SigilStatus  byte = '+'
	SigilInteger byte = ':'
	SigilBulk    byte = '$'
	SigilArray   byte = '*'
)

// Frame limits. Larger declared sizes are rejected as malformed before any
// allocation.
const (
	MaxBulkSize    = 512 * 1024 * 1024
	MaxArrayLength = 1<<31 - 1

	// arrays longer than this grow while decoding instead of being preallocated
	maxArrayPrealloc = 1024
)

// ErrPrefix is the generic error token stripped from server error messages.
const ErrPrefix = "ERR"

// Type identifies the shape of a decoded Reply.
type Type uint8

const (
	TypeError Type = iota
	TypeStatus
	TypeInteger
	TypeBulk
	TypeArray
	// TypePipelined is the placeholder returned while a command's reply
	// is deferred until the pipeline is flushed.
	TypePipelined
)

func (t Type) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeStatus:
		return "status"
	case TypeInteger:
		return "integer"
	case TypeBulk:
		return "bulk"
	case TypeArray:
		return "array"
	case TypePipelined:
		return "pipelined"
	default:
		return "unknown"
	}
}
