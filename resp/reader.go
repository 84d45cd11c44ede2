package resp

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

var crlfBytes = []byte(CRLF)

// Decode reads exactly one frame from src.
//
// Decode never returns a Go error: every failure is reported as a Reply of
// TypeError with a Kind telling the caller what happened.
//
//   - '-' line: ServerError, the leading "ERR" token is stripped from the message
//   - '+' line: status, verbatim
//   - ':' line: integer, a blank or non numeric line is a CommunicationError
//   - '$' length: nil bulk when negative, empty bulk when zero, else exactly
//     length bytes followed by CRLF
//   - '*' count: nil array when negative, empty array when zero, else count
//     nested frames kept as a tree
//
// Running out of input (io.EOF, io.ErrUnexpectedEOF) is NoAnswerReceived, any
// other source error is a CommunicationError, an unknown leading byte is an
// UnknownError.
//
// Performance considerations:
//   - Bulk payloads are read together with their CRLF in a single ReadFull
//   - Only array elements allocate a slice, scalars are returned by value
func Decode(src ByteSource) Reply {
	sigil, err := src.ReadSigil()
	if err != nil {
		return sourceFailure(src, err)
	}

	switch sigil {
	case SigilError:
		return decodeError(src)
	case SigilStatus:
		return decodeStatus(src)
	case SigilInteger:
		return decodeInteger(src)
	case SigilBulk:
		return decodeBulk(src)
	case SigilArray:
		return decodeArray(src)
	default:
		return ErrorReply(UnknownError, src.Describe("unknown answer type "+strconv.QuoteRune(rune(sigil))))
	}
}

func decodeError(src ByteSource) Reply {
	line, err := src.ReadLine()
	if err != nil {
		return sourceFailure(src, err)
	}
	return ErrorReply(ServerError, stripErrPrefix(line))
}

func decodeStatus(src ByteSource) Reply {
	line, err := src.ReadLine()
	if err != nil {
		return sourceFailure(src, err)
	}
	return StatusReply(line)
}

func decodeInteger(src ByteSource) Reply {
	line, err := src.ReadLine()
	if err != nil {
		return sourceFailure(src, err)
	}
	if strings.TrimSpace(line) == "" {
		return ErrorReply(CommunicationError, src.Describe("invalid number: blank line"))
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return ErrorReply(CommunicationError, src.Describe("invalid number: "+line))
	}
	return IntegerReply(n)
}

func decodeBulk(src ByteSource) Reply {
	line, err := src.ReadLine()
	if err != nil {
		return sourceFailure(src, err)
	}
	size, err := strconv.Atoi(line)
	if err != nil {
		return ErrorReply(CommunicationError, src.Describe("invalid bulk length: "+line))
	}
	if size < 0 {
		return NilBulk()
	}
	if size > MaxBulkSize {
		return ErrorReply(CommunicationError, src.Describe("invalid bulk length: "+line))
	}
	if s, ok := src.(sizedSource); ok && s.remaining() < size+2 {
		return ErrorReply(NoAnswerReceived, src.Describe("no answer received"))
	}

	// Read data + CRLF together in single read
	data := make([]byte, size+2)
	if err := src.ReadFull(data); err != nil {
		return sourceFailure(src, err)
	}
	if !bytes.HasSuffix(data, crlfBytes) {
		return ErrorReply(CommunicationError, src.Describe("invalid bulk terminator"))
	}
	return BulkReply(data[:size:size])
}

func decodeArray(src ByteSource) Reply {
	line, err := src.ReadLine()
	if err != nil {
		return sourceFailure(src, err)
	}
	count, err := strconv.Atoi(line)
	if err != nil {
		return ErrorReply(CommunicationError, src.Describe("invalid multi-bulk count: "+line))
	}
	if count < 0 {
		return ArrayReply(nil)
	}
	if count > MaxArrayLength {
		return ErrorReply(CommunicationError, src.Describe("invalid multi-bulk count: "+line))
	}

	elems := make([]Reply, 0, min(count, maxArrayPrealloc))
	for i := 0; i < count; i++ {
		elem := decodeElement(src)
		if !elem.IsSuccess() {
			// incomplete input stays incomplete so accumulators can wait for more
			if elem.Kind == NoAnswerReceived {
				return elem
			}
			// element messages are already described
			return ErrorReply(CommunicationError, elem.Message)
		}
		elems = append(elems, elem)
	}
	return ArrayReply(elems)
}

func decodeElement(src ByteSource) Reply {
	sigil, err := src.ReadSigil()
	if err != nil {
		return sourceFailure(src, err)
	}

	switch sigil {
	case SigilBulk:
		return decodeBulk(src)
	case SigilArray:
		return decodeArray(src)
	case SigilStatus:
		return decodeStatus(src)
	case SigilInteger:
		return decodeInteger(src)
	default:
		return ErrorReply(CommunicationError, src.Describe("unexpected "+strconv.QuoteRune(rune(sigil))))
	}
}

func sourceFailure(src ByteSource, err error) Reply {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrorReply(NoAnswerReceived, src.Describe("no answer received"))
	}
	return ErrorReply(CommunicationError, src.Describe(err.Error()))
}

func stripErrPrefix(line string) string {
	if line == ErrPrefix {
		return ""
	}
	if strings.HasPrefix(line, ErrPrefix+" ") {
		return line[len(ErrPrefix)+1:]
	}
	return line
}
