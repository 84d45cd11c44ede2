package resp

import (
	"bufio"
	"bytes"
	"io"
)

// ByteSource is the capability the decoder reads frames from.
//
// The same decoder runs against a live transport (ReaderSource) and against
// an in-memory accumulator (MemorySource) used by the push-stream dispatcher.
//
// Errors follow io conventions: io.EOF when nothing could be read,
// io.ErrUnexpectedEOF when the source ended in the middle of a read.
// Any other error is a transport failure.
type ByteSource interface {
	// ReadSigil returns the next byte that is not CR or LF.
	ReadSigil() (byte, error)

	// ReadLine reads up to and including the next LF and returns the line
	// without its CR/LF terminator.
	ReadLine() (string, error)

	// ReadFull fills p entirely.
	ReadFull(p []byte) error

	// Describe formats a decoder error message with source context
	// (peer address, last command...).
	Describe(msg string) string
}

// sizedSource is implemented by sources that know how many bytes are left,
// so a bulk longer than the input is reported incomplete without allocating.
type sizedSource interface {
	remaining() int
}

// ReaderSource is a ByteSource over a buffered transport reader.
type ReaderSource struct {
	r        *bufio.Reader
	describe func(string) string
}

// NewReaderSource returns a ByteSource reading from r.
// describe may be nil, in which case messages are returned unchanged.
func NewReaderSource(r *bufio.Reader, describe func(string) string) *ReaderSource {
	return &ReaderSource{r: r, describe: describe}
}

func (s *ReaderSource) ReadSigil() (byte, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != '\r' && b != '\n' {
			return b, nil
		}
	}
}

func (s *ReaderSource) ReadLine() (string, error) {
	// ReadSlice avoids an allocation for lines that fit in the buffer
	line, err := s.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		var rest []byte
		rest, err = s.r.ReadBytes('\n')
		line = append(append([]byte(nil), line...), rest...)
	}
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return string(trimLine(line)), nil
}

func (s *ReaderSource) ReadFull(p []byte) error {
	_, err := io.ReadFull(s.r, p)
	return err
}

func (s *ReaderSource) Describe(msg string) string {
	if s.describe == nil {
		return msg
	}
	return s.describe(msg)
}

// MemorySource is a ByteSource over an in-memory buffer.
//
// Running out of data is reported as io.EOF or io.ErrUnexpectedEOF, which the
// decoder turns into NoAnswerReceived. Callers accumulating a stream use that
// to detect an incomplete frame and wait for more bytes.
type MemorySource struct {
	buf []byte
	pos int
}

// NewMemorySource returns a source reading buf from the start.
func NewMemorySource(buf []byte) *MemorySource {
	return &MemorySource{buf: buf}
}

// Reset rewinds the source over a new buffer.
func (m *MemorySource) Reset(buf []byte) {
	m.buf = buf
	m.pos = 0
}

// Consumed returns how many bytes have been read since the last Reset.
func (m *MemorySource) Consumed() int {
	return m.pos
}

// Remaining returns the bytes not read yet.
func (m *MemorySource) Remaining() []byte {
	return m.buf[m.pos:]
}

func (m *MemorySource) ReadSigil() (byte, error) {
	for m.pos < len(m.buf) {
		b := m.buf[m.pos]
		m.pos++
		if b != '\r' && b != '\n' {
			return b, nil
		}
	}
	return 0, io.EOF
}

func (m *MemorySource) ReadLine() (string, error) {
	if m.pos >= len(m.buf) {
		return "", io.EOF
	}
	idx := bytes.IndexByte(m.buf[m.pos:], '\n')
	if idx == -1 {
		return "", io.ErrUnexpectedEOF
	}
	line := m.buf[m.pos : m.pos+idx+1]
	m.pos += idx + 1
	return string(trimLine(line)), nil
}

func (m *MemorySource) ReadFull(p []byte) error {
	if len(m.buf)-m.pos < len(p) {
		return io.ErrUnexpectedEOF
	}
	m.pos += copy(p, m.buf[m.pos:])
	return nil
}

func (m *MemorySource) remaining() int {
	return len(m.buf) - m.pos
}

func (m *MemorySource) Describe(msg string) string {
	return msg
}

// trimLine removes the LF terminator and every CR from a line.
func trimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	if bytes.IndexByte(line, '\r') == -1 {
		return line
	}
	return bytes.ReplaceAll(line, []byte{'\r'}, nil)
}
