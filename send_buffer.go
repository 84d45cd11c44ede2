package redis

import (
	"github.com/pior/redis/resp"
)

// sendBuffer accumulates encoded commands until they are written.
// Each connection owns exactly one.
//
// Growth policy: below largeBufferThreshold the capacity grows to the required
// size plus bufferSlack, capped at the threshold. Above the threshold it grows
// to exactly the required size.
type sendBuffer struct {
	buf []byte
}

// grow makes room for n more bytes.
func (b *sendBuffer) grow(n int) {
	required := len(b.buf) + n
	if required <= cap(b.buf) {
		return
	}

	var size int
	switch {
	case b.buf == nil && required <= initialBufferSize:
		size = initialBufferSize
	case required < largeBufferThreshold:
		size = min(required+bufferSlack, largeBufferThreshold)
	default:
		size = required
	}

	grown := make([]byte, len(b.buf), size)
	copy(grown, b.buf)
	b.buf = grown
}

// appendCommand encodes args at the end of the buffer.
func (b *sendBuffer) appendCommand(args ...string) {
	b.grow(resp.CommandSize(args...))
	b.buf = resp.AppendCommand(b.buf, args...)
}

func (b *sendBuffer) bytes() []byte {
	return b.buf
}

func (b *sendBuffer) len() int {
	return len(b.buf)
}

// reset empties the buffer. Buffers that grew past the threshold are released.
func (b *sendBuffer) reset() {
	if cap(b.buf) > largeBufferThreshold {
		b.buf = nil
		return
	}
	b.buf = b.buf[:0]
}
