package resp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for encoding commands to non buffered writers
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// maxPooledBuffer keeps huge one-off commands from pinning memory in the pool
const maxPooledBuffer = 64 * 1024

// CommandSize returns the exact number of bytes AppendCommand produces for args.
// Callers use it to grow a buffer once before encoding.
func CommandSize(args ...string) int {
	n := 1 + decimalLen(len(args)) + 2
	for _, arg := range args {
		n += 1 + decimalLen(len(arg)) + 2 + len(arg) + 2
	}
	return n
}

// AppendCommand appends the wire form of args to dst and returns the extended buffer.
// Format: *<argc>\r\n then $<byte length>\r\n<bytes>\r\n per argument.
func AppendCommand(dst []byte, args ...string) []byte {
	dst = append(dst, SigilArray)
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, CRLF...)
	for _, arg := range args {
		dst = append(dst, SigilBulk)
		dst = strconv.AppendInt(dst, int64(len(arg)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, arg...)
		dst = append(dst, CRLF...)
	}
	return dst
}

// WriteCommand encodes args and writes them to w.
//
// Performance considerations:
//   - Uses bufio.Writer when available for buffered writes
//   - Falls back to a pooled buffer and a single Write for other io.Writer types
func WriteCommand(w io.Writer, args ...string) error {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeCommandBuffered(bw, args)
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		if buf.Cap() <= maxPooledBuffer {
			buf.Reset()
			bufferPool.Put(buf)
		}
	}()

	buf.Grow(CommandSize(args...))
	buf.Write(AppendCommand(buf.AvailableBuffer(), args...))
	_, err := w.Write(buf.Bytes())
	return err
}

func writeCommandBuffered(bw *bufio.Writer, args []string) error {
	var num [20]byte

	// bufio.Writer errors are sticky, checking the last write of each frame is enough
	bw.WriteByte(SigilArray)
	bw.Write(strconv.AppendInt(num[:0], int64(len(args)), 10))
	_, err := bw.WriteString(CRLF)
	for _, arg := range args {
		if err != nil {
			return err
		}
		bw.WriteByte(SigilBulk)
		bw.Write(strconv.AppendInt(num[:0], int64(len(arg)), 10))
		bw.WriteString(CRLF)
		bw.WriteString(arg)
		_, err = bw.WriteString(CRLF)
	}
	return err
}

func decimalLen(n int) int {
	l := 1
	for n >= 10 {
		n /= 10
		l++
	}
	return l
}
