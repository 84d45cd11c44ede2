package resp

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func BenchmarkAppendCommand(b *testing.B) {
	args := []string{"SET", "test_key_123", "this is a test value that is reasonably long"}
	buf := make([]byte, 0, CommandSize(args...))

	b.ReportAllocs()
	for b.Loop() {
		buf = AppendCommand(buf[:0], args...)
	}
}

func BenchmarkWriteCommand(b *testing.B) {
	value := strings.Repeat("x", 1024)
	bw := bufio.NewWriter(io.Discard)

	b.ReportAllocs()
	for b.Loop() {
		if err := WriteCommand(bw, "SET", "large_key", value); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeBulk(b *testing.B) {
	frame := []byte("$44\r\nthis is a test value that is reasonably long\r\n")
	src := NewMemorySource(nil)

	b.ReportAllocs()
	for b.Loop() {
		src.Reset(frame)
		if r := Decode(src); !r.IsSuccess() {
			b.Fatal(r.Message)
		}
	}
}

func BenchmarkDecodeArray(b *testing.B) {
	var frame bytes.Buffer
	frame.WriteString("*100\r\n")
	for range 100 {
		frame.WriteString("$5\r\nvalue\r\n")
	}
	data := frame.Bytes()
	src := NewMemorySource(nil)

	b.ReportAllocs()
	for b.Loop() {
		src.Reset(data)
		if r := Decode(src); !r.IsSuccess() {
			b.Fatal(r.Message)
		}
	}
}

func BenchmarkDecodeReaderSource(b *testing.B) {
	frame := "+OK\r\n"
	r := strings.NewReader("")
	br := bufio.NewReader(r)
	src := NewReaderSource(br, nil)

	b.ReportAllocs()
	for b.Loop() {
		r.Reset(frame)
		br.Reset(r)
		if reply := Decode(src); !reply.IsSuccess() {
			b.Fatal(reply.Message)
		}
	}
}
