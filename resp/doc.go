// Package resp implements the wire protocol spoken by the key-value server:
// commands framed as arrays of length-prefixed arguments, and five reply
// shapes (error, status, integer, bulk, array) where arrays nest recursively.
//
// The package has no notion of connections. It encodes commands into byte
// slices or writers, and decodes replies from a ByteSource.
//
// # Encoding
//
// AppendCommand encodes into a caller owned buffer, CommandSize tells how
// much room it needs:
//
//	buf = slices.Grow(buf[:0], resp.CommandSize("SET", "k", "v"))
//	buf = resp.AppendCommand(buf, "SET", "k", "v")
//	// *3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n
//
// WriteCommand writes directly to an io.Writer:
//
//	err := resp.WriteCommand(bw, "GET", "k")
//
// # Decoding
//
// Decode reads one frame and always returns a Reply, never a Go error:
//
//	src := resp.NewReaderSource(bufio.NewReader(conn), nil)
//	reply := resp.Decode(src)
//	if !reply.IsSuccess() {
//	    if reply.Kind.ShouldCloseConnection() {
//	        conn.Close()
//	    }
//	    return reply.Err()
//	}
//
// MemorySource decodes from an in-memory accumulator. An incomplete frame
// decodes to NoAnswerReceived and Consumed tells how many bytes a complete
// frame used:
//
//	src := resp.NewMemorySource(acc)
//	reply := resp.Decode(src)
//	if reply.Kind == resp.NoAnswerReceived {
//	    // wait for more bytes
//	}
//	acc = acc[src.Consumed():]
//
// # Replies
//
// A nil bulk ($-1) is different from an empty bulk ($0), and a nil array (*-1)
// is different from an empty array (*0). Nested arrays are kept as a tree;
// Flatten produces the legacy flat form.
//
// # Error Handling
//
// Failed replies carry an ErrorKind. ServerError means the server answered
// with an error and the connection is still usable. Unsupported is reported
// by clients that refuse a command before writing it. Every other kind means
// the stream position is unknown and the connection must be closed.
// Reply.Err converts a failed reply into an *Error.
package resp
