package testutils

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pior/redis/resp"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
// Reads return the scripted replies, then io.EOF.
type ConnectionMock struct {
	mu            sync.Mutex
	readBuf       *bytes.Buffer
	writeBuf      *bytes.Buffer
	closed        bool
	readDeadline  time.Time
	writeDeadline time.Time
	localPort     int
}

// NewConnectionMock creates a new mock connection with pre-configured reply data
func NewConnectionMock(replyData ...string) *ConnectionMock {
	return &ConnectionMock{
		readBuf:   bytes.NewBufferString(strings.Join(replyData, "")),
		writeBuf:  &bytes.Buffer{},
		localPort: 50000,
	}
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed returns whether Close was called
func (m *ConnectionMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: m.localPort}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.SetReadDeadline(t)
	return m.SetWriteDeadline(t)
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	return nil
}

func (m *ConnectionMock) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDeadline = t
	return nil
}

// ReadDeadline returns the last read deadline set
func (m *ConnectionMock) ReadDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readDeadline
}

// WriteDeadline returns the last write deadline set
func (m *ConnectionMock) WriteDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeDeadline
}

// GetWritten returns the raw bytes written to the mock connection
func (m *ConnectionMock) GetWritten() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// GetWrittenCommands decodes the commands written to the mock connection
func (m *ConnectionMock) GetWrittenCommands() [][]string {
	src := resp.NewReaderSource(bufio.NewReader(strings.NewReader(m.GetWritten())), nil)

	var commands [][]string
	for {
		reply := resp.Decode(src)
		if !reply.IsSuccess() {
			return commands
		}
		args, err := reply.Strings()
		if err != nil {
			return commands
		}
		commands = append(commands, args)
	}
}
