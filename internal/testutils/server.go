package testutils

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pior/redis/resp"
)

// CloseConnection makes the server close the client connection instead of replying.
const CloseConnection = "\x00close"

// Session is the server side state of one client connection.
type Session struct {
	ID int
	DB int
}

// Handler computes the raw reply to a command.
// An empty reply writes nothing, CloseConnection closes the client connection.
type Handler func(s *Session, args []string) string

// Server is a scripted protocol server listening on localhost.
type Server struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	commands [][]string
	conns    map[net.Conn]struct{}
	accepted int
	wg       sync.WaitGroup
}

// NewServer starts a server answering with handler. It is closed with the test.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		ln:      ln,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.accepted++
		session := &Session{ID: s.accepted}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn, session)
	}
}

func (s *Server) serve(conn net.Conn, session *Session) {
	defer s.wg.Done()
	defer s.forget(conn)

	src := resp.NewReaderSource(bufio.NewReader(conn), nil)
	for {
		reply := resp.Decode(src)
		if !reply.IsSuccess() {
			return
		}
		args, err := reply.Strings()
		if err != nil || len(args) == 0 {
			return
		}

		s.mu.Lock()
		s.commands = append(s.commands, args)
		s.mu.Unlock()

		out := s.handler(session, args)
		if out == CloseConnection {
			return
		}
		if out == "" {
			continue
		}
		if _, err := conn.Write([]byte(out)); err != nil {
			return
		}
	}
}

func (s *Server) forget(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Addr returns the host:port the server listens on
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the host the server listens on
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the server listens on
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Commands returns every command received, in order
func (s *Server) Commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// CommandNames returns the upper cased name of every command received
func (s *Server) CommandNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	for i, args := range s.commands {
		out[i] = strings.ToUpper(args[0])
	}
	return out
}

// Accepted returns the number of client connections accepted
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// CloseClientConns closes every client connection, the listener keeps running
func (s *Server) CloseClientConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Push writes raw data to every client connection
func (s *Server) Push(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Write([]byte(data))
	}
}

// Close stops the server and closes every client connection
func (s *Server) Close() {
	s.ln.Close()
	s.CloseClientConns()
	s.wg.Wait()
}

// Reply encoders

func Status(text string) string {
	return "+" + text + "\r\n"
}

func Error(msg string) string {
	return "-" + msg + "\r\n"
}

func Integer(n int64) string {
	return ":" + strconv.FormatInt(n, 10) + "\r\n"
}

func Bulk(value string) string {
	return "$" + strconv.Itoa(len(value)) + "\r\n" + value + "\r\n"
}

func NilBulk() string {
	return "$-1\r\n"
}

// Array encodes an array from already encoded elements
func Array(elems ...string) string {
	return "*" + strconv.Itoa(len(elems)) + "\r\n" + strings.Join(elems, "")
}

// BulkArray encodes an array of bulk strings
func BulkArray(values ...string) string {
	elems := make([]string, len(values))
	for i, v := range values {
		elems[i] = Bulk(v)
	}
	return Array(elems...)
}

// Info encodes an INFO reply reporting version
func Info(version string) string {
	return Bulk("# Server\r\nredis_version:" + version + "\r\nredis_mode:standalone\r\n")
}
