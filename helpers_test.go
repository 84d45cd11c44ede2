package redis

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pior/redis/internal/testutils"
)

// newTestConnection returns a connection to srv.
func newTestConnection(t testing.TB, srv *testutils.Server, opts ...func(*Config)) *Connection {
	t.Helper()

	cfg := Config{Host: srv.Host(), Port: srv.Port()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := NewConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// newMockConnection returns a connection dialing mocks, one per connection attempt.
func newMockConnection(t testing.TB, mocks ...*testutils.ConnectionMock) *Connection {
	t.Helper()

	var mu sync.Mutex
	cfg := Config{Host: "localhost"}
	cfg.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, mocks, "unexpected dial")
		m := mocks[0]
		mocks = mocks[1:]
		return m, nil
	}

	c, err := NewConnection(cfg)
	require.NoError(t, err)
	return c
}

// memoryHandler is a tiny in-memory server: strings per database, INFO
// reporting version, and a few commands used by the tests.
type memoryHandler struct {
	version string

	mu   sync.Mutex
	data map[int]map[string]string
}

func newMemoryHandler(version string) *memoryHandler {
	return &memoryHandler{version: version, data: map[int]map[string]string{}}
}

func (h *memoryHandler) db(n int) map[string]string {
	if h.data[n] == nil {
		h.data[n] = map[string]string{}
	}
	return h.data[n]
}

func (h *memoryHandler) Handle(s *testutils.Session, args []string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		return testutils.Status("PONG")
	case "ECHO":
		return testutils.Bulk(args[1])
	case "AUTH":
		return testutils.Status("OK")
	case "SELECT":
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n > 15 {
			return testutils.Error("ERR invalid DB index")
		}
		s.DB = n
		return testutils.Status("OK")
	case "INFO":
		return testutils.Info(h.version)
	case "SET":
		h.db(s.DB)[args[1]] = args[2]
		return testutils.Status("OK")
	case "GET":
		v, ok := h.db(s.DB)[args[1]]
		if !ok {
			return testutils.NilBulk()
		}
		return testutils.Bulk(v)
	case "EXISTS":
		if _, ok := h.db(s.DB)[args[1]]; ok {
			return testutils.Integer(1)
		}
		return testutils.Integer(0)
	case "DEL":
		n := 0
		for _, key := range args[1:] {
			if _, ok := h.db(s.DB)[key]; ok {
				delete(h.db(s.DB), key)
				n++
			}
		}
		return testutils.Integer(int64(n))
	case "INCR":
		n, _ := strconv.Atoi(h.db(s.DB)[args[1]])
		n++
		h.db(s.DB)[args[1]] = strconv.Itoa(n)
		return testutils.Integer(int64(n))
	case "TIME":
		return testutils.BulkArray("1339518083", "107412")
	case "DUMP":
		if _, ok := h.db(s.DB)[args[1]]; !ok {
			return testutils.NilBulk()
		}
		return testutils.Bulk("\x00serialized")
	case "DEBUG":
		return testutils.CloseConnection
	default:
		return testutils.Error("ERR unknown command '" + args[0] + "'")
	}
}
