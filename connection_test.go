package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/redis/internal/testutils"
	"github.com/pior/redis/resp"
)

func TestNewConnection_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing host", cfg: Config{}},
		{name: "negative port", cfg: Config{Host: "localhost", Port: -1}},
		{name: "port too large", cfg: Config{Host: "localhost", Port: 70000}},
		{name: "db too large", cfg: Config{Host: "localhost", DB: 16}, wantErr: ErrInvalidDB},
		{name: "negative db", cfg: Config{Host: "localhost", DB: -1}, wantErr: ErrInvalidDB},
		{name: "negative stream buffer", cfg: Config{Host: "localhost", StreamBuffer: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnection(tt.cfg)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewConnection_Defaults(t *testing.T) {
	c, err := NewConnection(Config{Host: "localhost", DB: 4})
	require.NoError(t, err)

	assert.Equal(t, "localhost", c.Host())
	assert.Equal(t, DefaultPort, c.Port())
	assert.Equal(t, "localhost:6379", c.Addr())
	assert.Equal(t, 4, c.DB())
	assert.Equal(t, DefaultIdleTimeout, c.cfg.IdleTimeout)
	assert.Equal(t, DefaultStreamBuffer, c.cfg.StreamBuffer)
	assert.False(t, c.Connected())
	assert.Equal(t, 0, c.LocalPort())
}

func TestConnection_LazyConnect(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	assert.Equal(t, 0, srv.Accepted())
	assert.False(t, c.Connected())

	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, 1, srv.Accepted())
	assert.True(t, c.Connected())
	assert.NotZero(t, c.LocalPort())

	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, 1, srv.Accepted())
}

func TestConnection_Do(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	reply := c.Do(ctx, "SET", "k", "v")
	require.True(t, reply.IsSuccess())
	assert.Equal(t, resp.StatusReply("OK"), reply)

	reply = c.Do(ctx, "GET", "k")
	assert.Equal(t, resp.BulkReply([]byte("v")), reply)

	reply = c.Do(ctx, "GET", "missing")
	assert.True(t, reply.IsSuccess())
	assert.True(t, reply.IsNil())

	assert.Equal(t, "GET missing", c.LastCommand())
	assert.Equal(t, []string{"SET", "GET", "GET"}, srv.CommandNames())
}

func TestConnection_WireFormat(t *testing.T) {
	mock := testutils.NewConnectionMock("+OK\r\n")
	c := newMockConnection(t, mock)

	reply := c.Do(context.Background(), "SET", "k", "v")
	require.True(t, reply.IsSuccess())
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n", mock.GetWritten())
}

func TestConnection_EmptyCommand(t *testing.T) {
	c := newMockConnection(t)

	reply := c.Do(context.Background())
	require.False(t, reply.IsSuccess())
	assert.Equal(t, ErrEmptyCommand.Error(), c.LastError())
	require.ErrorIs(t, c.Send(context.Background()), ErrEmptyCommand)
}

func TestConnection_AuthOnConnect(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv, func(cfg *Config) { cfg.Password = "secret" })

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, [][]string{{"AUTH", "secret"}, {"PING"}}, srv.Commands())
}

func TestConnection_AuthFailure(t *testing.T) {
	srv := testutils.NewServer(t, func(s *testutils.Session, args []string) string {
		return testutils.Error("ERR invalid password")
	})
	c := newTestConnection(t, srv, func(cfg *Config) { cfg.Password = "wrong" })

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, resp.ServerError, resp.KindOf(err))
	assert.False(t, c.Connected())
}

func TestConnection_AuthRemembersPassword(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Auth(ctx, "secret"))
	assert.Equal(t, "secret", c.Password())

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Ping(ctx))

	commands := srv.Commands()
	assert.Equal(t, []string{"AUTH", "secret"}, commands[len(commands)-2])
}

func TestConnection_ReconnectRestoresDB(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv, func(cfg *Config) { cfg.IdleTimeout = time.Nanosecond })
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, 3))
	assert.Equal(t, 3, c.DB())

	srv.CloseClientConns()
	// longer than the coarse clock resolution, so the connection is seen idle
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", "v"))
	assert.Equal(t, 2, srv.Accepted())
	assert.Equal(t, 3, c.DB())
	assert.Equal(t, uint64(1), c.Stats().Reconnects)

	commands := srv.Commands()
	require.Len(t, commands, 3)
	assert.Equal(t, []string{"SELECT", "3"}, commands[1])
	assert.Equal(t, []string{"SET", "k", "v"}, commands[2])

	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestConnection_FailedReconnectKeepsDB(t *testing.T) {
	tests := []struct {
		name     string
		reject   string
		password string
		want     [][]string
	}{
		{
			name:     "auth refused",
			reject:   "AUTH",
			password: "pw",
			want:     [][]string{{"AUTH", "pw"}, {"AUTH", "pw"}, {"SELECT", "3"}, {"SET", "k", "v"}},
		},
		{
			name:   "select refused",
			reject: "SELECT",
			want:   [][]string{{"SELECT", "3"}, {"SELECT", "3"}, {"SET", "k", "v"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := newMemoryHandler("7.2.4")
			srv := testutils.NewServer(t, func(s *testutils.Session, args []string) string {
				if s.ID == 1 && strings.EqualFold(args[0], tt.reject) {
					return testutils.Error("LOADING Redis is loading the dataset in memory")
				}
				return memory.Handle(s, args)
			})
			c := newTestConnection(t, srv, func(cfg *Config) {
				cfg.DB = 3
				cfg.Password = tt.password
			})
			ctx := context.Background()

			err := c.Set(ctx, "k", "v")
			require.Error(t, err)
			assert.Equal(t, resp.ServerError, resp.KindOf(err))
			assert.False(t, c.Connected())
			assert.Equal(t, 3, c.DB())

			require.NoError(t, c.Set(ctx, "k", "v"))
			assert.Equal(t, 3, c.DB())
			assert.Equal(t, 2, srv.Accepted())
			assert.Equal(t, tt.want, srv.Commands())

			value, found, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v", value)
		})
	}
}

func TestConnection_ConfiguredDBSelectedOnFirstConnect(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv, func(cfg *Config) { cfg.DB = 5 })

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, [][]string{{"SELECT", "5"}, {"PING"}}, srv.Commands())
	assert.Equal(t, 5, c.DB())
}

func TestConnection_ExplicitConnectResetsDB(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, 2))
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, 0, c.DB())
	assert.Equal(t, VersionUnknown, c.version)
}

func TestConnection_PeerClosedDropsTransport(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	srv.CloseClientConns()
	time.Sleep(20 * time.Millisecond)

	reply := c.Do(ctx, "PING")
	require.False(t, reply.IsSuccess())
	assert.Contains(t, []resp.ErrorKind{resp.NoAnswerReceived, resp.CommunicationError}, reply.Kind)
	assert.False(t, c.Connected())
	assert.NotEmpty(t, c.LastError())

	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, 2, srv.Accepted())
}

func TestConnection_ServerError(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)

	reply := c.Do(context.Background(), "FOO")
	require.False(t, reply.IsSuccess())
	assert.Equal(t, resp.ServerError, reply.Kind)
	assert.Equal(t, "unknown command 'FOO'", reply.Message)
	assert.Equal(t, "unknown command 'FOO'", c.LastError())
	assert.True(t, c.Connected())

	err := c.Check(reply, "foo")
	require.Error(t, err)
	assert.EqualError(t, err, "foo: resp: server error: unknown command 'FOO'")
	assert.Nil(t, c.Check(resp.StatusReply("OK"), "ok"))
}

func TestConnection_LastErrorClearedByHelpers(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	c.Do(ctx, "FOO")
	require.NotEmpty(t, c.LastError())

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, c.LastError())
}

func TestConnection_DebugSegfault(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	err := c.DebugSegfault(ctx)
	require.Error(t, err)
	assert.Equal(t, resp.ServerDown, resp.KindOf(err))
	assert.False(t, c.Connected())

	require.Eventually(t, func() bool {
		names := srv.CommandNames()
		return len(names) == 2 && names[1] == "DEBUG"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, 2, srv.Accepted())
}

func TestConnection_Deadlines(t *testing.T) {
	t.Run("receive timeout", func(t *testing.T) {
		mock := testutils.NewConnectionMock("+PONG\r\n")
		c := newMockConnection(t, mock)
		c.SetReceiveTimeout(time.Second)
		c.SetSendTimeout(2 * time.Second)

		before := time.Now()
		require.NoError(t, c.Ping(context.Background()))
		assert.WithinRange(t, mock.ReadDeadline(), before.Add(time.Second), time.Now().Add(time.Second))
		assert.WithinRange(t, mock.WriteDeadline(), before.Add(2*time.Second), time.Now().Add(2*time.Second))
	})

	t.Run("context deadline wins", func(t *testing.T) {
		mock := testutils.NewConnectionMock("+PONG\r\n")
		c := newMockConnection(t, mock)
		c.SetReceiveTimeout(time.Second)

		deadline := time.Now().Add(time.Hour)
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()

		require.NoError(t, c.Ping(ctx))
		assert.True(t, mock.ReadDeadline().Equal(deadline))
		assert.True(t, mock.WriteDeadline().Equal(deadline))
	})

	t.Run("no timeout", func(t *testing.T) {
		mock := testutils.NewConnectionMock("+PONG\r\n")
		c := newMockConnection(t, mock)

		require.NoError(t, c.Ping(context.Background()))
		assert.True(t, mock.ReadDeadline().IsZero())
	})
}

func TestConnection_CancelledContext(t *testing.T) {
	c := newMockConnection(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := c.Do(ctx, "PING")
	require.False(t, reply.IsSuccess())
	assert.Equal(t, resp.CommunicationError, reply.Kind)
}

func TestConnection_TruncatedReply(t *testing.T) {
	mock := testutils.NewConnectionMock("$10\r\nabc")
	c := newMockConnection(t, mock)

	reply := c.Do(context.Background(), "GET", "k")
	require.False(t, reply.IsSuccess())
	assert.Equal(t, resp.NoAnswerReceived, reply.Kind)
	assert.True(t, mock.Closed())
	assert.False(t, c.Connected())
	assert.Contains(t, reply.Message, "command GET")
}

func TestConnection_Close(t *testing.T) {
	srv := testutils.NewServer(t, newMemoryHandler("7.2.4").Handle)
	c := newTestConnection(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Connect(ctx), ErrConnectionClosed)
	reply := c.Do(ctx, "PING")
	assert.Equal(t, ErrConnectionClosed.Error(), reply.Message)
}

func TestConnection_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	c, err := NewConnection(Config{Host: addr.IP.String(), Port: addr.Port, ConnectTimeout: time.Second})
	require.NoError(t, err)

	reply := c.Do(context.Background(), "PING")
	require.False(t, reply.IsSuccess())
	assert.Equal(t, resp.CommunicationError, reply.Kind)
	assert.Equal(t, uint64(0), c.Stats().Connects)
}

func TestConnection_CircuitBreaker(t *testing.T) {
	dialErr := errors.New("dial error")
	dials := 0

	cfg := Config{
		Host:              "localhost",
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}
	cfg.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials++
		return nil, dialErr
	}
	c, err := NewConnection(cfg)
	require.NoError(t, err)

	state, ok := c.CircuitBreakerState()
	require.True(t, ok)
	assert.Equal(t, "closed", state)

	ctx := context.Background()
	for range 3 {
		require.ErrorIs(t, c.Connect(ctx), dialErr)
	}

	state, _ = c.CircuitBreakerState()
	assert.Equal(t, "open", state)

	err = c.Connect(ctx)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, dials)
}

func TestConnection_WithoutCircuitBreaker(t *testing.T) {
	c, err := NewConnection(Config{Host: "localhost"})
	require.NoError(t, err)

	_, ok := c.CircuitBreakerState()
	assert.False(t, ok)
}

func TestConnection_StreamCommandsRejectedByDo(t *testing.T) {
	c := newMockConnection(t)

	for _, name := range []string{"MONITOR", "subscribe", "PSUBSCRIBE", "SYNC"} {
		reply := c.Do(context.Background(), name, "x")
		require.False(t, reply.IsSuccess(), name)
		assert.Contains(t, reply.Message, "use the stream methods")
	}
}
