package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pior/redis/internal/coarsetime"
	"github.com/pior/redis/resp"
)

// Connection is a single persistent connection to one server.
//
// The transport is opened lazily by the first command and reopened
// transparently when it was dropped after a failure, or when the peer closed
// it while idle. After a reconnection the previously selected database is
// selected again before the command runs.
//
// A Connection must not be used from several goroutines at the same time.
// Stream handlers may call Unsubscribe and PUnsubscribe.
type Connection struct {
	cfg     Config
	addr    string
	logger  zerolog.Logger
	breaker CircuitBreaker // nil if not configured
	stats   *statsCollector

	// mu guards the transport and the stream against the stream goroutines
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	source *resp.ReaderSource
	stream *Stream

	send        sendBuffer
	lastTraffic atomic.Int64 // coarse unix nanos
	connected   bool         // a transport was opened at least once
	closed      bool

	db          int
	version     int
	versionText string
	sentinel    bool
	localPort   int

	lastError string
	lastArgs  []string

	pipelining bool
	queue      []deferredReply
}

// NewConnection validates cfg and returns a connection.
// Nothing is dialed until the first command or an explicit Connect.
func NewConnection(cfg Config) (*Connection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Connection{
		cfg:     cfg,
		addr:    cfg.Addr(),
		logger:  cfg.Logger.With().Str("addr", cfg.Addr()).Logger(),
		stats:   newStatsCollector(),
		db:      cfg.DB,
		version: VersionUnknown,
	}
	if cfg.NewCircuitBreaker != nil {
		c.breaker = cfg.NewCircuitBreaker(c.addr)
	}
	return c, nil
}

// Connect opens a new transport, closing the current one first.
//
// On success the selected database is reset to 0 and the cached server
// version is forgotten. AUTH is sent when a password is configured.
func (c *Connection) Connect(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.Streaming() {
		return ErrStreaming
	}

	c.dropTransport()

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	dial := func() (net.Conn, error) {
		if c.cfg.dial != nil {
			return c.cfg.dial(dialCtx, "tcp", c.addr)
		}
		return c.cfg.Dialer.DialContext(dialCtx, "tcp", c.addr)
	}

	var conn net.Conn
	var err error
	if c.breaker != nil {
		conn, err = c.breaker.Execute(dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		c.stats.recordError()
		c.lastError = err.Error()
		c.logger.Warn().Err(err).Msg("connect failed")
		return fmt.Errorf("redis: connect %s: %w", c.addr, err)
	}

	reader := bufio.NewReaderSize(conn, readBufferSize)

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.source = resp.NewReaderSource(reader, c.describe)
	c.mu.Unlock()

	c.stats.recordConnect(c.connected)
	c.connected = true
	c.db = 0
	c.version = VersionUnknown
	c.versionText = ""
	c.sentinel = false
	c.localPort = localPort(conn)
	c.touch()

	c.logger.Debug().Int("local_port", c.localPort).Msg("connected")

	if c.cfg.Password != "" {
		reply := c.exchange(ctx, CmdAuth, c.cfg.Password)
		if !reply.IsSuccess() {
			c.dropTransport()
			return fmt.Errorf("redis: authentication failed: %w", reply.Err())
		}
	}
	return nil
}

// ensureConnected is the lazy health check run before every command.
func (c *Connection) ensureConnected(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}

	if c.conn == nil {
		return c.reconnect(ctx)
	}

	if c.cfg.IdleTimeout > 0 && c.idle() > c.cfg.IdleTimeout && peerClosed(c.conn, c.reader) {
		c.logger.Debug().Dur("idle", c.idle()).Msg("peer closed idle connection")
		return c.reconnect(ctx)
	}

	return nil
}

// reconnect opens a new transport and selects the previous database again.
// On failure the transport is dropped and the database is kept, so the next
// command retries both.
func (c *Connection) reconnect(ctx context.Context) error {
	db := c.db
	if err := c.Connect(ctx); err != nil {
		c.db = db
		return err
	}
	if db == 0 {
		return nil
	}

	reply := c.exchange(ctx, CmdSelect, strconv.Itoa(db))
	if !reply.IsSuccess() {
		c.dropTransport()
		c.db = db
		return fmt.Errorf("redis: restore database %d: %w", db, reply.Err())
	}
	c.db = db
	c.logger.Debug().Int("db", db).Msg("database restored")
	return nil
}

// Do sends a command and returns its reply.
//
// In pipeline mode the command is queued and a placeholder reply is returned,
// the real reply comes from FlushPipeline.
//
// Failures are returned as replies with an error Kind, Do never panics on
// network errors. A NoAnswerReceived or CommunicationError reply drops the
// transport, the next command reconnects.
func (c *Connection) Do(ctx context.Context, args ...string) resp.Reply {
	if len(args) == 0 {
		return c.fail(resp.UnknownError, ErrEmptyCommand.Error())
	}
	c.lastArgs = args

	if c.closed {
		return c.fail(resp.UnknownError, ErrConnectionClosed.Error())
	}
	if c.Streaming() {
		return c.fail(resp.UnknownError, ErrStreaming.Error())
	}
	if isStreamCommand(args[0]) {
		return c.fail(resp.UnknownError, fmt.Sprintf("redis: %s starts a stream, use the stream methods", strings.ToUpper(args[0])))
	}

	if reply, ok := c.gate(ctx, args); !ok {
		return reply
	}

	if c.pipelining {
		return c.enqueue(args)
	}

	if err := ctx.Err(); err != nil {
		return c.fail(resp.CommunicationError, err.Error())
	}
	if err := c.ensureConnected(ctx); err != nil {
		return c.fail(connectFailureKind(err), err.Error())
	}

	if isDebugSegfault(args) {
		return c.debugSegfault(ctx, args)
	}

	if err := c.write(ctx, args); err != nil {
		c.dropTransport()
		return c.fail(resp.CommunicationError, c.describe(err.Error()))
	}
	reply := c.read(ctx)
	if reply.IsSuccess() {
		c.applyReply(args, reply)
	}
	return reply
}

// Send writes a command without reading its reply.
//
// It is meant for commands answered on a stream (UNSUBSCRIBE while
// subscribed) or never answered (QUIT, SHUTDOWN). Outside of a stream the
// caller is responsible for the unread reply.
func (c *Connection) Send(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return ErrEmptyCommand
	}
	if c.closed {
		return ErrConnectionClosed
	}
	if c.pipelining {
		return ErrPipelining
	}
	if c.Streaming() {
		return c.writeStreaming(ctx, args)
	}
	c.lastArgs = args

	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	if err := c.write(ctx, args); err != nil {
		c.dropTransport()
		c.fail(resp.CommunicationError, c.describe(err.Error()))
		return fmt.Errorf("redis: send %s: %w", args[0], err)
	}
	return nil
}

// exchange runs a connection maintenance command (AUTH, SELECT after a
// reconnection) without touching the send buffer, which may hold queued
// pipeline commands.
func (c *Connection) exchange(ctx context.Context, args ...string) resp.Reply {
	c.conn.SetWriteDeadline(c.writeDeadline(ctx))
	if err := resp.WriteCommand(c.conn, args...); err != nil {
		c.dropTransport()
		return c.fail(resp.CommunicationError, c.describe(err.Error()))
	}
	c.stats.recordCommand()
	return c.read(ctx)
}

// write encodes args into the send buffer and writes it.
func (c *Connection) write(ctx context.Context, args []string) error {
	c.send.reset()
	c.send.appendCommand(args...)
	c.stats.recordCommand()
	return c.flushSend(ctx)
}

// flushSend writes the whole send buffer and empties it.
func (c *Connection) flushSend(ctx context.Context) error {
	defer c.send.reset()

	if c.conn == nil {
		return ErrConnectionClosed
	}
	c.conn.SetWriteDeadline(c.writeDeadline(ctx))
	_, err := c.conn.Write(c.send.bytes())
	return err
}

// read decodes one reply from the transport.
func (c *Connection) read(ctx context.Context) resp.Reply {
	if c.conn == nil {
		return c.fail(resp.NoAnswerReceived, c.describe("no connection"))
	}

	c.conn.SetReadDeadline(c.readDeadline(ctx))
	reply := resp.Decode(c.source)
	if reply.IsSuccess() {
		c.touch()
		return reply
	}

	if reply.Kind == resp.NoAnswerReceived || reply.Kind == resp.CommunicationError {
		c.logger.Warn().Str("kind", reply.Kind.String()).Str("error", reply.Message).Msg("dropping transport")
		c.dropTransport()
	} else {
		// the server answered, the transport is healthy
		c.touch()
	}
	c.stats.recordError()
	c.lastError = reply.Message
	return reply
}

// applyReply updates the connection state after a successful command.
func (c *Connection) applyReply(args []string, reply resp.Reply) {
	switch strings.ToUpper(args[0]) {
	case CmdSelect:
		if len(args) > 1 {
			if db, err := strconv.Atoi(args[1]); err == nil {
				c.db = db
			}
		}
	case CmdAuth:
		if len(args) > 1 {
			c.cfg.Password = args[len(args)-1]
		}
	case CmdInfo:
		c.cacheInfo(parseInfo(reply.String()))
	}
}

func (c *Connection) debugSegfault(ctx context.Context, args []string) resp.Reply {
	err := c.write(ctx, args)
	c.dropTransport()
	if err != nil {
		return c.fail(resp.CommunicationError, c.describe(err.Error()))
	}
	c.logger.Warn().Msg("server crashed on purpose")
	return c.fail(resp.ServerDown, c.describe("server down"))
}

// fail records a failure that did not come from the transport.
func (c *Connection) fail(kind resp.ErrorKind, msg string) resp.Reply {
	c.stats.recordError()
	c.lastError = msg
	return resp.ErrorReply(kind, msg)
}

// dropTransport closes the transport, the next command reconnects.
func (c *Connection) dropTransport() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropTransportLocked()
}

func (c *Connection) dropTransportLocked() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.source = nil
}

func (c *Connection) describe(msg string) string {
	return fmt.Sprintf("%s (client port %d, command %s): %s", c.addr, c.localPort, c.commandName(), msg)
}

func (c *Connection) commandName() string {
	if len(c.lastArgs) == 0 {
		return "none"
	}
	return strings.ToUpper(c.lastArgs[0])
}

func (c *Connection) writeDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if c.cfg.SendTimeout > 0 {
		return time.Now().Add(c.cfg.SendTimeout)
	}
	return time.Time{}
}

func (c *Connection) readDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if c.cfg.ReceiveTimeout > 0 {
		return time.Now().Add(c.cfg.ReceiveTimeout)
	}
	return time.Time{}
}

func (c *Connection) touch() {
	c.lastTraffic.Store(coarsetime.UnixNano())
}

func (c *Connection) idle() time.Duration {
	return coarsetime.Since(c.lastTraffic.Load())
}

// Close closes the transport and stops a running stream.
// The connection cannot be used afterwards.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.Stop()
		<-stream.Done()
	}

	c.pipelining = false
	c.queue = nil
	c.dropTransport()
	c.logger.Debug().Msg("closed")
	return nil
}

// Check converts a failed reply into an error prefixed with title.
// It returns nil for successful replies.
func (c *Connection) Check(reply resp.Reply, title string) error {
	if reply.IsSuccess() {
		return nil
	}
	c.lastError = reply.Message
	if reply.Kind == resp.Unsupported {
		return fmt.Errorf("%s: %w: %w", title, ErrUnsupportedVersion, reply.Err())
	}
	return fmt.Errorf("%s: %w", title, reply.Err())
}

// LastError returns the message of the last failure.
// Helpers returning booleans or numbers clear it on success.
func (c *Connection) LastError() string {
	return c.lastError
}

// ClearLastError forgets the last failure.
func (c *Connection) ClearLastError() {
	c.lastError = ""
}

// LastCommand returns the last command issued, arguments included.
func (c *Connection) LastCommand() string {
	return strings.Join(c.lastArgs, " ")
}

// Stats returns a snapshot of connection statistics.
func (c *Connection) Stats() ConnectionStats {
	return c.stats.snapshot()
}

// CircuitBreakerState returns the state of the dial circuit breaker.
// It returns false when no circuit breaker is configured.
func (c *Connection) CircuitBreakerState() (string, bool) {
	if c.breaker == nil {
		return "", false
	}
	return c.breaker.State().String(), true
}

func (c *Connection) Host() string     { return c.cfg.Host }
func (c *Connection) Port() int        { return c.cfg.Port }
func (c *Connection) Addr() string     { return c.addr }
func (c *Connection) Password() string { return c.cfg.Password }

// SetPassword changes the password sent after the next connection.
func (c *Connection) SetPassword(password string) { c.cfg.Password = password }

// DB returns the selected database.
func (c *Connection) DB() int { return c.db }

// LocalPort returns the local port of the current transport, 0 before the first connection.
func (c *Connection) LocalPort() int { return c.localPort }

// Connected returns true when a transport is open.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Connection) SendTimeout() time.Duration        { return c.cfg.SendTimeout }
func (c *Connection) SetSendTimeout(d time.Duration)    { c.cfg.SendTimeout = d }
func (c *Connection) ReceiveTimeout() time.Duration     { return c.cfg.ReceiveTimeout }
func (c *Connection) SetReceiveTimeout(d time.Duration) { c.cfg.ReceiveTimeout = d }
func (c *Connection) ConnectTimeout() time.Duration     { return c.cfg.ConnectTimeout }
func (c *Connection) SetConnectTimeout(d time.Duration) { c.cfg.ConnectTimeout = d }

func localPort(conn net.Conn) int {
	addr := conn.LocalAddr()
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// connectFailureKind classifies a connection failure for the reply returned by Do.
func connectFailureKind(err error) resp.ErrorKind {
	var respErr *resp.Error
	switch {
	case errors.As(err, &respErr):
		return respErr.Kind
	case errors.Is(err, ErrConnectionClosed):
		return resp.UnknownError
	default:
		return resp.CommunicationError
	}
}

func isDebugSegfault(args []string) bool {
	return len(args) == 2 && strings.EqualFold(args[0], CmdDebug) && strings.EqualFold(args[1], CmdSegfault)
}

func isStreamCommand(name string) bool {
	switch strings.ToUpper(name) {
	case CmdMonitor, CmdSync, CmdSubscribe, CmdPSubscribe:
		return true
	default:
		return false
	}
}
