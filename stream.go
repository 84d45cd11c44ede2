package redis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pior/redis/resp"
)

// ErrNotSubscribed is returned by Unsubscribe and PUnsubscribe without a
// running publish/subscribe stream.
var ErrNotSubscribed = errors.New("redis: not subscribed")

// errStopped is the cancellation cause set by Stream.Stop
var errStopped = errors.New("redis: stream stopped")

// TraceHandler receives the events of a MONITOR or SYNC stream.
type TraceHandler func(TraceEvent)

// PubSubHandler receives the events of a publish/subscribe stream.
type PubSubHandler func(PubSubEvent)

type streamKind int

const (
	streamTrace streamKind = iota
	streamPubSub
)

func (k streamKind) String() string {
	if k == streamTrace {
		return "trace"
	}
	return "pubsub"
}

// Stream is a running push stream. While it runs the connection only accepts
// Subscribe, PSubscribe, Unsubscribe, PUnsubscribe and Send.
//
// A reader goroutine decodes the pushed frames and a dispatcher goroutine
// calls the handler, one event at a time, in arrival order.
//
// The stream ends when:
//   - Stop is called or the context given to the starting method is done.
//     The transport is dropped, the next command reconnects.
//   - The last subscription is removed (publish/subscribe only). The
//     connection is back to normal mode.
//   - The transport fails. Err reports why.
type Stream struct {
	conn   *Connection
	kind   streamKind
	ctx    context.Context
	cancel context.CancelCauseFunc
	events chan func()
	done   chan struct{}

	readErr error // set by the reader before closing events
	err     error // set before closing done
}

// Done is closed when the stream ended and the handler returned for the last time.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream ended.
// It returns nil after Stop or after the last unsubscription.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Err returns why the stream ended, nil while it runs.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Stop ends the stream. The handler is not called after Stop returns,
// except for an invocation already running.
func (s *Stream) Stop() {
	s.cancel(errStopped)
}

// Streaming returns true while a push stream owns the connection.
func (c *Connection) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Monitor sends MONITOR and calls handler for every command the server runs.
func (c *Connection) Monitor(ctx context.Context, handler TraceHandler) (*Stream, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	return c.startStream(ctx, streamTrace, []string{CmdMonitor}, func(s *Stream, r *bufio.Reader) error {
		return s.readTrace(r, handler)
	})
}

// Sync sends SYNC and calls handler for every line of the replication stream.
func (c *Connection) Sync(ctx context.Context, handler TraceHandler) (*Stream, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	return c.startStream(ctx, streamTrace, []string{CmdSync}, func(s *Stream, r *bufio.Reader) error {
		return s.readTrace(r, handler)
	})
}

// Subscribe subscribes to channels.
//
// The first call starts the stream and handler receives its events. Later
// calls on a running stream only send the command and return the same
// stream, their handler is ignored.
func (c *Connection) Subscribe(ctx context.Context, handler PubSubHandler, channels ...string) (*Stream, error) {
	return c.subscribe(ctx, CmdSubscribe, handler, channels)
}

// PSubscribe subscribes to channel patterns. See Subscribe.
func (c *Connection) PSubscribe(ctx context.Context, handler PubSubHandler, patterns ...string) (*Stream, error) {
	return c.subscribe(ctx, CmdPSubscribe, handler, patterns)
}

// Unsubscribe removes channel subscriptions, all of them without arguments.
// The acknowledgements arrive on the stream.
func (c *Connection) Unsubscribe(ctx context.Context, channels ...string) error {
	return c.unsubscribe(ctx, CmdUnsubscribe, channels)
}

// PUnsubscribe removes pattern subscriptions, all of them without arguments.
func (c *Connection) PUnsubscribe(ctx context.Context, patterns ...string) error {
	return c.unsubscribe(ctx, CmdPUnsubscribe, patterns)
}

func (c *Connection) subscribe(ctx context.Context, cmd string, handler PubSubHandler, names []string) (*Stream, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("redis: %s needs at least one name", cmd)
	}
	args := append([]string{cmd}, names...)

	c.mu.Lock()
	running := c.stream
	c.mu.Unlock()

	if running != nil {
		if running.kind != streamPubSub {
			return nil, ErrStreaming
		}
		if err := c.writeStreaming(ctx, args); err != nil {
			return nil, err
		}
		return running, nil
	}

	if handler == nil {
		return nil, ErrNoHandler
	}
	return c.startStream(ctx, streamPubSub, args, func(s *Stream, r *bufio.Reader) error {
		return s.readPubSub(r, handler)
	})
}

func (c *Connection) unsubscribe(ctx context.Context, cmd string, names []string) error {
	c.mu.Lock()
	running := c.stream
	c.mu.Unlock()

	if running == nil || running.kind != streamPubSub {
		return ErrNotSubscribed
	}
	return c.writeStreaming(ctx, append([]string{cmd}, names...))
}

// writeStreaming writes a command while a stream owns the read side.
// It may run on the dispatcher goroutine, so it does not use the send buffer.
func (c *Connection) writeStreaming(ctx context.Context, args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrConnectionClosed
	}
	c.conn.SetWriteDeadline(c.writeDeadline(ctx))
	if err := resp.WriteCommand(c.conn, args...); err != nil {
		return fmt.Errorf("redis: send %s: %w", args[0], err)
	}
	c.stats.recordCommand()
	return nil
}

func (c *Connection) startStream(ctx context.Context, kind streamKind, args []string, produce func(*Stream, *bufio.Reader) error) (*Stream, error) {
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.pipelining {
		return nil, ErrPipelining
	}
	if c.Streaming() {
		return nil, ErrStreaming
	}
	c.lastArgs = args

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.write(ctx, args); err != nil {
		c.dropTransport()
		c.fail(resp.CommunicationError, c.describe(err.Error()))
		return nil, fmt.Errorf("redis: send %s: %w", args[0], err)
	}

	// streams are unbounded
	c.conn.SetReadDeadline(time.Time{})

	streamCtx, cancel := context.WithCancelCause(ctx)
	s := &Stream{
		conn:   c,
		kind:   kind,
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan func(), c.cfg.StreamBuffer),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.stream = s
	reader := c.reader
	c.mu.Unlock()

	c.logger.Debug().Str("command", args[0]).Stringer("kind", kind).Msg("stream started")

	go func() {
		defer close(s.events)
		s.readErr = produce(s, reader)
	}()
	go s.dispatch()

	return s, nil
}

// emit hands a handler invocation to the dispatcher.
// It returns false when the stream is cancelled.
func (s *Stream) emit(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Stream) dispatch() {
	defer close(s.done)

	for {
		select {
		case fn, ok := <-s.events:
			if !ok {
				if s.ctx.Err() != nil {
					s.abort()
				} else {
					s.finish()
				}
				return
			}
			if s.ctx.Err() != nil {
				s.abort()
				return
			}
			fn()
			s.conn.stats.recordEvent()
			if s.ctx.Err() != nil {
				s.abort()
				return
			}
		case <-s.ctx.Done():
			s.abort()
			return
		}
	}
}

// finish runs when the reader returned on its own.
func (s *Stream) finish() {
	if s.readErr != nil {
		s.conn.dropTransport()
		s.end(fmt.Errorf("redis: %s stream: %w", s.kind, s.readErr))
		return
	}
	s.end(nil)
}

// abort drops the transport to unblock the reader and waits for it.
func (s *Stream) abort() {
	s.conn.dropTransport()
	for range s.events {
		// discard events decoded after cancellation
	}

	err := context.Cause(s.ctx)
	if errors.Is(err, errStopped) {
		err = nil
	}
	s.end(err)
}

func (s *Stream) end(err error) {
	s.err = err
	s.cancel(errStopped)

	c := s.conn
	c.mu.Lock()
	if c.stream == s {
		c.stream = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Stringer("kind", s.kind).Msg("stream ended")
	} else {
		c.logger.Debug().Stringer("kind", s.kind).Msg("stream ended")
	}
}

// readTrace splits the stream in lines and parses each one as a TraceEvent.
func (s *Stream) readTrace(r *bufio.Reader, handler TraceHandler) error {
	buf := make([]byte, readBufferSize)
	var pending []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.conn.touch()
			pending = append(pending, buf[:n]...)

			consumed := 0
			for {
				i := bytes.IndexByte(pending[consumed:], '\n')
				if i == -1 {
					break
				}
				line := strings.ReplaceAll(string(pending[consumed:consumed+i]), "\r", "")
				consumed += i + 1
				if line == "" {
					continue
				}

				ev := ParseTraceEvent(line)
				if !s.emit(func() { handler(ev) }) {
					return nil
				}
			}
			pending = append(pending[:0], pending[consumed:]...)
		}
		if err != nil {
			return err
		}
	}
}

// readPubSub accumulates the stream and decodes every complete frame.
// It stops reading after the unsubscription leaving no subscription.
func (s *Stream) readPubSub(r *bufio.Reader, handler PubSubHandler) error {
	buf := make([]byte, readBufferSize)
	src := resp.NewMemorySource(nil)
	var pending []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.conn.touch()
			pending = append(pending, buf[:n]...)

			consumed := 0
			for consumed < len(pending) {
				src.Reset(pending[consumed:])
				reply := resp.Decode(src)
				if reply.Kind == resp.NoAnswerReceived {
					break
				}
				if !reply.IsSuccess() && reply.Kind != resp.ServerError {
					return reply.Err()
				}
				consumed += src.Consumed()

				ev := ParsePubSubEvent(reply)
				if !s.emit(func() { handler(ev) }) {
					return nil
				}
				if ev.Terminates() {
					s.conn.restoreReader(r, pending[consumed:])
					return nil
				}
			}
			pending = append(pending[:0], pending[consumed:]...)
		}
		if err != nil {
			return err
		}
	}
}

// restoreReader puts back bytes read past the end of a stream, so the next
// command reads them first.
func (c *Connection) restoreReader(r *bufio.Reader, rest []byte) {
	if len(rest) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader != r {
		return
	}

	buffered := bytes.Clone(rest)
	c.reader = bufio.NewReaderSize(io.MultiReader(bytes.NewReader(buffered), r), readBufferSize)
	c.source = resp.NewReaderSource(c.reader, c.describe)
}
