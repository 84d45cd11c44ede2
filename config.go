package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for a single server connection.
type Config struct {
	// Host is the server host name or IP address.
	// Required.
	Host string

	// Port is the server TCP port.
	// Zero means DefaultPort.
	Port int

	// Password is sent with AUTH after every (re)connection.
	// Empty means no authentication.
	Password string

	// DB is the database selected after the first connection.
	// Must be in 0..MaxDB.
	DB int

	// ConnectTimeout bounds dialing.
	// Zero means no limit besides the context deadline.
	ConnectTimeout time.Duration

	// SendTimeout is the write deadline used when the context has no deadline.
	// Zero means no limit.
	SendTimeout time.Duration

	// ReceiveTimeout is the read deadline used when the context has no deadline.
	// Zero means no limit.
	ReceiveTimeout time.Duration

	// IdleTimeout is how long the connection may stay without traffic before
	// the next command probes the transport for a peer close.
	// Zero means DefaultIdleTimeout, negative disables the probe.
	IdleTimeout time.Duration

	// Dialer is the net.Dialer used to open the transport.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Logger receives connection lifecycle events.
	// If nil, nothing is logged.
	Logger *zerolog.Logger

	// NewCircuitBreaker creates a circuit breaker guarding dials to the server.
	// Called once when the connection is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// LegacyFlatten makes Strings flatten nested arrays into "<N>" separated
	// strings instead of failing with resp.ErrNestedArray.
	LegacyFlatten bool

	// StreamBuffer is the number of push events buffered between the stream
	// reader and the handler.
	// Zero means DefaultStreamBuffer.
	StreamBuffer int

	// for testing purposes only
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (c Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("redis: host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("redis: invalid port %d", c.Port)
	}
	if c.DB < 0 || c.DB > MaxDB {
		return fmt.Errorf("%w: %d", ErrInvalidDB, c.DB)
	}
	if c.StreamBuffer < 0 {
		return fmt.Errorf("redis: invalid stream buffer %d", c.StreamBuffer)
	}
	return nil
}

// withDefaults resolves the zero values of a validated config.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.StreamBuffer == 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}

// Addr returns the host:port the connection dials.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, fmt.Sprint(port))
}
