package redis

import "time"

// Connection defaults
const (
	// DefaultPort is the port the server listens on out of the box
	DefaultPort = 6379

	// DefaultIdleTimeout is how long a connection may stay silent before its
	// transport is probed for a peer close on the next command.
	DefaultIdleTimeout = 240 * time.Second

	// DefaultStreamBuffer is the number of decoded push events buffered
	// between the stream reader and the handler.
	DefaultStreamBuffer = 64

	// MaxDB is the highest database index accepted by Select
	MaxDB = 15

	// readBufferSize matches the chunk size used by stream readers
	readBufferSize = 16 * 1024
)

// Send buffer growth policy
const (
	initialBufferSize    = 32 * 1024
	bufferSlack          = 32 * 1024
	largeBufferThreshold = 64 * 1024
)

// Server versions, encoded as major*100 + minor
const (
	VersionUnknown = -1
	Version24      = 204
	Version26      = 206
)

// Command names the connection handles specially
const (
	CmdAuth         = "AUTH"
	CmdSelect       = "SELECT"
	CmdInfo         = "INFO"
	CmdDebug        = "DEBUG"
	CmdSegfault     = "SEGFAULT"
	CmdMonitor      = "MONITOR"
	CmdSync         = "SYNC"
	CmdSubscribe    = "SUBSCRIBE"
	CmdPSubscribe   = "PSUBSCRIBE"
	CmdUnsubscribe  = "UNSUBSCRIBE"
	CmdPUnsubscribe = "PUNSUBSCRIBE"
	CmdShutdown     = "SHUTDOWN"
)

// Push event kinds of the publish/subscribe stream
const (
	EventSubscribe    = "subscribe"
	EventPSubscribe   = "psubscribe"
	EventUnsubscribe  = "unsubscribe"
	EventPUnsubscribe = "punsubscribe"
	EventMessage      = "message"
	EventPMessage     = "pmessage"
)

// INFO fields cached by the connection
const (
	infoVersion  = "redis_version"
	infoMode     = "redis_mode"
	modeSentinel = "sentinel"
)
