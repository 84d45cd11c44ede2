package redis

import (
	"errors"
)

var (
	// ErrConnectionClosed is returned once Close has been called.
	ErrConnectionClosed = errors.New("redis: connection closed")

	// ErrPipelining is returned when an operation is not allowed in pipeline mode.
	ErrPipelining = errors.New("redis: connection is pipelining")

	// ErrStreaming is returned while a monitor or subscribe stream owns the connection.
	ErrStreaming = errors.New("redis: connection is streaming")

	// ErrNotPipelining is returned by FlushPipeline outside of pipeline mode.
	ErrNotPipelining = errors.New("redis: connection is not pipelining")

	// ErrPipelineNotFlushed is returned when leaving pipeline mode with queued commands.
	// The queued commands are discarded.
	ErrPipelineNotFlushed = errors.New("redis: pipeline left with unflushed commands")

	// ErrInvalidDB is returned for a database index outside of 0..MaxDB.
	ErrInvalidDB = errors.New("redis: invalid database index")

	// ErrNoHandler is returned when a stream is started without a handler.
	ErrNoHandler = errors.New("redis: no stream handler")

	// ErrUnsupportedVersion is wrapped by Check when the server is too old
	// for a command.
	ErrUnsupportedVersion = errors.New("redis: unsupported by server version")

	// ErrEmptyCommand is returned for a command without arguments.
	ErrEmptyCommand = errors.New("redis: empty command")
)
