package redis

import (
	"context"
	"fmt"

	"github.com/pior/redis/resp"
)

// deferredReply reads the reply of one pipelined command.
type deferredReply func(ctx context.Context) resp.Reply

// BeginPipeline enters pipeline mode: Do queues commands instead of running
// them, and FlushPipeline sends them all at once.
func (c *Connection) BeginPipeline() error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.Streaming() {
		return ErrStreaming
	}
	if c.pipelining {
		return ErrPipelining
	}

	c.pipelining = true
	c.queue = c.queue[:0]
	c.send.reset()
	return nil
}

// Pipelining returns true in pipeline mode.
func (c *Connection) Pipelining() bool {
	return c.pipelining
}

// Queued returns the number of commands waiting for FlushPipeline.
func (c *Connection) Queued() int {
	return len(c.queue)
}

// enqueue encodes a command in the send buffer and queues its reply reader.
func (c *Connection) enqueue(args []string) resp.Reply {
	c.send.appendCommand(args...)
	c.stats.recordCommand()
	c.stats.recordPipelined()

	debugSegfault := isDebugSegfault(args)
	c.queue = append(c.queue, func(ctx context.Context) resp.Reply {
		if debugSegfault {
			c.dropTransport()
			return c.fail(resp.ServerDown, c.describe("server down"))
		}
		reply := c.read(ctx)
		if reply.IsSuccess() {
			c.applyReply(args, reply)
		}
		return reply
	})
	return resp.Pipelined()
}

// FlushPipeline writes the queued commands and returns their replies in the
// order the commands were issued. The connection stays in pipeline mode.
//
// The error is only set when the commands could not be written, individual
// failures are reported in the replies.
func (c *Connection) FlushPipeline(ctx context.Context) ([]resp.Reply, error) {
	if !c.pipelining {
		return nil, ErrNotPipelining
	}

	queue := c.queue
	c.queue = nil
	if len(queue) == 0 {
		return []resp.Reply{}, nil
	}

	if err := c.ensureConnected(ctx); err != nil {
		c.send.reset()
		c.fail(connectFailureKind(err), err.Error())
		return nil, err
	}

	c.logger.Debug().Int("commands", len(queue)).Msg("flushing pipeline")

	if err := c.flushSend(ctx); err != nil {
		c.dropTransport()
		c.fail(resp.CommunicationError, c.describe(err.Error()))
		return nil, fmt.Errorf("redis: flush pipeline: %w", err)
	}

	replies := make([]resp.Reply, len(queue))
	for i, readReply := range queue {
		replies[i] = readReply(ctx)
	}

	// keep the backing array for the next batch
	c.queue = queue[:0]
	return replies, nil
}

// EndPipeline leaves pipeline mode.
// Commands still queued are discarded and ErrPipelineNotFlushed is returned.
func (c *Connection) EndPipeline() error {
	if !c.pipelining {
		return ErrNotPipelining
	}

	c.pipelining = false
	if len(c.queue) > 0 {
		c.queue = c.queue[:0]
		c.send.reset()
		return ErrPipelineNotFlushed
	}
	return nil
}
