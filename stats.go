package redis

import (
	"sync/atomic"
)

// ConnectionStats contains statistics about a connection.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as counters.
type ConnectionStats struct {
	Commands    uint64 // Commands written to the transport (pipelined ones included)
	Errors      uint64 // Failed replies, all kinds
	Connects    uint64 // Transports opened
	Reconnects  uint64 // Transports reopened after a drop or a peer close
	Pipelined   uint64 // Commands queued in pipeline mode
	Unsupported uint64 // Commands refused by the version gate
	Events      uint64 // Push events delivered to stream handlers
}

// statsCollector provides internal methods for updating connection stats.
// Not exported - the connection updates its own stats.
type statsCollector struct {
	stats *ConnectionStats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		stats: &ConnectionStats{},
	}
}

func (c *statsCollector) recordCommand() {
	atomic.AddUint64(&c.stats.Commands, 1)
}

func (c *statsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *statsCollector) recordConnect(reconnect bool) {
	atomic.AddUint64(&c.stats.Connects, 1)
	if reconnect {
		atomic.AddUint64(&c.stats.Reconnects, 1)
	}
}

func (c *statsCollector) recordPipelined() {
	atomic.AddUint64(&c.stats.Pipelined, 1)
}

func (c *statsCollector) recordUnsupported() {
	atomic.AddUint64(&c.stats.Unsupported, 1)
}

func (c *statsCollector) recordEvent() {
	atomic.AddUint64(&c.stats.Events, 1)
}

func (c *statsCollector) snapshot() ConnectionStats {
	return ConnectionStats{
		Commands:    atomic.LoadUint64(&c.stats.Commands),
		Errors:      atomic.LoadUint64(&c.stats.Errors),
		Connects:    atomic.LoadUint64(&c.stats.Connects),
		Reconnects:  atomic.LoadUint64(&c.stats.Reconnects),
		Pipelined:   atomic.LoadUint64(&c.stats.Pipelined),
		Unsupported: atomic.LoadUint64(&c.stats.Unsupported),
		Events:      atomic.LoadUint64(&c.stats.Events),
	}
}
