package goScrypt

import (
	"io"

	"github.com/MrEthical07/goScrypt/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is emitted after each hash and verify call when auditing is
// enabled. It never carries passwords, salts, or derived keys.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LoggerSink     = audit.LoggerSink
)

// NewChannelSink returns a sink that buffers up to buffer events for the
// caller to drain from Events(). A full, undrained sink stalls the audit
// worker; Engine.Close then waits Audit.CloseTimeout before abandoning it.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes each event as one JSON line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLoggerSink writes events through logger under the "audit" name.
func NewLoggerSink(logger *zap.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}
