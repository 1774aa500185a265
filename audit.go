package authkit

import (
	"io"

	"github.com/MrEthical07/authkit/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant outcome. Raw tokens never appear in
// events; TokenRef carries a fingerprint instead.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit events as newline-delimited JSON.
type JSONWriterSink = audit.JSONWriterSink

// ZerologSink writes audit events through a zerolog logger.
type ZerologSink = audit.ZerologSink

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(capacity int) *ChannelSink {
	return audit.NewChannelSink(capacity)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZerologSink returns a sink logging through logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return audit.NewZerologSink(logger)
}
