// Package audit buffers security events and hands them to a [Sink] off the
// request path.
//
// The engine decides what to emit; this package only queues and delivers.
// Sinks provided here cover tests ([ChannelSink]), files or stdout
// ([JSONWriterSink]) and the process logger ([ZerologSink]). The package
// must not import the root authkit package.
package audit
