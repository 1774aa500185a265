// Package otel mirrors authkit engine metrics into OpenTelemetry.
//
// [NewExporter] creates one observable counter per engine counter and, for
// the latency histogram, a bucket gauge keyed by an "le" attribute plus a
// count gauge. A single callback reads the engine snapshot on every
// collection. Callers own the MeterProvider.
package otel
