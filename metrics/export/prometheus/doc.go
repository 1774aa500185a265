// Package prometheus serves authkit engine metrics in the Prometheus text
// format without a client library: counters are authkit_*_total and the one
// histogram is authkit_authenticate_latency_seconds. Nothing is registered
// globally; callers mount [Exporter.Handler] where they like.
package prometheus
