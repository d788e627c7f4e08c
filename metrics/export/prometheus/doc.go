// Package prometheus exposes goSession engine metrics to Prometheus.
//
// [Collector] converts each [goSession.MetricsSnapshot] into constant counters and a
// constant histogram at scrape time, so the engine keeps its lock-free counters and never
// depends on client_golang. [PrometheusExporter] wraps the collector in its own registry and
// serves it with promhttp.
//
// The package never mutates engine state.
package prometheus
