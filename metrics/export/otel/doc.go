// Package otel publishes goSession engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per latency bucket. One callback reads
// [goSession.Engine.MetricsSnapshot] on each collection cycle.
//
// Callers own the MeterProvider and pass in a Meter. The exporter never mutates engine state.
package otel
