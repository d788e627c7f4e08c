// Package internaldefs holds the metric names shared by the Prometheus and OTel exporters.
//
// Both exporters read the same definitions, so a rename here changes every exporter at once.
// The package performs no I/O.
package internaldefs
