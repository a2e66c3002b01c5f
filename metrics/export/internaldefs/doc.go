// Package internaldefs holds the shared metric name tables used by the
// Prometheus and OpenTelemetry exporters. Not part of the public API.
package internaldefs
