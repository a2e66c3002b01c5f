// Package otel exports engine metrics as OpenTelemetry observable
// instruments driven by snapshot callbacks.
package otel
