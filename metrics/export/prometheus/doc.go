// Package prometheus exports engine metrics in Prometheus text exposition
// format without taking a dependency on the client library's registry.
package prometheus
