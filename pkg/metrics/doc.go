// Package metrics defines the Prometheus collectors for probes, target
// state and recovery sequences, plus a small timer helper for histogram
// observations. All collectors are registered at init and served through
// the control API's /metrics endpoint.
package metrics
