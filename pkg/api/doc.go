// Package api exposes the daemon's local control surface over HTTP:
// liveness, per-target status snapshots, recent events and Prometheus
// metrics.
package api
