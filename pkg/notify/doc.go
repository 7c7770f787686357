// Package notify fans monitoring events out to sinks: the structured log,
// an optional notification command and the optional event journal. Sink
// failures never affect monitoring correctness.
package notify
