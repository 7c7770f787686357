package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// Kind represents the kind of health check a target uses
type Kind string

const (
	KindPing Kind = "ping"
	KindTCP  Kind = "tcp"
)

// Reason classifies why a probe failed
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonTimeout     Reason = "timeout"
	ReasonRefused     Reason = "refused"
	ReasonUnreachable Reason = "unreachable"
	ReasonProtocol    Reason = "protocol"
)

// Result represents the outcome of a single probe
type Result struct {
	Healthy   bool
	Reason    Reason
	Message   string
	CheckedAt time.Time
	Latency   time.Duration
}

// Checker is the interface that all probe checkers implement
type Checker interface {
	// Check performs the probe and returns the result. Ordinary network
	// failure is reported through the Result, never as a panic or error.
	Check(ctx context.Context) Result

	// Kind returns the kind of check
	Kind() Kind
}

// classify maps a network error to a failure reason
func classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ReasonUnreachable
	}

	return ReasonProtocol
}
