package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes a target by establishing a TCP connection to a
// specific service port and closing it immediately
type TCPChecker struct {
	// Address is the TCP address to connect to (e.g., "192.168.1.1:80")
	Address string

	// Timeout is the connection timeout
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP connect checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check performs the TCP connect check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: t.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Reason:    classify(err),
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("tcp connection to %s established", t.Address),
		CheckedAt: start,
		Latency:   time.Since(start),
	}
}

// Kind returns the check kind
func (t *TCPChecker) Kind() Kind {
	return KindTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
