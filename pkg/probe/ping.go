package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingChecker probes a target with a single ICMP echo round trip.
// It runs unprivileged (UDP datagram ICMP) so the daemon does not need
// raw socket capabilities.
type PingChecker struct {
	// Address is the host to ping (IP or hostname)
	Address string

	// Timeout bounds the whole echo round trip
	Timeout time.Duration

	// Privileged switches to raw-socket ICMP (needs CAP_NET_RAW)
	Privileged bool
}

// NewPingChecker creates a new ping reachability checker
func NewPingChecker(address string) *PingChecker {
	return &PingChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check performs the ping check
func (p *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()

	pinger, err := probing.NewPinger(p.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Reason:    ReasonProtocol,
			Message:   fmt.Sprintf("invalid ping target: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}

	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return Result{
			Healthy:   false,
			Reason:    classify(err),
			Message:   fmt.Sprintf("ping failed: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		// No reply within the timeout
		return Result{
			Healthy:   false,
			Reason:    ReasonTimeout,
			Message:   fmt.Sprintf("no echo reply from %s within %s", p.Address, p.Timeout),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("echo reply from %s in %s", p.Address, stats.AvgRtt),
		CheckedAt: start,
		Latency:   stats.AvgRtt,
	}
}

// Kind returns the check kind
func (p *PingChecker) Kind() Kind {
	return KindPing
}

// WithTimeout sets the round-trip timeout
func (p *PingChecker) WithTimeout(timeout time.Duration) *PingChecker {
	p.Timeout = timeout
	return p
}
