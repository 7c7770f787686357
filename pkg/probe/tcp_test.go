package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPChecker_Healthy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	checker := NewTCPChecker(ln.Addr().String())
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Reason != ReasonNone {
		t.Errorf("expected no reason, got %s", result.Reason)
	}
	if result.Latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestTCPChecker_Refused(t *testing.T) {
	// Grab a port that is certainly closed by listening and closing
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	checker := NewTCPChecker(addr)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("expected unhealthy for closed port, got healthy")
	}
	if result.Reason != ReasonRefused {
		t.Errorf("expected reason refused, got %s", result.Reason)
	}
}

func TestTCPChecker_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := NewTCPChecker("192.0.2.1:80").WithTimeout(5 * time.Second)
	result := checker.Check(ctx)

	if result.Healthy {
		t.Error("expected unhealthy with cancelled context")
	}
}

func TestTCPChecker_Kind(t *testing.T) {
	if NewTCPChecker("127.0.0.1:80").Kind() != KindTCP {
		t.Error("expected tcp kind")
	}
}

func TestPingChecker_Kind(t *testing.T) {
	if NewPingChecker("127.0.0.1").Kind() != KindPing {
		t.Error("expected ping kind")
	}
}
