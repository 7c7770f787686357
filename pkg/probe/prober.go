package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/netguard/netguard/pkg/config"
)

// retryPause is the pause between attempts inside a single probe call
const retryPause = 500 * time.Millisecond

// CheckerFor resolves a target's check kind to a concrete checker once,
// at target-load time
func CheckerFor(t *config.Target, timeout time.Duration) Checker {
	if t.Port != 0 {
		return NewTCPChecker(fmt.Sprintf("%s:%d", t.Address, t.Port)).WithTimeout(timeout)
	}
	return NewPingChecker(t.Address).WithTimeout(timeout)
}

// Prober executes probes for one target, retrying the underlying attempt
// up to a configured count within a single Probe call
type Prober struct {
	checker Checker
	retries int
	pause   time.Duration
}

// NewProber creates a prober around a resolved checker. retries is the
// total number of attempts per Probe call; values below 1 mean one attempt.
func NewProber(checker Checker, retries int) *Prober {
	if retries < 1 {
		retries = 1
	}
	return &Prober{
		checker: checker,
		retries: retries,
		pause:   retryPause,
	}
}

// Probe runs the check, returning success on the first successful attempt
// and the final failure otherwise. It never returns an error for ordinary
// network failure; cancellation ends the retry loop early.
func (p *Prober) Probe(ctx context.Context) Result {
	var last Result
	for attempt := 1; attempt <= p.retries; attempt++ {
		last = p.checker.Check(ctx)
		if last.Healthy {
			return last
		}
		if attempt == p.retries {
			break
		}
		select {
		case <-time.After(p.pause):
		case <-ctx.Done():
			return last
		}
	}
	return last
}
