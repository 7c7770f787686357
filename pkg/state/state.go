package state

import (
	"sync"
	"time"

	"github.com/netguard/netguard/pkg/probe"
)

// Status represents a target's current health status
type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusDegraded   Status = "degraded"
	StatusDown       Status = "down"
	StatusRecovering Status = "recovering"
)

// Transition describes the status change produced by applying an outcome
type Transition int

const (
	// TransitionNone means the status did not change
	TransitionNone Transition = iota

	// TransitionDegraded is the first failure seen from healthy
	TransitionDegraded

	// TransitionDown means the failure threshold was reached; emitted
	// exactly once per descent and triggers recovery
	TransitionDown

	// TransitionHealthy means the target returned to healthy
	TransitionHealthy
)

// Snapshot is a point-in-time copy of a target's health record
type Snapshot struct {
	Target               string        `json:"target"`
	Status               Status        `json:"status"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastTransition       time.Time     `json:"last_transition"`
	LastRecoveryAttempt  time.Time     `json:"last_recovery_attempt,omitempty"`
	LastCheck            time.Time     `json:"last_check,omitempty"`
	LastMessage          string        `json:"last_message,omitempty"`
	LastLatency          time.Duration `json:"last_latency_ns,omitempty"`
}

// Machine holds the health state for exactly one target. It is mutated
// only through Apply, BeginRecovery and FinishRecovery; transitions are
// deterministic functions of (status, outcome, counters, thresholds) and
// never fail.
type Machine struct {
	mu sync.Mutex

	target           string
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time

	status               Status
	consecutiveFailures  int
	consecutiveSuccesses int
	lastTransition       time.Time
	lastRecoveryAttempt  time.Time
	cooldownUntil        time.Time
	lastResult           probe.Result
}

// NewMachine creates a health state machine for a target, starting healthy
func NewMachine(target string, failureThreshold int, cooldown time.Duration) *Machine {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Machine{
		target:           target,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		status:           StatusHealthy,
		lastTransition:   time.Now(),
	}
}

// Apply consumes a probe outcome and returns the resulting transition.
// While a recovery is in flight (or the target is down) outcomes update
// counters only; the orchestrator drives the next status change.
func (m *Machine) Apply(result probe.Result) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastResult = result

	if result.Healthy {
		m.consecutiveSuccesses++
		m.consecutiveFailures = 0
	} else {
		m.consecutiveFailures++
		m.consecutiveSuccesses = 0
	}

	switch m.status {
	case StatusHealthy:
		if !result.Healthy {
			// A threshold of one descends without passing through degraded
			if m.consecutiveFailures >= m.failureThreshold {
				m.setStatus(StatusDown)
				return TransitionDown
			}
			m.setStatus(StatusDegraded)
			return TransitionDegraded
		}

	case StatusDegraded:
		if result.Healthy {
			m.setStatus(StatusHealthy)
			return TransitionHealthy
		}
		if m.consecutiveFailures >= m.failureThreshold {
			m.setStatus(StatusDown)
			return TransitionDown
		}

	case StatusDown, StatusRecovering:
		// Informational only; recovery owns the next transition.
	}

	return TransitionNone
}

// BeginRecovery moves the target from down to recovering. It returns false
// when the target is not down or the post-exhaustion cool-down has not yet
// elapsed, in which case no recovery may start.
func (m *Machine) BeginRecovery() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusDown {
		return false
	}
	now := m.now()
	if now.Before(m.cooldownUntil) {
		return false
	}

	m.lastRecoveryAttempt = now
	m.setStatus(StatusRecovering)
	return true
}

// FinishRecovery records the orchestrator's verdict. A confirmed recovery
// returns the target to healthy with all counters reset; exhaustion sends
// it back to down and starts the cool-down clock.
func (m *Machine) FinishRecovery(confirmed bool) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRecovering {
		return TransitionNone
	}

	if confirmed {
		m.consecutiveFailures = 0
		m.consecutiveSuccesses = 0
		m.setStatus(StatusHealthy)
		return TransitionHealthy
	}

	m.cooldownUntil = m.now().Add(m.cooldown)
	m.setStatus(StatusDown)
	return TransitionDown
}

// Status returns the current status
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ConsecutiveFailures returns the current consecutive failure count
func (m *Machine) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

// Snapshot returns a copy of the current health record
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Target:               m.target,
		Status:               m.status,
		ConsecutiveFailures:  m.consecutiveFailures,
		ConsecutiveSuccesses: m.consecutiveSuccesses,
		LastTransition:       m.lastTransition,
		LastRecoveryAttempt:  m.lastRecoveryAttempt,
		LastCheck:            m.lastResult.CheckedAt,
		LastMessage:          m.lastResult.Message,
		LastLatency:          m.lastResult.Latency,
	}
}

// setStatus must be called with the mutex held
func (m *Machine) setStatus(s Status) {
	m.status = s
	m.lastTransition = m.now()
}
