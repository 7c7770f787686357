package recovery

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/log"
	"github.com/netguard/netguard/pkg/metrics"
	"github.com/netguard/netguard/pkg/probe"
)

// Verdict is the overall outcome of a recovery sequence
type Verdict int

const (
	// VerdictConfirmed means the confirmation probe succeeded
	VerdictConfirmed Verdict = iota

	// VerdictExhausted means all actions ran and the target still fails
	VerdictExhausted
)

// ErrRecoveryInFlight is returned on an attempted re-entrant run for a
// target. The scheduler's handoff prevents this by construction, so
// seeing it means a programming error.
var ErrRecoveryInFlight = errors.New("recovery already in flight for target")

// Prober performs the confirmation probe after the action sequence
type Prober interface {
	Probe(ctx context.Context) probe.Result
}

// Orchestrator runs recovery sequences, one at a time per target
type Orchestrator struct {
	broker *events.Broker
	logger zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewOrchestrator creates a recovery orchestrator
func NewOrchestrator(broker *events.Broker) *Orchestrator {
	return &Orchestrator{
		broker:   broker,
		logger:   log.WithComponent("recovery"),
		inflight: make(map[string]bool),
	}
}

// InFlight reports whether a recovery is currently running for a target
func (o *Orchestrator) InFlight(target string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight[target]
}

func (o *Orchestrator) acquire(target string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[target] {
		return false
	}
	o.inflight[target] = true
	return true
}

func (o *Orchestrator) release(target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, target)
}

// Run executes the target's recovery sequence in declared order, then
// confirms with one probe. Individual action failures are logged and the
// sequence continues; exhaustion is judged solely by the confirmation
// probe. Run never re-enters for a target with a prior run active.
func (o *Orchestrator) Run(ctx context.Context, target string, steps []Step, confirm Prober) (Verdict, error) {
	if !o.acquire(target) {
		o.logger.Error().Str("target", target).Msg("re-entrant recovery attempt blocked")
		return VerdictExhausted, ErrRecoveryInFlight
	}
	defer o.release(target)

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RecoveryDuration, target)

	o.logger.Info().Str("target", target).Int("actions", len(steps)).Msg("recovery started")
	o.broker.Publish(events.New(events.EventRecoveryStarted, target, "recovery sequence started"))

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return VerdictExhausted, ctx.Err()
		default:
		}

		err := step.Op.Execute(ctx)
		success := err == nil
		if err != nil {
			// Best-effort: a failed step does not abort the sequence
			o.logger.Warn().Err(err).
				Str("target", target).
				Str("action", step.Op.Name()).
				Msg("recovery action failed, continuing")
			metrics.RecoveryActionFailures.WithLabelValues(target).Inc()
		} else {
			o.logger.Info().
				Str("target", target).
				Str("action", step.Op.Name()).
				Msg("recovery action completed")
		}

		o.broker.Publish(events.New(events.EventRecoveryActionCompleted, target, step.Op.Name()).
			WithMeta("action", step.Op.Name()).
			WithMeta("success", strconv.FormatBool(success)))

		if step.WaitAfter > 0 {
			select {
			case <-ctx.Done():
				return VerdictExhausted, ctx.Err()
			case <-time.After(step.WaitAfter):
			}
		}
	}

	result := confirm.Probe(ctx)
	if result.Healthy {
		o.logger.Info().Str("target", target).Msg("recovery confirmed")
		o.broker.Publish(events.New(events.EventTargetRecovered, target, "confirmation probe succeeded"))
		metrics.RecoveriesTotal.WithLabelValues(target, "confirmed").Inc()
		return VerdictConfirmed, nil
	}

	o.logger.Error().
		Str("target", target).
		Str("reason", string(result.Reason)).
		Msg("recovery exhausted, confirmation probe failed")
	o.broker.Publish(events.New(events.EventRecoveryExhausted, target, result.Message).
		WithMeta("reason", string(result.Reason)))
	metrics.RecoveriesTotal.WithLabelValues(target, "exhausted").Inc()
	return VerdictExhausted, nil
}
