package scheduler

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/log"
	"github.com/netguard/netguard/pkg/metrics"
	"github.com/netguard/netguard/pkg/probe"
	"github.com/netguard/netguard/pkg/recovery"
	"github.com/netguard/netguard/pkg/state"
)

// Prober executes one bounded probe call
type Prober interface {
	Probe(ctx context.Context) probe.Result
}

// StatusRecorder persists last-known target status; may be nil
type StatusRecorder interface {
	PutStatus(state.Snapshot) error
}

// ProberFactory resolves a target to its prober. Overridable for tests.
type ProberFactory func(t *config.Target) Prober

// Option configures a Scheduler
type Option func(*Scheduler)

// WithProberFactory replaces the default checker resolution
func WithProberFactory(f ProberFactory) Option {
	return func(s *Scheduler) {
		s.proberFor = f
	}
}

// targetRunner owns everything for one target: its prober, state machine,
// recovery steps and tick loop. Nothing else mutates its machine.
type targetRunner struct {
	target   config.Target
	prober   Prober
	machine  *state.Machine
	steps    []recovery.Step
	interval time.Duration
	logger   zerolog.Logger

	// recovering is set while a recovery sequence is in flight; ticks
	// arriving in that window are dropped
	recovering atomic.Bool
}

// Scheduler drives one independent tick loop per target, fans probes out
// concurrently and hands Down transitions to the recovery orchestrator.
type Scheduler struct {
	cfg       *config.Config
	broker    *events.Broker
	orch      *recovery.Orchestrator
	recorder  StatusRecorder
	proberFor ProberFactory
	logger    zerolog.Logger

	runners []*targetRunner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler over the configured target set. The
// configuration must already be validated; New resolves each target's
// checker, recovery sequence and intervals exactly once.
func New(cfg *config.Config, broker *events.Broker, orch *recovery.Orchestrator, recorder StatusRecorder, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		broker:   broker,
		orch:     orch,
		recorder: recorder,
		logger:   log.WithComponent("scheduler"),
	}
	s.proberFor = func(t *config.Target) Prober {
		return probe.NewProber(probe.CheckerFor(t, cfg.TargetTimeout(t)), cfg.TargetRetries(t))
	}

	for _, opt := range opts {
		opt(s)
	}

	for i := range cfg.Targets {
		t := cfg.Targets[i]
		s.runners = append(s.runners, &targetRunner{
			target:   t,
			prober:   s.proberFor(&t),
			machine:  state.NewMachine(t.Name, cfg.FailureThreshold, cfg.RecoveryCooldown.Std()),
			steps:    recovery.StepsFor(cfg.TargetActions(&t)),
			interval: cfg.TargetInterval(&t),
			logger:   log.WithTarget(t.Name),
		})
	}

	return s
}

// Start launches one monitoring loop per target
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, r := range s.runners {
		s.wg.Add(1)
		go s.runTarget(ctx, r)
	}

	s.logger.Info().Int("targets", len(s.runners)).Msg("monitoring started")
}

// Stop cancels all loops and waits up to grace for in-flight probes and
// recoveries to wind down. It returns true when everything finished in
// time; stragglers are abandoned otherwise.
func (s *Scheduler) Stop(grace time.Duration) bool {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("monitoring stopped")
		return true
	case <-time.After(grace):
		s.logger.Warn().Dur("grace", grace).Msg("shutdown grace period expired, abandoning in-flight work")
		return false
	}
}

// Snapshot returns the current health record of every target, sorted by
// target name
func (s *Scheduler) Snapshot() []state.Snapshot {
	out := make([]state.Snapshot, 0, len(s.runners))
	for _, r := range s.runners {
		out = append(out, r.machine.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// runTarget is the per-target monitoring loop. The loop is the only
// goroutine that probes this target, so probe single-flight holds by
// construction; recovery single-flight is enforced by the runner flag and
// the orchestrator guard behind it.
func (s *Scheduler) runTarget(ctx context.Context, r *targetRunner) {
	defer s.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// First probe fires immediately
	s.tick(ctx, r)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, r)

			// Drop ticks that fired while the probe was running
			select {
			case <-ticker.C:
				metrics.TicksDropped.WithLabelValues(r.target.Name).Inc()
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one probe cycle for the target
func (s *Scheduler) tick(ctx context.Context, r *targetRunner) {
	if ctx.Err() != nil {
		return
	}

	if r.recovering.Load() {
		metrics.TicksDropped.WithLabelValues(r.target.Name).Inc()
		return
	}

	result := r.prober.Probe(ctx)
	s.observe(r, result)

	transition := r.machine.Apply(result)
	switch transition {
	case state.TransitionDegraded:
		r.logger.Warn().
			Str("reason", string(result.Reason)).
			Msg("target degraded")

	case state.TransitionDown:
		failures := r.machine.ConsecutiveFailures()
		r.logger.Error().
			Int("consecutive_failures", failures).
			Msg("target down")
		s.broker.Publish(events.New(events.EventTargetDown, r.target.Name, result.Message).
			WithMeta("consecutive_failures", strconv.Itoa(failures)).
			WithMeta("reason", string(result.Reason)))

	case state.TransitionHealthy:
		r.logger.Info().Msg("target healthy again")
	}

	// A down target becomes eligible for (another) recovery once the
	// cool-down has elapsed; BeginRecovery arbitrates both.
	if !result.Healthy && r.machine.Status() == state.StatusDown {
		s.maybeRecover(ctx, r)
	}

	s.record(r)
}

// maybeRecover hands the target to the orchestrator asynchronously so
// other targets' ticks are never blocked by recovery execution
func (s *Scheduler) maybeRecover(ctx context.Context, r *targetRunner) {
	if !r.machine.BeginRecovery() {
		return
	}

	r.recovering.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer r.recovering.Store(false)

		verdict, err := s.orch.Run(ctx, r.target.Name, r.steps, r.prober)
		if err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("recovery run failed")
		}

		r.machine.FinishRecovery(verdict == recovery.VerdictConfirmed)
		s.record(r)
		s.observeUp(r)
	}()
}

func (s *Scheduler) observe(r *targetRunner, result probe.Result) {
	name := r.target.Name
	if result.Healthy {
		metrics.ProbesTotal.WithLabelValues(name, "success").Inc()
	} else {
		metrics.ProbesTotal.WithLabelValues(name, "failure").Inc()
		metrics.ProbeFailures.WithLabelValues(name, string(result.Reason)).Inc()
	}
	metrics.ProbeDuration.WithLabelValues(name).Observe(result.Latency.Seconds())
	s.observeUp(r)
}

func (s *Scheduler) observeUp(r *targetRunner) {
	up := 0.0
	if r.machine.Status() == state.StatusHealthy {
		up = 1.0
	}
	metrics.TargetUp.WithLabelValues(r.target.Name).Set(up)
}

// record persists the target's snapshot, best effort
func (s *Scheduler) record(r *targetRunner) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.PutStatus(r.machine.Snapshot()); err != nil {
		r.logger.Debug().Err(err).Msg("failed to record status")
	}
}
