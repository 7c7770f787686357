package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/probe"
	"github.com/netguard/netguard/pkg/recovery"
	"github.com/netguard/netguard/pkg/state"
)

// fakeProber scripts probe outcomes per call. failUntil makes the first
// n calls fail; blockAfter makes every later call park on the context.
type fakeProber struct {
	mu         sync.Mutex
	calls      int
	failUntil  int
	blockAfter int
}

func (f *fakeProber) Probe(ctx context.Context) probe.Result {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.blockAfter > 0 && n > f.blockAfter {
		<-ctx.Done()
		return probe.Result{Healthy: false, Reason: probe.ReasonTimeout, CheckedAt: time.Now()}
	}
	if n <= f.failUntil {
		return probe.Result{Healthy: false, Reason: probe.ReasonTimeout, CheckedAt: time.Now()}
	}
	return probe.Result{Healthy: true, CheckedAt: time.Now(), Latency: time.Millisecond}
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// alwaysFailing never recovers
func alwaysFailing() *fakeProber { return &fakeProber{failUntil: 1 << 30} }

func testConfig(targets ...config.Target) *config.Config {
	return &config.Config{
		CheckInterval:    config.Duration(20 * time.Millisecond),
		ProbeTimeout:     config.Duration(time.Second),
		RetryCount:       1,
		FailureThreshold: 3,
		RecoveryCooldown: config.Duration(time.Hour),
		ListenAddr:       "127.0.0.1:0",
		Targets:          targets,
	}
}

func newTestScheduler(t *testing.T, cfg *config.Config, probers map[string]Prober) (*Scheduler, events.Subscriber) {
	t.Helper()

	broker := events.NewBroker()
	broker.Start()
	sub := broker.Subscribe()
	t.Cleanup(broker.Stop)

	orch := recovery.NewOrchestrator(broker)
	s := New(cfg, broker, orch, nil, WithProberFactory(func(tt *config.Target) Prober {
		return probers[tt.Name]
	}))
	return s, sub
}

// drainEvents collects everything already delivered plus whatever arrives
// within the quiet window
func drainEvents(sub events.Subscriber) []*events.Event {
	var out []*events.Event
	for {
		select {
		case e := <-sub:
			out = append(out, e)
		case <-time.After(200 * time.Millisecond):
			return out
		}
	}
}

func countByType(evs []*events.Event) map[events.EventType]int {
	counts := make(map[events.EventType]int)
	for _, e := range evs {
		counts[e.Type]++
	}
	return counts
}

// A persistently failing target descends exactly once and, while the
// cool-down holds, triggers exactly one recovery attempt no matter how
// many more ticks fail.
func TestScheduler_SingleDescentAndCooldown(t *testing.T) {
	cfg := testConfig(config.Target{Name: "gw", Address: "203.0.113.1"})
	prober := alwaysFailing()
	s, sub := newTestScheduler(t, cfg, map[string]Prober{"gw": prober})

	s.Start()
	time.Sleep(400 * time.Millisecond)
	require.True(t, s.Stop(time.Second))

	counts := countByType(drainEvents(sub))
	assert.Equal(t, 1, counts[events.EventTargetDown], "down must be announced exactly once per descent")
	assert.Equal(t, 1, counts[events.EventRecoveryStarted], "cool-down must suppress further attempts")
	assert.Equal(t, 1, counts[events.EventRecoveryExhausted])
	assert.Zero(t, counts[events.EventTargetRecovered])

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, state.StatusDown, snap[0].Status)
	assert.Greater(t, prober.callCount(), cfg.FailureThreshold)
}

// After the threshold descent the recovery sequence runs; its confirmation
// probe succeeds and the target returns to healthy.
func TestScheduler_ConfirmedRecovery(t *testing.T) {
	cfg := testConfig(config.Target{Name: "gw", Address: "203.0.113.1"})
	// Three failures reach the threshold, the fourth call is the
	// confirmation probe and succeeds
	prober := &fakeProber{failUntil: 3}
	s, sub := newTestScheduler(t, cfg, map[string]Prober{"gw": prober})

	s.Start()
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		return s.Snapshot()[0].Status == state.StatusHealthy
	}, 2*time.Second, 10*time.Millisecond, "target should recover to healthy")

	s.Stop(time.Second)

	counts := countByType(drainEvents(sub))
	assert.Equal(t, 1, counts[events.EventTargetDown])
	assert.Equal(t, 1, counts[events.EventRecoveryStarted])
	assert.Equal(t, 1, counts[events.EventTargetRecovered])
	assert.Zero(t, counts[events.EventRecoveryExhausted])
}

// Ticks that fire while a recovery is in flight are dropped, not queued:
// the prober sees no new probe calls until the sequence finishes.
func TestScheduler_TicksDroppedDuringRecovery(t *testing.T) {
	cfg := testConfig(config.Target{Name: "gw", Address: "203.0.113.1"})
	// Calls 1-3 fail and reach the threshold; call 4 is the confirmation
	// probe and parks on the context, pinning the runner in recovery
	prober := &fakeProber{failUntil: 3, blockAfter: 3}
	s, _ := newTestScheduler(t, cfg, map[string]Prober{"gw": prober})

	s.Start()

	require.Eventually(t, func() bool { return prober.callCount() == 4 },
		2*time.Second, 5*time.Millisecond)

	// Several intervals pass while recovery is stuck; no probe may run
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 4, prober.callCount())

	// The parked confirmation probe honours cancellation
	assert.True(t, s.Stop(time.Second))
}

// A target stuck in recovery must not stall the other targets' loops
func TestScheduler_TargetIndependence(t *testing.T) {
	cfg := testConfig(
		config.Target{Name: "bad", Address: "203.0.113.1"},
		config.Target{Name: "good", Address: "203.0.113.2"},
	)
	bad := &fakeProber{failUntil: 3, blockAfter: 3}
	good := &fakeProber{}
	s, _ := newTestScheduler(t, cfg, map[string]Prober{"bad": bad, "good": good})

	s.Start()

	require.Eventually(t, func() bool { return bad.callCount() == 4 },
		2*time.Second, 5*time.Millisecond)
	before := good.callCount()

	time.Sleep(200 * time.Millisecond)
	assert.Greater(t, good.callCount(), before, "healthy target must keep probing")

	for _, snap := range s.Snapshot() {
		if snap.Target == "good" {
			assert.Equal(t, state.StatusHealthy, snap.Status)
		}
	}

	assert.True(t, s.Stop(time.Second))
}

func TestScheduler_StopAbandonsStragglers(t *testing.T) {
	cfg := testConfig(config.Target{Name: "gw", Address: "203.0.113.1"})
	s, _ := newTestScheduler(t, cfg, map[string]Prober{"gw": &stubbornProber{}})

	s.Start()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	ok := s.Stop(100 * time.Millisecond)
	assert.False(t, ok, "straggler should exhaust the grace period")
	assert.Less(t, time.Since(start), time.Second)
}

// stubbornProber ignores cancellation entirely
type stubbornProber struct{}

func (stubbornProber) Probe(ctx context.Context) probe.Result {
	time.Sleep(5 * time.Second)
	return probe.Result{Healthy: true, CheckedAt: time.Now()}
}

func TestScheduler_SnapshotSortedByName(t *testing.T) {
	cfg := testConfig(
		config.Target{Name: "charlie", Address: "203.0.113.3"},
		config.Target{Name: "alpha", Address: "203.0.113.1"},
		config.Target{Name: "bravo", Address: "203.0.113.2"},
	)
	s, _ := newTestScheduler(t, cfg, map[string]Prober{
		"charlie": &fakeProber{}, "alpha": &fakeProber{}, "bravo": &fakeProber{},
	})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "alpha", snap[0].Target)
	assert.Equal(t, "bravo", snap[1].Target)
	assert.Equal(t, "charlie", snap[2].Target)
}
