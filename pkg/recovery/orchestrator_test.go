package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/probe"
)

func testActions() []config.RecoveryAction {
	return []config.RecoveryAction{
		{Name: "restart interface", Command: "ip link set eth0 up", WaitAfter: config.Duration(5 * time.Second)},
		{Name: "renew lease", Command: "dhclient -r && dhclient"},
	}
}

// fakeOp records executions and optionally fails or blocks
type fakeOp struct {
	name    string
	err     error
	block   chan struct{} // when set, Execute waits for it (or ctx)
	mu      sync.Mutex
	execLog *[]string
}

func (f *fakeOp) Name() string { return f.name }

func (f *fakeOp) Execute(ctx context.Context) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	*f.execLog = append(*f.execLog, f.name)
	f.mu.Unlock()
	return f.err
}

// fakeProber returns a fixed confirmation result
type fakeProber struct {
	healthy bool
}

func (f *fakeProber) Probe(ctx context.Context) probe.Result {
	if f.healthy {
		return probe.Result{Healthy: true, CheckedAt: time.Now()}
	}
	return probe.Result{Healthy: false, Reason: probe.ReasonTimeout, CheckedAt: time.Now()}
}

// collectEvents drains the subscription until no event arrives for a while
func collectEvents(sub events.Subscriber, want int) []*events.Event {
	var out []*events.Event
	for len(out) < want {
		select {
		case e := <-sub:
			out = append(out, e)
		case <-time.After(2 * time.Second):
			return out
		}
	}
	return out
}

func newTestBroker(t *testing.T) (*events.Broker, events.Subscriber) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	return broker, broker.Subscribe()
}

func TestOrchestrator_ConfirmedRecovery(t *testing.T) {
	broker, sub := newTestBroker(t)
	orch := NewOrchestrator(broker)

	var execLog []string
	steps := []Step{
		{Op: &fakeOp{name: "restart-iface", execLog: &execLog}},
		{Op: &fakeOp{name: "flush-dns", execLog: &execLog}},
	}

	verdict, err := orch.Run(context.Background(), "gw", steps, &fakeProber{healthy: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirmed, verdict)

	// Actions ran in declared order
	assert.Equal(t, []string{"restart-iface", "flush-dns"}, execLog)

	evs := collectEvents(sub, 4)
	require.Len(t, evs, 4)
	assert.Equal(t, events.EventRecoveryStarted, evs[0].Type)
	assert.Equal(t, events.EventRecoveryActionCompleted, evs[1].Type)
	assert.Equal(t, "restart-iface", evs[1].Metadata["action"])
	assert.Equal(t, "true", evs[1].Metadata["success"])
	assert.Equal(t, events.EventRecoveryActionCompleted, evs[2].Type)
	assert.Equal(t, "flush-dns", evs[2].Metadata["action"])
	assert.Equal(t, events.EventTargetRecovered, evs[3].Type)
}

func TestOrchestrator_Exhausted(t *testing.T) {
	broker, sub := newTestBroker(t)
	orch := NewOrchestrator(broker)

	var execLog []string
	steps := []Step{{Op: &fakeOp{name: "restart-iface", execLog: &execLog}}}

	verdict, err := orch.Run(context.Background(), "gw", steps, &fakeProber{healthy: false})
	require.NoError(t, err)
	assert.Equal(t, VerdictExhausted, verdict)

	evs := collectEvents(sub, 3)
	require.Len(t, evs, 3)
	assert.Equal(t, events.EventRecoveryStarted, evs[0].Type)
	assert.Equal(t, events.EventRecoveryActionCompleted, evs[1].Type)
	assert.Equal(t, events.EventRecoveryExhausted, evs[2].Type)
}

// A failed step is logged and the sequence continues; the verdict comes
// from the confirmation probe alone.
func TestOrchestrator_BestEffortContinuation(t *testing.T) {
	broker, sub := newTestBroker(t)
	orch := NewOrchestrator(broker)

	var execLog []string
	steps := []Step{
		{Op: &fakeOp{name: "broken", err: errors.New("exit 1"), execLog: &execLog}},
		{Op: &fakeOp{name: "working", execLog: &execLog}},
	}

	verdict, err := orch.Run(context.Background(), "gw", steps, &fakeProber{healthy: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirmed, verdict)
	assert.Equal(t, []string{"broken", "working"}, execLog)

	evs := collectEvents(sub, 4)
	require.Len(t, evs, 4)
	assert.Equal(t, "false", evs[1].Metadata["success"])
	assert.Equal(t, "true", evs[2].Metadata["success"])
}

func TestOrchestrator_EmptySequenceStillConfirms(t *testing.T) {
	broker, sub := newTestBroker(t)
	orch := NewOrchestrator(broker)

	verdict, err := orch.Run(context.Background(), "gw", nil, &fakeProber{healthy: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirmed, verdict)

	evs := collectEvents(sub, 2)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventRecoveryStarted, evs[0].Type)
	assert.Equal(t, events.EventTargetRecovered, evs[1].Type)
}

func TestOrchestrator_SingleFlightPerTarget(t *testing.T) {
	broker, _ := newTestBroker(t)
	orch := NewOrchestrator(broker)

	var execLog []string
	release := make(chan struct{})
	steps := []Step{{Op: &fakeOp{name: "slow", block: release, execLog: &execLog}}}

	firstDone := make(chan Verdict, 1)
	go func() {
		v, _ := orch.Run(context.Background(), "gw", steps, &fakeProber{healthy: true})
		firstDone <- v
	}()

	// Wait until the first run holds the guard
	require.Eventually(t, func() bool { return orch.InFlight("gw") },
		time.Second, 5*time.Millisecond)

	_, err := orch.Run(context.Background(), "gw", nil, &fakeProber{healthy: true})
	assert.ErrorIs(t, err, ErrRecoveryInFlight)

	// A different target is not blocked
	verdict, err := orch.Run(context.Background(), "other", nil, &fakeProber{healthy: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirmed, verdict)

	close(release)
	assert.Equal(t, VerdictConfirmed, <-firstDone)
	assert.False(t, orch.InFlight("gw"))
}

func TestOrchestrator_CancellationDuringWait(t *testing.T) {
	broker, _ := newTestBroker(t)
	orch := NewOrchestrator(broker)

	var execLog []string
	steps := []Step{
		{Op: &fakeOp{name: "first", execLog: &execLog}, WaitAfter: time.Hour},
		{Op: &fakeOp{name: "never", execLog: &execLog}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx, "gw", steps, &fakeProber{healthy: false})
		done <- err
	}()

	require.Eventually(t, func() bool { return orch.InFlight("gw") },
		time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, []string{"first"}, execLog)
}

func TestCommandOperation_Execute(t *testing.T) {
	op := NewCommandOperation("noop", "true")
	assert.NoError(t, op.Execute(context.Background()))

	failing := NewCommandOperation("fail", "echo boom >&2; exit 3")
	err := failing.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestStepsFor_PreservesOrder(t *testing.T) {
	steps := StepsFor(testActions())
	require.Len(t, steps, 2)
	assert.Equal(t, "restart interface", steps[0].Op.Name())
	assert.Equal(t, 5*time.Second, steps[0].WaitAfter)
	assert.Equal(t, "renew lease", steps[1].Op.Name())
}
