package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/state"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func eventAt(ts time.Time, seq int) *events.Event {
	e := events.New(events.EventTargetDown, "gw", fmt.Sprintf("event %d", seq))
	e.Timestamp = ts
	return e
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(eventAt(base.Add(time.Duration(i)*time.Minute), i)))
	}

	recent, err := j.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest first
	assert.Equal(t, "event 4", recent[0].Message)
	assert.Equal(t, "event 3", recent[1].Message)
	assert.Equal(t, "event 2", recent[2].Message)
}

func TestJournal_RecentOnEmpty(t *testing.T) {
	j := openTestJournal(t)

	recent, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestJournal_RecentMoreThanStored(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Append(eventAt(time.Now(), 0)))

	recent, err := j.Recent(50)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestJournal_Prune(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		require.NoError(t, j.Append(eventAt(base.Add(time.Duration(i)*10*time.Minute), i)))
	}

	// Cut away the first half
	pruned, err := j.Prune(base.Add(25 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	recent, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "event 3", recent[len(recent)-1].Message)
}

func TestJournal_RetentionLoopPrunesOldEvents(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(eventAt(time.Now().Add(-2*time.Hour), 0)))
	require.NoError(t, j.Append(eventAt(time.Now(), 1)))

	stop := j.StartRetention(10*time.Millisecond, time.Hour)
	defer stop()

	require.Eventually(t, func() bool {
		recent, err := j.Recent(10)
		return err == nil && len(recent) == 1
	}, 2*time.Second, 10*time.Millisecond, "stale event should be pruned")

	recent, err := j.Recent(10)
	require.NoError(t, err)
	assert.Equal(t, "event 1", recent[0].Message)

	stop()
	stop() // idempotent
}

func TestJournal_StatusRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	snap := state.Snapshot{
		Target:              "gw",
		Status:              state.StatusDown,
		ConsecutiveFailures: 3,
		LastMessage:         "i/o timeout",
		LastTransition:      time.Now().UTC(),
	}
	require.NoError(t, j.PutStatus(snap))

	// A second write for the same target overwrites, not appends
	snap.Status = state.StatusHealthy
	snap.ConsecutiveFailures = 0
	require.NoError(t, j.PutStatus(snap))

	require.NoError(t, j.PutStatus(state.Snapshot{Target: "web", Status: state.StatusHealthy}))

	statuses, err := j.Statuses()
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byName := make(map[string]state.Snapshot)
	for _, s := range statuses {
		byName[s.Target] = s
	}
	assert.Equal(t, state.StatusHealthy, byName["gw"].Status)
	assert.Equal(t, 0, byName["gw"].ConsecutiveFailures)
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := t.TempDir() + "/nested/data"
	j, err := Open(dir)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(eventAt(time.Now(), 0)))
}
