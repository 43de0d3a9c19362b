package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketforge/internal/runner"
	"ticketforge/internal/types"
)

func TestRun_ReplayThenLive(t *testing.T) {
	reg := NewRegistry()
	r := reg.Create("run-1")
	r.Emit(runner.Event{Kind: runner.EventStatus, Step: "parse", Message: "running parse"})

	replay, live, cancel := r.Subscribe()
	defer cancel()
	require.Len(t, replay, 1)
	assert.Equal(t, "run-1", replay[0].RunID)

	r.Emit(runner.Event{Kind: runner.EventProgress, Step: "parse"})
	r.Emit(runner.Event{Kind: runner.EventComplete, Payload: types.ProjectState{ID: "p1"}})

	var kinds []runner.EventKind
	for e := range live {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []runner.EventKind{runner.EventProgress, runner.EventComplete}, kinds)

	snap := r.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.Project)
	assert.Equal(t, "p1", snap.Project.ID)
	assert.Len(t, snap.Events, 3)
}

func TestRun_FailedRunIgnoresLateEvents(t *testing.T) {
	r := NewRegistry().Create("run-2")
	r.Emit(runner.Event{Kind: runner.EventError, Message: "boom"})
	r.Emit(runner.Event{Kind: runner.EventStatus, Message: "late"})

	snap := r.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "boom", snap.Error)
	assert.Len(t, snap.Events, 1)

	replay, live, _ := r.Subscribe()
	assert.Len(t, replay, 1)
	_, open := <-live
	assert.False(t, open, "subscribing to a finished run yields a closed channel")
}

func TestRun_CancelReleasesSubscriber(t *testing.T) {
	r := NewRegistry().Create("run-3")
	_, live, cancel := r.Subscribe()
	cancel()
	_, open := <-live
	assert.False(t, open)
	r.Emit(runner.Event{Kind: runner.EventStatus})
}

func TestRegistry_ForgetsFinishedRuns(t *testing.T) {
	reg := NewRegistry()
	reg.Retention = 10 * time.Millisecond
	r := reg.Create(" run-4 ")
	got, ok := reg.Get("run-4")
	require.True(t, ok)
	assert.Same(t, r, got)

	r.Emit(runner.Event{Kind: runner.EventComplete})
	assert.Eventually(t, func() bool {
		_, ok := reg.Get("run-4")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
