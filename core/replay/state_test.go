package replay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

func sampleRun(t *testing.T) (ids.RunId, ids.NodeId) {
	t.Helper()
	run := ids.NewRunId("replay-state-test")
	node := ids.NewNodeId(run, "n1")
	return run, node
}

func TestState_ApplyTracksNodeLifecycle(t *testing.T) {
	run, node := sampleRun(t)
	s := NewState(run)

	s.Apply(eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeScheduled))
	require.Equal(t, StatusScheduled, s.NodeStatus[node])

	s.Apply(eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.NodeStarted))
	require.Equal(t, StatusStarted, s.NodeStatus[node])

	s.Apply(eventlog.New(ids.NewEventId(run, 2), run, node, ltime.FromRaw(3), eventlog.NodeCompleted))
	require.Equal(t, StatusCompleted, s.NodeStatus[node])
	require.Equal(t, ltime.FromRaw(3), s.LogicalTime)
	require.Equal(t, 3, s.EventsSeen)
}

func TestState_ApplyTracksProducedBlobs(t *testing.T) {
	run, node := sampleRun(t)
	s := NewState(run)

	ev := eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.BlobStored).
		WithPayload([]byte("output bytes"))
	s.Apply(ev)

	require.Len(t, s.Produced[node], 1)
	require.Equal(t, chash.Compute([]byte("output bytes")), s.Produced[node][0])
}

func TestState_ApplyTracksPolicyDecisions(t *testing.T) {
	run, node := sampleRun(t)
	s := NewState(run)

	allow := eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.PolicyDecision).
		WithPayload([]byte{1})
	deny := eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.PolicyDecision).
		WithPayload([]byte{0})
	s.Apply(allow)
	s.Apply(deny)

	require.Equal(t, []bool{true, false}, s.Decisions[node])
}

func TestState_ApplyTracksPostStateHash(t *testing.T) {
	run, node := sampleRun(t)
	s := NewState(run)

	post := chash.Compute([]byte("post"))
	ev := eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeCompleted).
		WithStateHashes(chash.Empty(), post)
	s.Apply(ev)

	require.Equal(t, post, s.LastPostHash)
}
