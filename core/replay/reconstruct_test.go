package replay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

func TestReconstruct_FromScratch(t *testing.T) {
	run := ids.NewRunId("reconstruct-scratch")
	node := ids.NewNodeId(run, "n1")
	log := openLog(t, "log", run)

	_, err := log.Append(eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeScheduled))
	require.NoError(t, err)
	_, err = log.Append(eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.NodeStarted))
	require.NoError(t, err)
	_, err = log.Append(eventlog.New(ids.NewEventId(run, 2), run, node, ltime.FromRaw(3), eventlog.NodeCompleted))
	require.NoError(t, err)

	state, err := Reconstruct(log, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, state.NodeStatus[node])
	require.Equal(t, 3, state.EventsSeen)
}

func TestReconstruct_ResumesFromSnapshot(t *testing.T) {
	run := ids.NewRunId("reconstruct-resume")
	node := ids.NewNodeId(run, "n1")
	log := openLog(t, "log", run)

	_, err := log.Append(eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeScheduled))
	require.NoError(t, err)

	mid, err := Reconstruct(log, nil)
	require.NoError(t, err)
	require.Equal(t, 1, mid.EventsSeen)

	_, err = log.Append(eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.NodeCompleted))
	require.NoError(t, err)

	final, err := Reconstruct(log, mid)
	require.NoError(t, err)
	require.Equal(t, 2, final.EventsSeen)
	require.Equal(t, StatusCompleted, final.NodeStatus[node])
	// Resuming from a snapshot must not mutate the snapshot itself.
	require.Equal(t, 1, mid.EventsSeen)
	require.Equal(t, StatusScheduled, mid.NodeStatus[node])
}
