package replay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

func sampleEvents(run ids.RunId, node ids.NodeId, n int) []eventlog.Event {
	events := make([]eventlog.Event, n)
	for i := 0; i < n; i++ {
		events[i] = eventlog.New(ids.NewEventId(run, uint64(i)), run, node, ltime.FromRaw(uint64(i+1)), eventlog.NodeStarted)
	}
	return events
}

func TestTraceReader_Empty(t *testing.T) {
	r := NewTraceReader()
	require.False(t, r.HasMore())
	require.Equal(t, 0, r.Remaining())
	require.Equal(t, 0, r.Total())

	_, err := r.Next()
	require.Error(t, err)
}

func TestTraceReader_FromEvents(t *testing.T) {
	run, node := sampleRun(t)
	events := sampleEvents(run, node, 2)
	r := FromEvents(events)

	require.Equal(t, 2, r.Total())
	require.Equal(t, 2, r.Remaining())
	require.True(t, r.HasMore())
}

func TestTraceReader_NextAdvances(t *testing.T) {
	run, node := sampleRun(t)
	events := sampleEvents(run, node, 1)
	r := FromEvents(events)

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, eventlog.NodeStarted, ev.Kind)
	require.False(t, r.HasMore())

	_, err = r.Next()
	require.Error(t, err)
	require.Equal(t, ferrors.KindValidation, ferrors.KindOf(err))
}

func TestTraceReader_PeekDoesNotConsume(t *testing.T) {
	run, node := sampleRun(t)
	events := sampleEvents(run, node, 1)
	r := FromEvents(events)

	_, err := r.Peek()
	require.NoError(t, err)
	require.Equal(t, 1, r.Remaining(), "peek must not consume")
}

func TestTraceReader_SeekOutOfBoundsFails(t *testing.T) {
	run, node := sampleRun(t)
	r := FromEvents(sampleEvents(run, node, 3))

	require.NoError(t, r.Seek(3))
	err := r.Seek(4)
	require.Error(t, err)
	require.Equal(t, ferrors.KindValidation, ferrors.KindOf(err))
}

func TestTraceReader_ResetRewinds(t *testing.T) {
	run, node := sampleRun(t)
	r := FromEvents(sampleEvents(run, node, 2))

	_, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 1, r.Position())

	r.Reset()
	require.Equal(t, 0, r.Position())
	require.True(t, r.HasMore())
}
