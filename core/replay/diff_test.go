package replay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

func openLog(t *testing.T, name string, run ids.RunId) *eventlog.Log {
	t.Helper()
	log, err := eventlog.Open(filepath.Join(t.TempDir(), name), run)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func appendN(t *testing.T, log *eventlog.Log, run ids.RunId, node ids.NodeId, payloads ...string) {
	t.Helper()
	for i, p := range payloads {
		ev := eventlog.New(ids.NewEventId(run, uint64(i)), run, node, ltime.FromRaw(uint64(i+1)), eventlog.BlobStored).
			WithPayload([]byte(p))
		_, err := log.Append(ev)
		require.NoError(t, err)
	}
}

func TestDiff_IdenticalLogsNeverDiverge(t *testing.T) {
	run := ids.NewRunId("diff-identical")
	node := ids.NewNodeId(run, "n1")

	left := openLog(t, "left", run)
	right := openLog(t, "right", run)
	appendN(t, left, run, node, "a", "b", "c")
	appendN(t, right, run, node, "a", "b", "c")

	report, err := Diff(left, right)
	require.NoError(t, err)
	require.Nil(t, report)
}

func TestDiff_FindsFirstDivergence(t *testing.T) {
	run := ids.NewRunId("diff-divergent")
	node := ids.NewNodeId(run, "n1")

	left := openLog(t, "left", run)
	right := openLog(t, "right", run)
	appendN(t, left, run, node, "a", "b", "c")
	appendN(t, right, run, node, "a", "X", "c")

	report, err := Diff(left, right)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.True(t, report.Diverged())
	require.Equal(t, 1, report.Index)
	require.NotEqual(t, report.LeftEventHash, report.RightEventHash)
}

func TestDiff_StopsAtShorterLog(t *testing.T) {
	run := ids.NewRunId("diff-prefix")
	node := ids.NewNodeId(run, "n1")

	left := openLog(t, "left", run)
	right := openLog(t, "right", run)
	appendN(t, left, run, node, "a", "b")
	appendN(t, right, run, node, "a", "b", "c")

	report, err := Diff(left, right)
	require.NoError(t, err)
	require.Nil(t, report, "a shared prefix is not a divergence")
}
