package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/policy"
)

// allowAll is a Decider that allows every request.
type allowAll struct{}

func (allowAll) Decide(req policy.Request) policy.Decision {
	return policy.Decision{Verdict: policy.Allow}
}

// denyCapability denies any request for a specific capability kind.
type denyCapability struct {
	kind capability.Kind
}

func (d denyCapability) Decide(req policy.Request) policy.Decision {
	if req.Capability.Kind == d.kind {
		return policy.Decision{Verdict: policy.Deny}
	}
	return policy.Decision{Verdict: policy.Allow}
}

// recordingSink is an EventSink that keeps every appended event, for
// tests asserting what the scheduler logs on its own.
type recordingSink struct {
	events []eventlog.Event
}

func (r *recordingSink) Append(ev eventlog.Event) (eventlog.Link, error) {
	r.events = append(r.events, ev)
	return eventlog.Link{}, nil
}

func newScheduler(t *testing.T, d *dag.DAG, decider Decider, concurrency int) *Scheduler {
	t.Helper()
	s, err := New(d, decider, concurrency, ids.RunId{}, nil, nil)
	require.NoError(t, err)
	return s
}

func buildLinearDAG(t *testing.T) (*dag.DAG, ids.NodeId, ids.NodeId, ids.NodeId) {
	t.Helper()
	run := ids.NewRunId("scheduler-linear")
	a := ids.NewNodeId(run, "a")
	b := ids.NewNodeId(run, "b")
	c := ids.NewNodeId(run, "c")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: a, Name: "a", Kind: dag.NodeInput}))
	require.NoError(t, d.AddNode(dag.Node{ID: b, Name: "b", Kind: dag.NodeCompute}))
	require.NoError(t, d.AddNode(dag.Node{ID: c, Name: "c", Kind: dag.NodeOutput}))
	require.NoError(t, d.AddEdge(dag.Edge{From: a, To: b}))
	require.NoError(t, d.AddEdge(dag.Edge{From: b, To: c}))
	d.SetEntryNodes(a)
	return d, a, b, c
}

func TestScheduler_LinearDAGRunsInOrder(t *testing.T) {
	d, a, b, c := buildLinearDAG(t)
	s := newScheduler(t, d, allowAll{}, 0)

	next, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, a, next)

	_, err = s.Next()
	require.Error(t, err, "b is not yet ready until a completes")

	require.NoError(t, s.Running(a))
	require.NoError(t, s.Complete(a))

	next, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, b, next)

	require.NoError(t, s.Complete(b))
	next, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, c, next)

	require.NoError(t, s.Complete(c))
	require.True(t, s.Done())
}

func TestScheduler_TieBreakByNodeID(t *testing.T) {
	run := ids.NewRunId("scheduler-tiebreak")
	n1 := ids.NewNodeId(run, "n1")
	n2 := ids.NewNodeId(run, "n2")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: n1, Name: "n1", Kind: dag.NodeInput}))
	require.NoError(t, d.AddNode(dag.Node{ID: n2, Name: "n2", Kind: dag.NodeInput}))
	d.SetEntryNodes(n1, n2)

	s := newScheduler(t, d, allowAll{}, 0)

	var want ids.NodeId
	if n1.String() < n2.String() {
		want = n1
	} else {
		want = n2
	}

	got, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, want, got, "same-depth ties resolve by node_id byte order")
}

func TestScheduler_CapabilityDenialBlocksReadiness(t *testing.T) {
	run := ids.NewRunId("scheduler-capdenied")
	n1 := ids.NewNodeId(run, "n1")
	cap := capability.New(capability.KindNetConnect, "example.com:443")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: n1, Name: "n1", Kind: dag.NodeInput, Capability: capability.NewSet(cap)}))
	d.SetEntryNodes(n1)

	sink := &recordingSink{}
	seq := uint64(0)
	nextID := func() ids.EventId {
		id := ids.NewEventId(run, seq)
		seq++
		return id
	}

	s, err := New(d, denyCapability{kind: capability.KindNetConnect}, 0, run, sink, nextID)
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err)
	require.Equal(t, ferrors.KindNotFound, ferrors.KindOf(err))

	require.Equal(t, Failed, s.Status(n1), "a denied capability settles the node straight to Failed, never leaving it Pending")
	require.True(t, s.Done(), "a single node denied on entry leaves nothing else to schedule")
	require.True(t, s.HasCapabilityDenial())

	require.Len(t, sink.events, 2, "one PolicyDecision, then one NodeFailed")
	require.Equal(t, eventlog.PolicyDecision, sink.events[0].Kind)
	require.Equal(t, []byte{0}, sink.events[0].Payload)
	require.Equal(t, eventlog.NodeFailed, sink.events[1].Kind)
	cause, err := eventlog.DecodeFailureCause(sink.events[1].Payload)
	require.NoError(t, err)
	require.Equal(t, ferrors.KindCapabilityDenied.String(), cause.Reason)
}

func TestScheduler_OptionalEdgeSkipDoesNotBlockDownstream(t *testing.T) {
	run := ids.NewRunId("scheduler-optional")
	a := ids.NewNodeId(run, "a")
	b := ids.NewNodeId(run, "b")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: a, Name: "a", Kind: dag.NodeInput}))
	require.NoError(t, d.AddNode(dag.Node{ID: b, Name: "b", Kind: dag.NodeOutput}))
	require.NoError(t, d.AddEdge(dag.Edge{From: a, To: b, Optional: true}))
	d.SetEntryNodes(a)

	s := newScheduler(t, d, allowAll{}, 0)
	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Skip(a))

	next, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, b, next, "an optional predecessor's Skip still satisfies downstream readiness")
}

func TestScheduler_RequiredEdgeFailureCascadesSkip(t *testing.T) {
	run := ids.NewRunId("scheduler-cascade")
	a := ids.NewNodeId(run, "a")
	b := ids.NewNodeId(run, "b")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: a, Name: "a", Kind: dag.NodeInput}))
	require.NoError(t, d.AddNode(dag.Node{ID: b, Name: "b", Kind: dag.NodeOutput}))
	require.NoError(t, d.AddEdge(dag.Edge{From: a, To: b}))
	d.SetEntryNodes(a)

	s := newScheduler(t, d, allowAll{}, 0)
	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Fail(a))

	require.Equal(t, Skipped, s.Status(b))
	require.True(t, s.Done())
}

func TestScheduler_ConcurrencyCeilingDelaysDispatch(t *testing.T) {
	run := ids.NewRunId("scheduler-backpressure")
	a := ids.NewNodeId(run, "a")
	b := ids.NewNodeId(run, "b")

	d := dag.New()
	require.NoError(t, d.AddNode(dag.Node{ID: a, Name: "a", Kind: dag.NodeInput}))
	require.NoError(t, d.AddNode(dag.Node{ID: b, Name: "b", Kind: dag.NodeInput}))
	d.SetEntryNodes(a, b)

	s := newScheduler(t, d, allowAll{}, 1)
	first, err := s.Next()
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err, "concurrency ceiling of 1 blocks a second dispatch")

	require.NoError(t, s.Complete(first))
	_, err = s.Next()
	require.NoError(t, err, "completing the in-flight node frees a slot")
}

func TestScheduler_CancelIsIdempotentAndBlocksSelection(t *testing.T) {
	d, _, _, _ := buildLinearDAG(t)
	s := newScheduler(t, d, allowAll{}, 0)

	s.Cancel()
	s.Cancel()
	require.True(t, s.Cancelled())

	_, err := s.Next()
	require.Error(t, err)
	require.Equal(t, ferrors.KindCancelled, ferrors.KindOf(err))
}

func TestScheduler_TickIsMonotonic(t *testing.T) {
	d, _, _, _ := buildLinearDAG(t)
	s := newScheduler(t, d, allowAll{}, 0)

	t1 := s.Tick()
	t2 := s.Tick()
	require.Less(t, t1.AsUint64(), t2.AsUint64())
}
