package scheduler

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/prque"

	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
	"github.com/cathedral-fabric/fabric/core/policy"
)

// Decider is the capability dry-run hook the scheduler consults before
// admitting a node into the ready set (spec.md §4.5: "its capability
// check (dry-run via C4) would allow it"). *policy.Engine satisfies
// this directly.
type Decider interface {
	Decide(policy.Request) policy.Decision
}

// EventSink receives the events a capability dry-run produces directly:
// a PolicyDecision recording every check's verdict, and
// NodeFailed{cause=CapabilityDenied} when it denies — the same log
// node.Coordinator appends every other lifecycle event to (spec.md
// §4.4, invariant 6, §8-S3).
type EventSink interface {
	Append(eventlog.Event) (eventlog.Link, error)
}

// NextEventID mints the next event id in a run's sequence. Callers pass
// the same counter node.Coordinator uses for its own events so ids
// never collide.
type NextEventID func() ids.EventId

// Scheduler walks a compiled DAG and a Decider to pick, one at a time,
// the next node ready to dispatch, in the unique order spec.md §4.5
// requires: smallest (depth, node_id) among all ready nodes.
type Scheduler struct {
	mu sync.Mutex

	d       *dag.DAG
	decider Decider
	depths  map[ids.NodeId]int
	status  map[ids.NodeId]State

	ready   *prque.Prque[ids.NodeId, int64]
	inQueue map[ids.NodeId]bool

	concurrency int
	inFlight    int

	clock     ltime.LogicalTime
	cancelled bool

	runID       ids.RunId
	sink        EventSink
	nextEventID NextEventID
	capDenied   bool
}

// New constructs a Scheduler over a validated DAG, bounding concurrent
// dispatch at concurrency (0 means unbounded). sink and nextEventID
// wire the scheduler's capability dry-run into a run's event log;
// node.Coordinator always supplies its own log and event-id counter. A
// nil sink disables that logging, for tests exercising pure scheduling
// order in isolation.
func New(d *dag.DAG, decider Decider, concurrency int, runID ids.RunId, sink EventSink, nextEventID NextEventID) (*Scheduler, error) {
	s := &Scheduler{
		d:           d,
		decider:     decider,
		depths:      d.Depths(),
		status:      make(map[ids.NodeId]State),
		ready:       prque.New[ids.NodeId, int64](nil),
		inQueue:     make(map[ids.NodeId]bool),
		concurrency: concurrency,
		runID:       runID,
		sink:        sink,
		nextEventID: nextEventID,
	}
	for _, n := range d.Nodes() {
		s.status[n.ID] = Pending
	}
	for _, id := range d.EntryNodes() {
		if err := s.admitIfReady(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// admitIfReady moves id from Pending to Ready and enqueues it if every
// in-edge is satisfied (Completed, or Skipped over an optional edge)
// and its declared capability set would be allowed by the decider. A
// denied capability check settles id straight to Failed instead of
// leaving it Pending forever (spec.md §8-S3): a node can never become
// ready past a dry-run denial, so there is nothing left to wait for.
// id is otherwise left Pending; callers re-check it each time a
// dependency settles.
func (s *Scheduler) admitIfReady(id ids.NodeId) error {
	if s.status[id] != Pending {
		return nil
	}
	if !s.dependenciesSatisfied(id) {
		return nil
	}
	allowed, err := s.capabilityWouldAllow(id)
	if err != nil {
		return err
	}
	if !allowed {
		s.status[id] = Failed
		s.capDenied = true
		if err := s.logNodeFailed(id, ferrors.KindCapabilityDenied); err != nil {
			return err
		}
		return s.cascadeSkips(id)
	}
	s.status[id] = Ready
	if !s.inQueue[id] {
		s.ready.Push(id, -int64(s.depths[id]))
		s.inQueue[id] = true
	}
	return nil
}

// dependenciesSatisfied reports whether every in-edge of id has
// settled: a required edge needs its source Completed; an optional
// edge is satisfied by Completed or Skipped (spec.md §4.5).
func (s *Scheduler) dependenciesSatisfied(id ids.NodeId) bool {
	for _, e := range s.d.InEdges(id) {
		srcStatus := s.status[e.From]
		switch {
		case srcStatus == Completed:
			continue
		case e.Optional && srcStatus == Skipped:
			continue
		case srcStatus == Failed || (!e.Optional && srcStatus == Skipped):
			// A required predecessor that didn't complete forces id to
			// Skip rather than ever becoming ready.
			return false
		default:
			return false
		}
	}
	return true
}

// requiredPredecessorUnsatisfiable reports whether id can never become
// ready because a required in-edge's source failed or was skipped.
func (s *Scheduler) requiredPredecessorUnsatisfiable(id ids.NodeId) bool {
	for _, e := range s.d.InEdges(id) {
		srcStatus := s.status[e.From]
		if srcStatus == Failed && !e.Optional {
			return true
		}
		if srcStatus == Skipped && !e.Optional {
			return true
		}
	}
	return false
}

// capabilityWouldAllow dry-runs the policy engine over every capability
// id's node declares, logging a PolicyDecision event for each check in
// turn and stopping at the first denial (spec.md §4.4, §4.5).
func (s *Scheduler) capabilityWouldAllow(id ids.NodeId) (bool, error) {
	node, ok := s.d.Node(id)
	if !ok {
		return false, nil
	}
	for _, grant := range node.Capability.Grants() {
		decision := s.decider.Decide(policy.Request{
			NodeID:     id,
			Capability: grant,
			Context:    policy.NewMatchContext(),
		})
		if err := s.logPolicyDecision(id, decision); err != nil {
			return false, err
		}
		if decision.Verdict != policy.Allow {
			return false, nil
		}
	}
	return true, nil
}

// logPolicyDecision appends a PolicyDecision event immediately before
// the capability-gated effect it governs admits or denies (spec.md
// §4.4: "every decision — Allow or Deny — is encoded as a
// PolicyDecision event before the effect occurs"). The payload is the
// one-byte Allow(1)/Deny(0) encoding core/replay's state reconstruction
// already expects. A nil sink is a no-op, for tests exercising pure
// scheduling order.
func (s *Scheduler) logPolicyDecision(id ids.NodeId, decision policy.Decision) error {
	if s.sink == nil || s.nextEventID == nil {
		return nil
	}
	payload := []byte{0}
	if decision.Verdict == policy.Allow {
		payload = []byte{1}
	}
	ev := eventlog.New(s.nextEventID(), s.runID, id, s.tickLocked(), eventlog.PolicyDecision).WithPayload(payload)
	_, err := s.sink.Append(ev)
	return err
}

// logNodeFailed appends a NodeFailed event for a failure the scheduler
// settles on its own, outside node.Coordinator.dispatchNode (currently
// only a capability dry-run denial).
func (s *Scheduler) logNodeFailed(id ids.NodeId, cause ferrors.Kind) error {
	if s.sink == nil || s.nextEventID == nil {
		return nil
	}
	ev := eventlog.New(s.nextEventID(), s.runID, id, s.tickLocked(), eventlog.NodeFailed).
		WithPayload(eventlog.EncodeFailureCause(cause.String(), 0))
	_, err := s.sink.Append(ev)
	return err
}

// HasCapabilityDenial reports whether any node settled straight to
// Failed because its capability dry-run was denied. node.Coordinator
// checks this once scheduling finishes to decide whether the run as a
// whole succeeded or must surface CapabilityDenied (spec.md §8-S3).
func (s *Scheduler) HasCapabilityDenial() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capDenied
}

// cascadeSkips walks forward from a failed/skipped node, marking every
// node whose required predecessor just became unsatisfiable as
// Skipped in turn, and recursing through their dependents.
func (s *Scheduler) cascadeSkips(from ids.NodeId) error {
	for _, dep := range s.d.Dependents(from) {
		if s.status[dep] != Pending {
			continue
		}
		if s.requiredPredecessorUnsatisfiable(dep) {
			s.status[dep] = Skipped
			if err := s.cascadeSkips(dep); err != nil {
				return err
			}
			continue
		}
		if err := s.admitIfReady(dep); err != nil {
			return err
		}
	}
	return nil
}

// Cancel raises the run-scoped cancel flag. Cancel is idempotent:
// raising it twice has the same effect as once (spec.md §4.5).
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether Cancel has been called.
func (s *Scheduler) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// tickLocked advances the scheduler's logical clock assuming the
// caller already holds mu.
func (s *Scheduler) tickLocked() ltime.LogicalTime {
	s.clock = s.clock.Incremented()
	return s.clock
}

// Tick advances the scheduler's logical clock by one and returns the
// new value. Every emitted event calls this exactly
// once before it is stamped, so a batch of events for one node gets a
// distinct, monotonically increasing tick (spec.md §4.5).
func (s *Scheduler) Tick() ltime.LogicalTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

// Next selects the next node ready to dispatch, honoring the
// concurrency ceiling (backpressure delays dispatch without ever
// reordering candidates) and the cancel flag (no new node is selected
// once cancelled). It returns ferrors.KindCancelled if cancelled,
// ferrors.KindNotFound if nothing is currently selectable (the ready
// set is empty, or the concurrency ceiling is saturated).
func (s *Scheduler) Next() (ids.NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return ids.NodeId{}, ferrors.New(ferrors.KindCancelled, "scheduler.Next")
	}
	if s.concurrency > 0 && s.inFlight >= s.concurrency {
		return ids.NodeId{}, ferrors.New(ferrors.KindNotFound, "scheduler.Next")
	}
	if s.ready.Empty() {
		return ids.NodeId{}, ferrors.New(ferrors.KindNotFound, "scheduler.Next")
	}

	chosen, batch := s.popMinimalDepthBatch()
	for _, other := range batch {
		s.ready.Push(other, -int64(s.depths[other]))
	}

	s.status[chosen] = Dispatched
	s.inFlight++
	return chosen, nil
}

// popMinimalDepthBatch pops every node currently sharing the ready
// set's minimal depth, sorts them by byte-lexicographic node_id (the
// deterministic tie-break spec.md §4.5 requires), and returns the
// chosen one plus the rest of the batch to push back unchanged.
func (s *Scheduler) popMinimalDepthBatch() (ids.NodeId, []ids.NodeId) {
	first, firstPrio := s.ready.Pop()
	delete(s.inQueue, first)
	batch := []ids.NodeId{first}

	for !s.ready.Empty() {
		next, prio := s.ready.Pop()
		if prio != firstPrio {
			s.ready.Push(next, prio)
			break
		}
		delete(s.inQueue, next)
		batch = append(batch, next)
	}

	sort.Slice(batch, func(i, j int) bool {
		return batch[i].String() < batch[j].String()
	})
	return batch[0], batch[1:]
}

// Complete reports node as Completed and admits its now-satisfied
// dependents into the ready set.
func (s *Scheduler) Complete(id ids.NodeId) error {
	return s.settle(id, Completed)
}

// Fail reports node as Failed, cascading Skip to every dependent whose
// required edge from id can never now be satisfied.
func (s *Scheduler) Fail(id ids.NodeId) error {
	return s.settle(id, Failed)
}

// Skip reports node as Skipped, cascading the same way Fail does.
func (s *Scheduler) Skip(id ids.NodeId) error {
	return s.settle(id, Skipped)
}

func (s *Scheduler) settle(id ids.NodeId, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.status[id]
	if !canTransition(from, to) {
		return ferrors.New(ferrors.KindValidation, "scheduler.settle")
	}
	s.status[id] = to
	s.inFlight--
	if err := s.cascadeSkips(id); err != nil {
		return err
	}

	for _, dep := range s.d.Dependents(id) {
		if err := s.admitIfReady(dep); err != nil {
			return err
		}
	}
	return nil
}

// Running marks a dispatched node as Running (Dispatched -> Running is
// logged per spec.md §4.5, never the reverse).
func (s *Scheduler) Running(id ids.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.status[id], Running) {
		return ferrors.New(ferrors.KindValidation, "scheduler.Running")
	}
	s.status[id] = Running
	return nil
}

// Status reports a node's current lifecycle state.
func (s *Scheduler) Status(id ids.NodeId) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

// Done reports whether every node has reached a terminal state.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.status {
		if !st.IsTerminal() {
			return false
		}
	}
	return true
}
