// Package eventlog implements the append-only, hash-chained event log
// (C3) — the kernel's one ground truth — grounded on cathedral_log's
// event/cursor/stream shapes and the teacher's bolt-backed append
// pattern (beacon-chain/db/kv).
package eventlog

import (
	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/codec"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

// Kind is the closed enumeration of event kinds (spec.md §3).
type Kind int

const (
	RunCreated Kind = iota
	RunStarted
	RunCompleted
	RunFailed
	NodeScheduled
	NodeStarted
	NodeCompleted
	NodeFailed
	NodeSkipped
	ToolInvoked
	ToolCompleted
	ToolFailed
	ToolTimedOut
	CapabilityCheck
	PolicyDecision
	TaskAssigned
	TaskAccepted
	TaskRejected
	SnapshotCreated
	SnapshotRestored
	BlobStored
	Heartbeat
	ErrorEvent
)

var kindNames = map[Kind]string{
	RunCreated:       "RunCreated",
	RunStarted:       "RunStarted",
	RunCompleted:     "RunCompleted",
	RunFailed:        "RunFailed",
	NodeScheduled:    "NodeScheduled",
	NodeStarted:      "NodeStarted",
	NodeCompleted:    "NodeCompleted",
	NodeFailed:       "NodeFailed",
	NodeSkipped:      "NodeSkipped",
	ToolInvoked:      "ToolInvoked",
	ToolCompleted:    "ToolCompleted",
	ToolFailed:       "ToolFailed",
	ToolTimedOut:     "ToolTimedOut",
	CapabilityCheck:  "CapabilityCheck",
	PolicyDecision:   "PolicyDecision",
	TaskAssigned:     "TaskAssigned",
	TaskAccepted:     "TaskAccepted",
	TaskRejected:     "TaskRejected",
	SnapshotCreated:  "SnapshotCreated",
	SnapshotRestored: "SnapshotRestored",
	BlobStored:       "BlobStored",
	Heartbeat:        "Heartbeat",
	ErrorEvent:       "Error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// IsTerminal reports whether this kind ends a node's or run's lifecycle.
func (k Kind) IsTerminal() bool {
	switch k {
	case RunCompleted, RunFailed, NodeCompleted, NodeFailed, NodeSkipped,
		ToolCompleted, ToolFailed, ToolTimedOut:
		return true
	default:
		return false
	}
}

// IsError reports whether this kind represents a failure outcome.
func (k Kind) IsError() bool {
	switch k {
	case RunFailed, NodeFailed, ToolFailed, ErrorEvent:
		return true
	default:
		return false
	}
}

// Event is the kernel's immutable unit of determinism (spec.md §3).
type Event struct {
	EventID        ids.EventId
	RunID          ids.RunId
	NodeID         ids.NodeId
	ParentEventID  ids.EventId // zero value means "no parent"
	HasParent      bool
	LogicalTime    ltime.LogicalTime
	Kind           Kind
	Payload        []byte
	PayloadHash    chash.Hash
	PriorStateHash chash.Hash
	HasPriorState  bool
	PostStateHash  chash.Hash
	HasPostState   bool
}

// New constructs an Event with an empty payload and no state hashes.
func New(eventID ids.EventId, runID ids.RunId, nodeID ids.NodeId, lt ltime.LogicalTime, kind Kind) Event {
	return Event{
		EventID:     eventID,
		RunID:       runID,
		NodeID:      nodeID,
		LogicalTime: lt,
		Kind:        kind,
		PayloadHash: chash.Empty(),
	}
}

// WithPayload attaches a payload, computing its hash.
func (e Event) WithPayload(payload []byte) Event {
	e.Payload = payload
	e.PayloadHash = chash.Compute(payload)
	return e
}

// WithStateHashes attaches prior/post state hashes.
func (e Event) WithStateHashes(prior, post chash.Hash) Event {
	e.PriorStateHash, e.HasPriorState = prior, true
	e.PostStateHash, e.HasPostState = post, true
	return e
}

// WithParent attaches the causal parent event.
func (e Event) WithParent(parent ids.EventId) Event {
	e.ParentEventID, e.HasParent = parent, true
	return e
}

// IsTerminal reports whether the event's kind is terminal.
func (e Event) IsTerminal() bool { return e.Kind.IsTerminal() }

// IsError reports whether the event's kind represents a failure.
func (e Event) IsError() bool { return e.Kind.IsError() }

// VerifyPayload reports whether PayloadHash == H(Payload), the
// invariant spec.md §3 requires of every event.
func (e Event) VerifyPayload() bool {
	return e.PayloadHash == chash.Compute(e.Payload)
}

// wireEvent is the RLP-encodable shape of an Event. RLP cannot encode
// Go's nil/zero-value ambiguity for "optional" fields, so presence
// travels alongside each optional value explicitly.
type wireEvent struct {
	EventID          [16]byte
	RunID            [16]byte
	NodeID           [16]byte
	HasParent        bool
	ParentEventID    [16]byte
	LogicalTime      uint64
	Kind             uint8
	Payload          []byte
	PayloadHashAlgo  uint8
	PayloadHashBytes [32]byte
	HasPriorState    bool
	PriorStateAlgo   uint8
	PriorStateBytes  [32]byte
	HasPostState     bool
	PostStateAlgo    uint8
	PostStateBytes   [32]byte
	Capabilities     []wireGrant
}

type wireGrant struct {
	Kind     string
	Argument string
}

// EncodeCapabilities is a convenience hook so callers constructing a
// CapabilityCheck/PolicyDecision payload can carry a capability set
// through the same canonical codec as the event itself.
func EncodeCapabilities(set capability.CapabilitySet) []wireGrant {
	grants := set.Grants()
	out := make([]wireGrant, len(grants))
	for i, g := range grants {
		out[i] = wireGrant{Kind: string(g.Kind), Argument: g.Argument}
	}
	return out
}

// Encode canonically encodes the event (C1).
func (e Event) Encode() ([]byte, error) {
	w := wireEvent{
		EventID:         [16]byte(ids.ID(e.EventID)),
		RunID:           [16]byte(ids.ID(e.RunID)),
		NodeID:          [16]byte(ids.ID(e.NodeID)),
		HasParent:       e.HasParent,
		LogicalTime:     e.LogicalTime.AsUint64(),
		Kind:            uint8(e.Kind),
		Payload:         e.Payload,
		PayloadHashAlgo: uint8(e.PayloadHash.Algorithm),
		HasPriorState:   e.HasPriorState,
		HasPostState:    e.HasPostState,
	}
	if e.HasParent {
		w.ParentEventID = [16]byte(ids.ID(e.ParentEventID))
	}
	w.PayloadHashBytes = e.PayloadHash.Digest
	if e.HasPriorState {
		w.PriorStateAlgo = uint8(e.PriorStateHash.Algorithm)
		w.PriorStateBytes = e.PriorStateHash.Digest
	}
	if e.HasPostState {
		w.PostStateAlgo = uint8(e.PostStateHash.Algorithm)
		w.PostStateBytes = e.PostStateHash.Digest
	}
	return codec.Encode(w)
}

// Decode decodes an Event produced by Encode.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := codec.Decode(data, &w); err != nil {
		return Event{}, err
	}
	e := Event{
		EventID:     ids.EventId(ids.ID(w.EventID)),
		RunID:       ids.RunId(ids.ID(w.RunID)),
		NodeID:      ids.NodeId(ids.ID(w.NodeID)),
		HasParent:   w.HasParent,
		LogicalTime: ltime.FromRaw(w.LogicalTime),
		Kind:        Kind(w.Kind),
		Payload:     w.Payload,
		PayloadHash: chash.Hash{Algorithm: chash.Algorithm(w.PayloadHashAlgo), Digest: w.PayloadHashBytes},
	}
	if w.HasParent {
		e.ParentEventID = ids.EventId(ids.ID(w.ParentEventID))
	}
	if w.HasPriorState {
		e.HasPriorState = true
		e.PriorStateHash = chash.Hash{Algorithm: chash.Algorithm(w.PriorStateAlgo), Digest: w.PriorStateBytes}
	}
	if w.HasPostState {
		e.HasPostState = true
		e.PostStateHash = chash.Hash{Algorithm: chash.Algorithm(w.PostStateAlgo), Digest: w.PostStateBytes}
	}
	return e, nil
}
