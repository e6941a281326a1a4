// Package ids defines the opaque 16-byte identifier types used across the
// determinism kernel: RunId, NodeId, EventId, WorkerId, ClusterId.
//
// Identifiers must be generated deterministically within a run — never
// from wall clock or system randomness (spec.md §3). We derive them with
// uuid.NewSHA1, a deterministic namespaced construction (RFC 4122 v5);
// the random v4 constructor (uuid.New) must never be called from this
// package.
package ids

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ID is a 16-byte opaque identifier with a stable textual form.
type ID [16]byte

// Zero is the all-zero identifier, used as a sentinel for "no parent".
var Zero ID

// String renders the canonical lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the identifier's raw bytes.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether this is the zero sentinel.
func (id ID) IsZero() bool {
	return id == Zero
}

// Parse decodes the canonical hex form produced by String.
func Parse(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "parse id")
	}
	if len(b) != len(id) {
		return id, errors.Errorf("parse id: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// namespace roots each id kind under a distinct RFC 4122 namespace so
// RunId("x") and NodeId("x") never collide even with identical derivation
// inputs.
type namespace uuid.UUID

var (
	runNamespace     = namespace(uuid.NewSHA1(uuid.Nil, []byte("cathedral.fabric/run")))
	nodeNamespace    = namespace(uuid.NewSHA1(uuid.Nil, []byte("cathedral.fabric/node")))
	eventNamespace   = namespace(uuid.NewSHA1(uuid.Nil, []byte("cathedral.fabric/event")))
	workerNamespace  = namespace(uuid.NewSHA1(uuid.Nil, []byte("cathedral.fabric/worker")))
	clusterNamespace = namespace(uuid.NewSHA1(uuid.Nil, []byte("cathedral.fabric/cluster")))
)

// deriveFromNamespace produces a deterministic ID from a namespace and an
// arbitrary byte payload (typically parent-id bytes concatenated with a
// little-endian counter, per spec.md §9 "seed derivation").
func deriveFromNamespace(ns namespace, payload []byte) ID {
	return ID(uuid.NewSHA1(uuid.UUID(ns), payload))
}

// counterBytes encodes a counter as 8 little-endian bytes, matching the
// explicit little-endian convention spec.md §9 requires for all integer
// inputs to deterministic mixing functions.
func counterBytes(counter uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], counter)
	return b[:]
}

// RunId identifies one execution of a DAG to terminal state.
type RunId ID

func (r RunId) String() string   { return ID(r).String() }
func (r RunId) Bytes() []byte    { return ID(r).Bytes() }
func (r RunId) IsZero() bool     { return ID(r).IsZero() }

// NewRunId derives a RunId from a seed string (e.g. the workflow's
// canonical hash) so that the same DAG + seed always yields the same
// RunId, across machines and time.
func NewRunId(seedMaterial string) RunId {
	return RunId(deriveFromNamespace(runNamespace, []byte(seedMaterial)))
}

// ParseRunId parses the canonical textual form.
func ParseRunId(s string) (RunId, error) {
	id, err := Parse(s)
	return RunId(id), err
}

// NodeId identifies a node within a DAG.
type NodeId ID

func (n NodeId) String() string { return ID(n).String() }
func (n NodeId) Bytes() []byte  { return ID(n).Bytes() }
func (n NodeId) IsZero() bool   { return ID(n).IsZero() }

// NewNodeId derives a NodeId from a run and the node's declared name in
// the compiled DAG, so recompiling the same DAG produces the same ids.
func NewNodeId(run RunId, declaredName string) NodeId {
	payload := append(append([]byte{}, run.Bytes()...), []byte(declaredName)...)
	return NodeId(deriveFromNamespace(nodeNamespace, payload))
}

// ParseNodeId parses the canonical textual form.
func ParseNodeId(s string) (NodeId, error) {
	id, err := Parse(s)
	return NodeId(id), err
}

// EventId identifies a single event in the log.
type EventId ID

func (e EventId) String() string { return ID(e).String() }
func (e EventId) Bytes() []byte  { return ID(e).Bytes() }
func (e EventId) IsZero() bool   { return ID(e).IsZero() }

// NewEventId derives an EventId from the run id and a strictly increasing
// per-run event counter — never from wall clock or OS randomness.
func NewEventId(run RunId, counter uint64) EventId {
	payload := append(append([]byte{}, run.Bytes()...), counterBytes(counter)...)
	return EventId(deriveFromNamespace(eventNamespace, payload))
}

// ParseEventId parses the canonical textual form.
func ParseEventId(s string) (EventId, error) {
	id, err := Parse(s)
	return EventId(id), err
}

// WorkerId identifies an executor worker within a cluster.
type WorkerId ID

func (w WorkerId) String() string { return ID(w).String() }
func (w WorkerId) Bytes() []byte  { return ID(w).Bytes() }
func (w WorkerId) IsZero() bool   { return ID(w).IsZero() }

// NewWorkerId derives a WorkerId from a cluster id and a registration
// ordinal.
func NewWorkerId(cluster ClusterId, ordinal uint64) WorkerId {
	payload := append(append([]byte{}, cluster.Bytes()...), counterBytes(ordinal)...)
	return WorkerId(deriveFromNamespace(workerNamespace, payload))
}

// ParseWorkerId parses the canonical textual form.
func ParseWorkerId(s string) (WorkerId, error) {
	id, err := Parse(s)
	return WorkerId(id), err
}

// ClusterId identifies a cluster of workers.
type ClusterId ID

func (c ClusterId) String() string { return ID(c).String() }
func (c ClusterId) Bytes() []byte  { return ID(c).Bytes() }
func (c ClusterId) IsZero() bool   { return ID(c).IsZero() }

// NewClusterId derives a ClusterId from a stable cluster name.
func NewClusterId(name string) ClusterId {
	return ClusterId(deriveFromNamespace(clusterNamespace, []byte(name)))
}

// ParseClusterId parses the canonical textual form.
func ParseClusterId(s string) (ClusterId, error) {
	id, err := Parse(s)
	return ClusterId(id), err
}
