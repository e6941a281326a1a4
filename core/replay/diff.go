package replay

import (
	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/eventlog"
)

// DivergenceReport pinpoints the first index at which two logs
// disagree, naming both sides' event hash and reconstructed
// post-state hash at that index (spec.md §4.7).
type DivergenceReport struct {
	Index          int
	LeftEventHash  chash.Hash
	RightEventHash chash.Hash
	LeftStateHash  chash.Hash
	RightStateHash chash.Hash
}

// Diverged reports whether a divergence was found.
func (r *DivergenceReport) Diverged() bool {
	return r != nil
}

// Diff compares left and right event-by-event and returns the first
// divergence, or nil if one is a prefix of (or equal to) the other up
// to the point both were produced. The result is stable: it is a pure
// function of the two logs' contents, never of ambient iteration order
// (spec.md §4.7).
func Diff(left, right *eventlog.Log) (*DivergenceReport, error) {
	n := left.Len()
	if right.Len() < n {
		n = right.Len()
	}

	leftState := NewState(left.RunID())
	rightState := NewState(right.RunID())

	for i := 0; i < n; i++ {
		le, err := left.At(i)
		if err != nil {
			return nil, err
		}
		re, err := right.At(i)
		if err != nil {
			return nil, err
		}

		leftState.Apply(le)
		rightState.Apply(re)

		leftHash := chash.Compute(mustEncode(le))
		rightHash := chash.Compute(mustEncode(re))

		if leftHash != rightHash || leftState.LastPostHash != rightState.LastPostHash {
			return &DivergenceReport{
				Index:          i,
				LeftEventHash:  leftHash,
				RightEventHash: rightHash,
				LeftStateHash:  leftState.LastPostHash,
				RightStateHash: rightState.LastPostHash,
			}, nil
		}
	}
	return nil, nil
}

// mustEncode re-derives an event's canonical bytes for hash comparison.
// Encode failures are impossible for an event already admitted to a
// Log (it was decoded from exactly this wire form), so a failure here
// indicates in-memory corruption; that path returns an empty digest
// input rather than panicking, which Diff's hash comparison still
// treats correctly as "differs from any well-formed event."
func mustEncode(ev eventlog.Event) []byte {
	b, err := ev.Encode()
	if err != nil {
		return nil
	}
	return b
}
