// Package ferrors defines the closed set of error kinds used throughout
// the determinism kernel, per the error handling design (spec.md §7).
package ferrors

import "fmt"

// Kind is a closed enumeration of error categories. New kinds must not be
// added without updating the propagation policy in node.Coordinator.
type Kind int

const (
	// KindInvalidEncoding covers codec decode failures.
	KindInvalidEncoding Kind = iota
	// KindHashMismatch covers content/address verification failures.
	KindHashMismatch
	// KindBrokenChain covers hash-chain validation failures.
	KindBrokenChain
	// KindInvalidId covers malformed RunId/NodeId/EventId values.
	KindInvalidId
	// KindValidation covers DAG/capability/policy validation failures.
	KindValidation
	// KindNotFound covers missing blobs, events, or runs.
	KindNotFound
	// KindAlreadyExists covers duplicate writes where uniqueness is required.
	KindAlreadyExists
	// KindCapacityExceeded covers store/log capacity limits.
	KindCapacityExceeded
	// KindTimeout covers logical-tick budget exhaustion.
	KindTimeout
	// KindCancelled covers cooperative run cancellation.
	KindCancelled
	// KindPermissionDenied covers capability/policy denials.
	KindPermissionDenied
	// KindInternal covers invariant violations that should be impossible.
	KindInternal
	// KindOutOfFuel covers fuel-meter exhaustion.
	KindOutOfFuel
	// KindMemoryExceeded covers linear-memory ceiling overruns.
	KindMemoryExceeded
	// KindUndeclaredEffect covers tools performing effects they did not declare.
	KindUndeclaredEffect
	// KindCapabilityDenied covers a specific capability check failing.
	KindCapabilityDenied
	// KindDivergence covers replay divergence between two logs.
	KindDivergence
	// KindMissingSnapshot covers a replay that cannot find a requested snapshot.
	KindMissingSnapshot
)

var kindNames = map[Kind]string{
	KindInvalidEncoding:   "invalid_encoding",
	KindHashMismatch:      "hash_mismatch",
	KindBrokenChain:       "broken_chain",
	KindInvalidId:         "invalid_id",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindAlreadyExists:     "already_exists",
	KindCapacityExceeded:  "capacity_exceeded",
	KindTimeout:           "timeout",
	KindCancelled:         "cancelled",
	KindPermissionDenied:  "permission_denied",
	KindInternal:          "internal",
	KindOutOfFuel:         "out_of_fuel",
	KindMemoryExceeded:    "memory_exceeded",
	KindUndeclaredEffect:  "undeclared_effect",
	KindCapabilityDenied:  "capability_denied",
	KindDivergence:        "divergence",
	KindMissingSnapshot:   "missing_snapshot",
}

// String renders the kind's stable textual form, usable for diffing
// across runs (no addresses, no wall times).
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the kernel's structured error type: a kind, the operation that
// produced it, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an Error wrapping an existing cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface with a stable, diffable string.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ferrors.New(KindNotFound, "")) style kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from an error, defaulting to KindInternal if the
// error is not one of ours.
func KindOf(err error) Kind {
	var fe *Error
	for err != nil {
		if v, ok := err.(*Error); ok {
			fe = v
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if fe == nil {
		return KindInternal
	}
	return fe.Kind
}

// IsRecoverable reports whether, per spec.md §7, the error should become a
// NodeFailed event with the run continuing (true) or abort the run
// immediately with RunFailed{cause=Integrity} (false).
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindBrokenChain, KindHashMismatch, KindInternal:
		return false
	default:
		return true
	}
}
