package eventlog

import "github.com/cathedral-fabric/fabric/core/codec"

// FailureCause is the canonical payload shape for NodeFailed, ToolFailed,
// ToolTimedOut, and RunFailed events: the ferrors.Kind string that
// caused the failure, plus the fuel meter's consumed amount at the
// point of failure (0 when fuel wasn't the resource at issue).
type FailureCause struct {
	Reason   string
	Consumed uint64
}

// EncodeFailureCause canonically encodes a failure cause for use as an
// event payload (spec.md §7, §8-S5).
func EncodeFailureCause(reason string, consumed uint64) []byte {
	encoded, err := codec.Encode(FailureCause{Reason: reason, Consumed: consumed})
	if err != nil {
		// FailureCause is a fixed, RLP-safe shape: a string and a uint64
		// can never fail to encode.
		panic(err)
	}
	return encoded
}

// DecodeFailureCause decodes a payload produced by EncodeFailureCause.
func DecodeFailureCause(payload []byte) (FailureCause, error) {
	var fc FailureCause
	err := codec.Decode(payload, &fc)
	return fc, err
}
