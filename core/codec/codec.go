// Package codec implements the kernel's canonical, versioned wire
// format (C1): a one-byte format-version prefix followed by an RLP
// payload. RLP already satisfies the contract spec.md §4.1 demands —
// fixed endianness, fixed integer widths, no floating point, no
// implementation-dependent padding — so it is used directly rather
// than hand-rolling a new TLV scheme, grounded on the encode/decode
// contract documented by cathedral_log::event (CanonicalEncode) and
// realized with github.com/ethereum/go-ethereum/rlp.
package codec

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// FormatVersion is the current wire format version. Bumping it forces
// a hash-chain boundary (spec.md §4.1): old bytes must never be
// reinterpreted under a new version.
const FormatVersion byte = 1

// Encode canonically encodes v: a one-byte format version followed by
// v's RLP encoding. v must be RLP-encodable (structs of uints, bytes,
// strings, slices, and nested such structs — no maps, no floats).
func Encode(v interface{}) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "codec.Encode", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, FormatVersion)
	out = append(out, payload...)
	return out, nil
}

// Decode decodes data produced by Encode into out, which must be a
// pointer to a value of the same shape passed to Encode.
func Decode(data []byte, out interface{}) error {
	if len(data) == 0 {
		return ferrors.New(ferrors.KindInvalidEncoding, "codec.Decode")
	}
	version := data[0]
	if version != FormatVersion {
		return ferrors.Wrap(ferrors.KindInvalidEncoding, "codec.Decode",
			errors.Errorf("unsupported format version %d", version))
	}
	if err := rlp.DecodeBytes(data[1:], out); err != nil {
		return ferrors.Wrap(ferrors.KindInvalidEncoding, "codec.Decode", err)
	}
	return nil
}

// EncodeRaw produces the RLP payload alone, without the format-version
// prefix, for callers composing a larger canonical structure (e.g. a
// CapabilitySet nested inside an Event payload).
func EncodeRaw(v interface{}) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "codec.EncodeRaw", err)
	}
	return payload, nil
}

// DecodeRaw decodes a bare RLP payload with no format-version prefix.
func DecodeRaw(data []byte, out interface{}) error {
	if err := rlp.DecodeBytes(data, out); err != nil {
		return ferrors.Wrap(ferrors.KindInvalidEncoding, "codec.DecodeRaw", err)
	}
	return nil
}
