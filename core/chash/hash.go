// Package chash implements the kernel's tagged 32-byte digest, grounded on
// cathedral_storage::address::AddressAlgorithm. BLAKE3 is the pinned
// default per spec.md §9; SHA-256/512 are supported as optional
// algorithms for interoperability with content produced elsewhere.
package chash

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Algorithm identifies which hash function produced a digest.
type Algorithm uint8

const (
	// Blake3 is the default algorithm (spec.md §9).
	Blake3 Algorithm = iota
	// SHA256 is an optional algorithm.
	SHA256
	// SHA512 is an optional algorithm; only the first 32 bytes are kept.
	SHA512
	// Keccak256 is accepted for interop with content hashed upstream with
	// the Ethereum-style Keccak variant of SHA-3, grounded on the
	// teacher's shared/hashutil.Hash.
	Keccak256
)

func (a Algorithm) String() string {
	switch a {
	case Blake3:
		return "blake3"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	case Keccak256:
		return "keccak256"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses the lowercase textual algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "blake3":
		return Blake3, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	case "keccak256":
		return Keccak256, nil
	default:
		return 0, errors.Errorf("unknown hash algorithm: %s", s)
	}
}

// Hash is a 32-byte digest tagged with its algorithm.
type Hash struct {
	Algorithm Algorithm
	Digest    [32]byte
}

// Empty is the digest of the empty byte string under BLAKE3.
func Empty() Hash {
	return Compute(nil)
}

// Compute hashes data with the default algorithm (BLAKE3).
func Compute(data []byte) Hash {
	return ComputeWith(Blake3, data)
}

// ComputeWith hashes data with an explicit algorithm.
func ComputeWith(algo Algorithm, data []byte) Hash {
	var h Hash
	h.Algorithm = algo
	switch algo {
	case Blake3:
		h.Digest = blake3.Sum256(data)
	case SHA256:
		h.Digest = sha256.Sum256(data)
	case SHA512:
		full := sha512.Sum512(data)
		copy(h.Digest[:], full[:32])
	case Keccak256:
		d := sha3.NewLegacyKeccak256()
		d.Write(data)
		sum := d.Sum(nil)
		copy(h.Digest[:], sum)
	default:
		h.Digest = blake3.Sum256(data)
		h.Algorithm = Blake3
	}
	return h
}

// FromBytes builds a Hash from raw digest bytes under the given algorithm.
func FromBytes(algo Algorithm, b []byte) (Hash, error) {
	var h Hash
	if len(b) != 32 {
		return h, errors.Errorf("hash: want 32 bytes, got %d", len(b))
	}
	h.Algorithm = algo
	copy(h.Digest[:], b)
	return h, nil
}

// Hex returns the canonical lowercase hex form of the digest bytes alone.
func (h Hash) Hex() string {
	return hex.EncodeToString(h.Digest[:])
}

// String returns the "algo:hex" textual form shared with ContentAddress.
func (h Hash) String() string {
	return fmt.Sprintf("%s:%s", h.Algorithm, h.Hex())
}

// FromHex parses a bare hex digest under an explicit algorithm.
func FromHex(algo Algorithm, s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.Wrap(err, "decode hash hex")
	}
	return FromBytes(algo, b)
}

// Parse parses the "algo:hex" textual form.
func Parse(s string) (Hash, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			algo, err := ParseAlgorithm(s[:i])
			if err != nil {
				return Hash{}, err
			}
			return FromHex(algo, s[i+1:])
		}
	}
	return Hash{}, errors.Errorf("hash: malformed address %q", s)
}

// IsZero reports whether this is the zero-value Hash (not a computed
// digest of the empty string — callers should use Empty() for that).
func (h Hash) IsZero() bool {
	return h.Digest == [32]byte{} && h.Algorithm == Blake3
}
