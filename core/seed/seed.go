// Package seed implements deterministic seed derivation and PRNG
// construction, grounded on cathedral_sim::seed::SimSeed. Random
// values inside a run come only from a seeded stream cipher keyed by
// this derivation — never from wall-clock time or OS entropy (spec.md
// §5), so SourceRandom (the Rust original's non-deterministic variant)
// is deliberately not ported.
package seed

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"

	"github.com/cathedral-fabric/fabric/core/ids"
)

// fnvOffsetBasis and fnvPrime are the FNV-1a 64-bit constants, ported
// verbatim from cathedral_sim::seed::FnvHasher.
const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

// fnvHasher mixes bytes into a running FNV-1a hash.
type fnvHasher struct {
	hash uint64
}

func newFnvHasher() fnvHasher {
	return fnvHasher{hash: fnvOffsetBasis}
}

func (h *fnvHasher) write(b []byte) {
	for _, c := range b {
		h.hash ^= uint64(c)
		h.hash *= fnvPrime
	}
}

// writeUint64 mixes in n's explicit little-endian byte encoding, the
// convention spec.md §9 requires for all integer inputs to
// deterministic mixing functions.
func (h *fnvHasher) writeUint64(n uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	h.write(b[:])
}

func (h *fnvHasher) finish() uint64 {
	return h.hash
}

// Source names where a base seed value comes from. FromTimestamp
// exists for completeness with the source's variant set but callers
// must supply the timestamp explicitly — it is never read from the
// wall clock internally.
type Source struct {
	kind    sourceKind
	literal uint64
	str     string
	node    ids.NodeId
}

type sourceKind int

const (
	sourceLiteral sourceKind = iota
	sourceFromString
	sourceFromNode
	sourceTimestamp
)

// FromLiteral builds a Source from a literal seed value.
func FromLiteral(v uint64) Source { return Source{kind: sourceLiteral, literal: v} }

// FromString builds a Source by hashing a string with the same
// polynomial rolling hash as cathedral_sim::seed::SeedSource::FromString.
func FromString(s string) Source { return Source{kind: sourceFromString, str: s} }

// FromNode builds a Source from the first 8 bytes of a NodeId's
// textual form, matching the original's FromNode derivation.
func FromNode(n ids.NodeId) Source { return Source{kind: sourceFromNode, node: n} }

// FromTimestamp builds a Source from an externally supplied, already
// wall-clock-free, logical or fixed timestamp value.
func FromTimestamp(ts uint64) Source { return Source{kind: sourceTimestamp, literal: ts} }

// rollingHash reproduces the original's `hash = hash*31 + byte + i` mix.
func rollingHash(s string) uint64 {
	var hash uint64
	for i := 0; i < len(s); i++ {
		hash = hash*31 + uint64(s[i])
		hash += uint64(i)
	}
	return hash
}

// ToSeed resolves a Source to its base u64 seed value.
func (s Source) ToSeed() uint64 {
	switch s.kind {
	case sourceLiteral, sourceTimestamp:
		return s.literal
	case sourceFromString:
		return rollingHash(s.str)
	case sourceFromNode:
		str := s.node.String()
		if len(str) > 8 {
			str = str[:8]
		}
		return rollingHash(str)
	default:
		return 0
	}
}

// Seed is a reproducible simulation seed: a base value, the source it
// came from, and a namespace scoping derived children.
type Seed struct {
	Value     uint64
	Source    Source
	Namespace string
}

// New derives a Seed from a Source.
func New(source Source) Seed {
	return Seed{Value: source.ToSeed(), Source: source}
}

// FromLiteralValue is a convenience constructor equivalent to
// New(FromLiteral(v)).
func FromLiteralValue(v uint64) Seed {
	return New(FromLiteral(v))
}

// WithNamespace returns a copy of s scoped to namespace.
func (s Seed) WithNamespace(namespace string) Seed {
	s.Namespace = namespace
	return s
}

// Derive mixes (seed, namespace, context) via FNV-1a into a child
// Seed. Two derivations with the same inputs produce the same child
// seed across platforms (spec.md §9).
func (s Seed) Derive(context string) Seed {
	h := newFnvHasher()
	h.writeUint64(s.Value)
	h.write([]byte(s.Namespace))
	h.write([]byte(context))
	derived := h.finish()
	return Seed{Value: derived, Source: FromLiteral(derived), Namespace: s.Namespace}
}

// Stream returns a deterministic byte stream keyed by this seed, used
// in place of the original's ChaCha8Rng — golang.org/x/crypto/chacha20
// provides the same family of stream cipher, keyed here by s.Value
// (a literal, or the FNV digest for a derived seed) rather than
// OS-seeded key material.
func (s Seed) Stream() (io.Reader, error) {
	var key [chacha20.KeySize]byte
	binary.LittleEndian.PutUint64(key[:8], s.Value)
	// The remaining key bytes are zero: determinism requires the full
	// key be a pure function of s.Value, not of any external entropy.
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	return &cipherReader{cipher: cipher}, nil
}

// cipherReader turns a keystream cipher into an io.Reader of pure
// keystream bytes (XOR of zeroes reproduces the keystream itself).
type cipherReader struct {
	cipher *chacha20.Cipher
}

func (r *cipherReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Uint64 draws one little-endian uint64 from the seed's keystream,
// the deterministic equivalent of the original's `rng.gen::<u64>()`.
func (s Seed) Uint64() (uint64, error) {
	stream, err := s.Stream()
	if err != nil {
		return 0, err
	}
	var b [8]byte
	if _, err := io.ReadFull(stream, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
