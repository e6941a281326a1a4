package capability

import "github.com/cathedral-fabric/fabric/core/codec"

// wireCapability is the RLP-encodable shape of a Capability: RLP has
// no native sum type, so Kind travels as its string form.
type wireCapability struct {
	Kind     string
	Argument string
}

// wireSet is the RLP-encodable shape of a CapabilitySet: the grants in
// canonical sorted order. Encoding a set that is not already sorted
// would violate spec.md §4.1's "encode(v) == encode(v') iff v == v'"
// rule; Add keeps a set's grants sorted, so Encode hands them to RLP
// in stored order.
type wireSet struct {
	Grants []wireCapability
}

// Encode produces the canonical encoding of a single Capability.
func (c Capability) Encode() ([]byte, error) {
	return codec.Encode(wireCapability{Kind: string(c.Kind), Argument: c.Argument})
}

// DecodeCapability decodes a single Capability.
func DecodeCapability(data []byte) (Capability, error) {
	var w wireCapability
	if err := codec.Decode(data, &w); err != nil {
		return Capability{}, err
	}
	return Capability{Kind: Kind(w.Kind), Argument: w.Argument}, nil
}

// Encode produces the canonical encoding of a CapabilitySet: its
// members in canonical sorted order, so two sets with the same
// members always encode identically regardless of insertion order.
func (s CapabilitySet) Encode() ([]byte, error) {
	w := wireSet{Grants: make([]wireCapability, len(s.grants))}
	for i, g := range s.grants {
		w.Grants[i] = wireCapability{Kind: string(g.Kind), Argument: g.Argument}
	}
	return codec.Encode(w)
}

// DecodeSet decodes a CapabilitySet produced by Encode.
func DecodeSet(data []byte) (CapabilitySet, error) {
	var w wireSet
	if err := codec.Decode(data, &w); err != nil {
		return CapabilitySet{}, err
	}
	var s CapabilitySet
	for _, g := range w.Grants {
		s.Add(Capability{Kind: Kind(g.Kind), Argument: g.Argument})
	}
	return s, nil
}
