package executor

import (
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// FieldSpec names a load-bearing byte range within a tool's raw
// output, by offset and length. Bytes outside every declared field are
// dropped: normalization is byte-level only, never a text
// reinterpretation (spec.md §4.6).
type FieldSpec struct {
	Name   string
	Offset int
	Length int
}

// Schema is a tool's declared output shape: an ordered list of
// load-bearing fields. Two observably-equal outputs must normalize to
// identical bytes, so Schema must be a pure function of the tool's
// (name, version), never of the input.
type Schema struct {
	Fields []FieldSpec
}

// IdentitySchema treats the entire raw output as one load-bearing
// field, the default for tools that declare no schema.
func IdentitySchema() Schema {
	return Schema{}
}

// Normalize extracts raw's declared fields, in declaration order, and
// concatenates them. With no declared fields, raw passes through
// unchanged.
func Normalize(schema Schema, raw []byte) ([]byte, error) {
	if len(schema.Fields) == 0 {
		return raw, nil
	}
	var out []byte
	for _, f := range schema.Fields {
		if f.Offset < 0 || f.Length < 0 || f.Offset+f.Length > len(raw) {
			return nil, ferrors.New(ferrors.KindValidation, "executor.Normalize")
		}
		out = append(out, raw[f.Offset:f.Offset+f.Length]...)
	}
	return out, nil
}
