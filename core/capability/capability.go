// Package capability defines the typed grants that gate every side
// effect in the kernel, grounded on cathedral_core::Capability (as used
// throughout cathedral_policy::matcher) and spec.md §3's
// Capability/CapabilitySet/ResourceContract data model.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Kind names the class of grant. The set is open at the string level
// (tool authors may invent new kinds) but these are the kinds the
// kernel itself reasons about.
type Kind string

const (
	KindFsRead     Kind = "fs.read"
	KindFsWrite    Kind = "fs.write"
	KindNetConnect Kind = "net.connect"
	KindToolInvoke Kind = "tool.invoke"
)

// Capability is a typed grant, e.g. fs.read("/in") or net.connect("host:port").
type Capability struct {
	Kind     Kind
	Argument string
}

// New constructs a Capability.
func New(kind Kind, argument string) Capability {
	return Capability{Kind: kind, Argument: argument}
}

// String renders "<kind>(\"<argument>\")", the canonical textual form
// used both for logging and for policy-matcher literal comparison.
func (c Capability) String() string {
	return fmt.Sprintf("%s(%q)", c.Kind, c.Argument)
}

// Equal reports structural equality.
func (c Capability) Equal(other Capability) bool {
	return c.Kind == other.Kind && c.Argument == other.Argument
}

// Less imposes the canonical sort order: by kind, then by argument,
// byte-lexicographically. This is the order CapabilitySet encodes in.
func (c Capability) Less(other Capability) bool {
	if c.Kind != other.Kind {
		return c.Kind < other.Kind
	}
	return c.Argument < other.Argument
}

// CapabilitySet is an unordered collection of grants with a canonical
// sorted encoding — two sets with the same members always sort to the
// same sequence regardless of insertion order.
type CapabilitySet struct {
	grants []Capability
}

// NewSet builds a CapabilitySet from a slice of grants, deduplicating
// and sorting into canonical order.
func NewSet(grants ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, g := range grants {
		s.Add(g)
	}
	return s
}

// Add inserts a grant if not already present, preserving canonical order.
func (s *CapabilitySet) Add(c Capability) {
	for _, g := range s.grants {
		if g.Equal(c) {
			return
		}
	}
	s.grants = append(s.grants, c)
	sort.Slice(s.grants, func(i, j int) bool { return s.grants[i].Less(s.grants[j]) })
}

// Contains reports whether the set grants exactly this capability.
func (s CapabilitySet) Contains(c Capability) bool {
	for _, g := range s.grants {
		if g.Equal(c) {
			return true
		}
	}
	return false
}

// Grants returns the canonically sorted grants; callers must not mutate
// the returned slice.
func (s CapabilitySet) Grants() []Capability {
	return s.grants
}

// Len reports the number of distinct grants.
func (s CapabilitySet) Len() int {
	return len(s.grants)
}

// String renders the set as its sorted members joined by ", ", the
// deterministic textual form used in PolicyDecision proofs.
func (s CapabilitySet) String() string {
	parts := make([]string, len(s.grants))
	for i, g := range s.grants {
		parts[i] = g.String()
	}
	return strings.Join(parts, ", ")
}

// Bound is an optional (min, max, default) triple over a resource axis.
// A zero-value Bound with Set=false means the axis is unconstrained.
type Bound struct {
	Set     bool
	Min     uint64
	Max     uint64
	Default uint64
}

// NewBound constructs a set Bound.
func NewBound(min, max, def uint64) Bound {
	return Bound{Set: true, Min: min, Max: max, Default: def}
}

// Check reports whether value violates this bound (always false when
// the bound is unset).
func (b Bound) Check(value uint64) bool {
	if !b.Set {
		return false
	}
	return value < b.Min || value > b.Max
}

// ResourceContract specifies per-node resource bounds. Violations are
// failures, not warnings (spec.md §3).
type ResourceContract struct {
	Memory  Bound
	CPU     Bound
	Storage Bound
	Network Bound
}

// Violations returns the names of axes whose usage map violates its
// bound. usage keys are "memory", "cpu", "storage", "network"; missing
// keys are treated as zero usage.
func (rc ResourceContract) Violations(usage map[string]uint64) []string {
	var out []string
	check := func(name string, b Bound) {
		if b.Check(usage[name]) {
			out = append(out, name)
		}
	}
	check("memory", rc.Memory)
	check("cpu", rc.CPU)
	check("storage", rc.Storage)
	check("network", rc.Network)
	return out
}
