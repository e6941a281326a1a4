package workflow

import (
	"encoding/json"
	"os"

	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/policy"
)

// PolicyDocument is a policy.Policy's on-disk shape.
type PolicyDocument struct {
	Version string          `json:"version"`
	Rules   []RuleDocument  `json:"rules"`
}

// RuleDocument is one compiled rule's on-disk shape. Effect is "allow"
// or "deny"; Mode is "all_of" or "any_of".
type RuleDocument struct {
	Name     string   `json:"name"`
	Effect   string   `json:"effect"`
	Mode     string   `json:"mode"`
	Patterns []string `json:"patterns"`
}

// LoadPolicy reads and compiles a policy document from path into a
// policy.Policy, preserving declared rule order (spec.md §4.4's
// first-match-wins evaluation requires it).
func LoadPolicy(path string) (policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Policy{}, ferrors.Wrap(ferrors.KindNotFound, "workflow.LoadPolicy", err)
	}
	var doc PolicyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return policy.Policy{}, ferrors.Wrap(ferrors.KindInvalidEncoding, "workflow.LoadPolicy", err)
	}

	rules := make([]policy.Rule, 0, len(doc.Rules))
	for _, rd := range doc.Rules {
		effect := policy.Deny
		if rd.Effect == "allow" {
			effect = policy.Allow
		}
		mode := policy.AllOf
		if rd.Mode == "any_of" {
			mode = policy.AnyOf
		}
		rules = append(rules, policy.Rule{
			Name:     rd.Name,
			Effect:   effect,
			Mode:     mode,
			Patterns: rd.Patterns,
		})
	}
	return policy.Policy{Version: doc.Version, Rules: rules}, nil
}
