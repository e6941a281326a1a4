package policy

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/ids"
)

// Verdict is the outcome of a policy decision.
type Verdict int

const (
	Deny Verdict = iota
	Allow
)

func (v Verdict) String() string {
	if v == Allow {
		return "Allow"
	}
	return "Deny"
}

// CompositionMode selects how a rule's patterns combine.
type CompositionMode int

const (
	AllOf CompositionMode = iota
	AnyOf
)

// Rule is one compiled policy rule: a named composition of patterns
// that, if matched, yields Effect.
type Rule struct {
	Name     string
	Effect   Verdict
	Mode     CompositionMode
	Patterns []string
}

// Policy is a compiled, versioned, ordered list of rules. Rules are
// evaluated in order; the first matching rule's effect wins.
type Policy struct {
	Version string
	Rules   []Rule
}

// Request is one decision request.
type Request struct {
	NodeID     ids.NodeId
	Capability capability.Capability
	Context    MatchContext
}

// Proof is the structured record naming the policy version, the
// matched rule(s), the bound variables at decision time, and the
// input capability (spec.md §4.4).
type Proof struct {
	PolicyVersion string
	MatchedRules  []string
	BoundVars     map[string]string
	Capability    capability.Capability
}

// Decision is the output of Decide: a verdict plus its proof.
type Decision struct {
	Verdict Verdict
	Proof   Proof
}

// Engine evaluates Requests against a compiled Policy, with a
// read-mostly decision cache (spec.md §5: "Policy caches are
// read-mostly; updates invalidate the cache atomically").
type Engine struct {
	policy  Policy
	matcher Matcher
	cache   *lru.Cache
}

// NewEngine compiles an Engine over policy with a bounded decision
// cache of cacheSize entries.
func NewEngine(policy Policy, cacheSize int) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{policy: policy, matcher: NewMatcher(), cache: cache}, nil
}

// cacheKey must be stable across identical requests so the cache never
// returns a decision for the wrong node/capability pair.
func cacheKey(req Request) string {
	return fmt.Sprintf("%s|%s", req.NodeID.String(), req.Capability.String())
}

// Invalidate clears the decision cache, e.g. after a policy reload.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

// Decide evaluates req against the compiled policy, deterministically:
// rules are walked in declared order, the first match wins, and ties
// within a rule's pattern set resolve via Matcher's sorted variable
// iteration. A request with no matching rule denies by default.
func (e *Engine) Decide(req Request) Decision {
	key := cacheKey(req)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(Decision)
	}

	ctx := req.Context.WithCapability(req.Capability)
	decision := Decision{
		Verdict: Deny,
		Proof: Proof{
			PolicyVersion: e.policy.Version,
			BoundVars:     map[string]string{},
			Capability:    req.Capability,
		},
	}

	for _, rule := range e.policy.Rules {
		var result MatchResult
		switch rule.Mode {
		case AllOf:
			result = e.matcher.MatchAll(rule.Patterns, ctx)
		case AnyOf:
			result = e.matcher.MatchAny(rule.Patterns, ctx)
		}
		if result.Matched {
			decision.Verdict = rule.Effect
			decision.Proof.MatchedRules = []string{rule.Name}
			decision.Proof.BoundVars = result.Captures
			break
		}
	}

	e.cache.Add(key, decision)
	return decision
}

// sortedRuleNames is a deterministic helper for diagnostics/inspection:
// the policy's rule names in sorted order.
func (p Policy) sortedRuleNames() []string {
	names := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}
