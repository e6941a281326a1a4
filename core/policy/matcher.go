// Package policy implements the Policy / Capability Engine (C4): a
// pure, deterministic pattern matcher, a redactor for sensitive
// payload fields, and a decision engine that returns (and caches)
// decisions without logging them; the caller that admits the effect
// (core/scheduler) logs the PolicyDecision. Grounded on cathedral_policy::matcher
// and cathedral_policy::redact.
package policy

import (
	"sort"
	"strings"

	"github.com/cathedral-fabric/fabric/core/capability"
)

// MatchContext carries the variables bound by the run and the
// requested capability a pattern is matched against.
type MatchContext struct {
	Vars       map[string]string
	Capability capability.Capability
	HasCap     bool
}

// NewMatchContext returns an empty context.
func NewMatchContext() MatchContext {
	return MatchContext{Vars: map[string]string{}}
}

// WithVar returns a copy of ctx with an added variable binding.
func (ctx MatchContext) WithVar(key, value string) MatchContext {
	out := ctx.clone()
	out.Vars[key] = value
	return out
}

// WithCapability returns a copy of ctx with the requested capability set.
func (ctx MatchContext) WithCapability(c capability.Capability) MatchContext {
	out := ctx.clone()
	out.Capability = c
	out.HasCap = true
	return out
}

func (ctx MatchContext) clone() MatchContext {
	vars := make(map[string]string, len(ctx.Vars))
	for k, v := range ctx.Vars {
		vars[k] = v
	}
	return MatchContext{Vars: vars, Capability: ctx.Capability, HasCap: ctx.HasCap}
}

// sortedVarNames returns ctx's variable names in sorted order, so
// iteration over the map is deterministic wherever match order could
// otherwise matter.
func (ctx MatchContext) sortedVarNames() []string {
	names := make([]string, 0, len(ctx.Vars))
	for k := range ctx.Vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MatchResult is the outcome of one pattern match: whether it matched,
// and any variable captures it produced.
type MatchResult struct {
	Matched  bool
	Captures map[string]string
}

func noMatch() MatchResult {
	return MatchResult{Captures: map[string]string{}}
}

func matched(captures map[string]string) MatchResult {
	if captures == nil {
		captures = map[string]string{}
	}
	return MatchResult{Matched: true, Captures: captures}
}

// Matcher evaluates patterns against a MatchContext. Patterns are
// literal, the wildcard `*`, or a variable bind `$name` (spec.md
// §4.4) — no regex engine, whose ordering can depend on locale.
type Matcher struct{}

// NewMatcher returns a Matcher.
func NewMatcher() Matcher { return Matcher{} }

// MatchPattern evaluates a single pattern.
func (Matcher) MatchPattern(pattern string, ctx MatchContext) MatchResult {
	if pattern == "*" {
		return matched(nil)
	}

	if strings.HasPrefix(pattern, "$") {
		varName := pattern[1:]
		if value, ok := ctx.Vars[varName]; ok {
			return matched(map[string]string{varName: value})
		}
		return noMatch()
	}

	if ctx.HasCap && strings.Contains(ctx.Capability.String(), pattern) {
		return matched(nil)
	}

	for _, name := range ctx.sortedVarNames() {
		if strings.Contains(ctx.Vars[name], pattern) {
			return matched(nil)
		}
	}

	return noMatch()
}

// MatchAll evaluates patterns as a conjunction: every pattern must
// match; captures from all patterns are merged. Short-circuits on the
// first non-match.
func (m Matcher) MatchAll(patterns []string, ctx MatchContext) MatchResult {
	captures := map[string]string{}
	for _, p := range patterns {
		r := m.MatchPattern(p, ctx)
		if !r.Matched {
			return noMatch()
		}
		for k, v := range r.Captures {
			captures[k] = v
		}
	}
	return matched(captures)
}

// MatchAny evaluates patterns as a disjunction: short-circuits on the
// first match.
func (m Matcher) MatchAny(patterns []string, ctx MatchContext) MatchResult {
	for _, p := range patterns {
		r := m.MatchPattern(p, ctx)
		if r.Matched {
			return r
		}
	}
	return noMatch()
}
