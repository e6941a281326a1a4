package policy

import "strings"

// RedactionMask is the fixed replacement for sensitive fields.
const RedactionMask = "***REDACTED***"

// RedactionRule is a single redaction rule applied, in order, to an event
// payload before it enters the log. Redaction is part of the event's
// canonical payload; the original is never written (spec.md §4.4).
type RedactionRule struct {
	Name        string
	Pattern     string
	Replacement string
}

// NewRule constructs a literal-substring redaction rule.
func NewRule(name, pattern, replacement string) RedactionRule {
	return RedactionRule{Name: name, Pattern: pattern, Replacement: replacement}
}

// Apply performs the rule's substring replacement.
func (r RedactionRule) Apply(text string) string {
	return strings.ReplaceAll(text, r.Pattern, r.Replacement)
}

// View is the result of redacting a string value: the redacted text,
// how many rules fired, and which ones (in application order).
type View struct {
	Redacted      string
	RedactedCount int
	AppliedRules  []string
}

// IsRedacted reports whether any rule fired.
func (v View) IsRedacted() bool {
	return v.RedactedCount > 0
}

// Redactor applies an ordered list of rules plus a sensitive-field
// name heuristic (password/secret/token/key substrings), grounded on
// cathedral_policy::redact::Redactor.
type Redactor struct {
	rules           []RedactionRule
	sensitiveFields map[string]bool
}

// NewRedactor returns an empty Redactor.
func NewRedactor() *Redactor {
	return &Redactor{sensitiveFields: map[string]bool{}}
}

// WithRule appends a redaction rule, applied in the order added.
func (r *Redactor) WithRule(rule RedactionRule) *Redactor {
	r.rules = append(r.rules, rule)
	return r
}

// WithSensitiveField marks a field name as always-redact.
func (r *Redactor) WithSensitiveField(field string) *Redactor {
	r.sensitiveFields[field] = true
	return r
}

// Redact applies every rule to value in order, deterministically.
func (r *Redactor) Redact(value string) View {
	redacted := value
	var applied []string
	count := 0
	for _, rule := range r.rules {
		before := redacted
		redacted = rule.Apply(redacted)
		if before != redacted {
			count++
			applied = append(applied, rule.Name)
		}
	}
	return View{Redacted: redacted, RedactedCount: count, AppliedRules: applied}
}

// RedactField redacts a named field, forcing the fixed mask for
// sensitive field names (declared, or matching the heuristic
// substrings; see IsSensitive) regardless of content.
func (r *Redactor) RedactField(fieldName, value string) View {
	if r.IsSensitive(fieldName) {
		return View{Redacted: RedactionMask, RedactedCount: 1, AppliedRules: []string{"sensitive_field:" + fieldName}}
	}
	return r.Redact(value)
}

// sensitiveSubstrings is the fixed heuristic substring set spec.md
// §4.4 names for sensitive-field detection.
var sensitiveSubstrings = []string{"password", "secret", "token", "key"}

// IsSensitive reports whether a field name is sensitive, either
// because it was declared so or because it contains one of the fixed
// heuristic substrings.
func (r *Redactor) IsSensitive(fieldName string) bool {
	if r.sensitiveFields[fieldName] {
		return true
	}
	for _, s := range sensitiveSubstrings {
		if strings.Contains(fieldName, s) {
			return true
		}
	}
	return false
}
