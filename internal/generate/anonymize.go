package generate

import "regexp"

// Rule replaces every match of Pattern in a value with Replacement.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

const (
	EmailPlaceholder = "anonymous@email.com"
	SSNPlaceholder   = "***-**-****"
)

var (
	EmailRule = Rule{
		Name:        "email",
		Pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Replacement: EmailPlaceholder,
	}
	SSNRule = Rule{
		Name:        "ssn",
		Pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Replacement: SSNPlaceholder,
	}
)

// DefaultRules returns the built-in redaction rules.
func DefaultRules() []Rule {
	return []Rule{EmailRule, SSNRule}
}

// maxPasses bounds the fixed-point loop in redact.
const maxPasses = 8

// Anonymizer redacts sensitive-looking substrings from every field,
// regardless of column name.
type Anonymizer struct {
	rules []Rule
}

// NewAnonymizer uses DefaultRules when called with no rules.
func NewAnonymizer(rules ...Rule) *Anonymizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Anonymizer{rules: rules}
}

// Anonymize rewrites row in place. Applying it twice equals applying it once.
func (a *Anonymizer) Anonymize(row Row) {
	for k, v := range row {
		row[k] = a.redact(v)
	}
}

// redact applies every rule until the value stops changing, since a
// replacement can join text into a new match.
func (a *Anonymizer) redact(s string) string {
	for range maxPasses {
		next := s
		for _, r := range a.rules {
			next = r.Pattern.ReplaceAllLiteralString(next, r.Replacement)
		}
		if next == s {
			return s
		}
		s = next
	}
	return s
}
