package guardian

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Rule is a single compiled detection rule. Rules are immutable once built;
// the detector swaps whole rule slices instead of mutating them in place.
type Rule struct {
	ID       string
	Category Category
	Severity Severity

	re *regexp.Regexp
}

// Match records one rule hit against a piece of text.
type Match struct {
	RuleID   string   `json:"rule_id"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of ValidateInput.
type ValidationResult struct {
	Valid    bool
	Severity Severity
	Threats  []Match
}

// Detector scans text against an immutable snapshot of regex rules. Reads
// never lock: the active rule set lives in an atomic.Value and reloads swap
// a fresh copy, so concurrent evaluations never observe a half-updated set.
type Detector struct {
	rules atomic.Value // []Rule
}

// NewDetector returns a detector with an empty rule set. Call
// LoadDefaultPatterns before first use.
func NewDetector() *Detector {
	d := &Detector{}
	d.rules.Store([]Rule{})
	return d
}

// LoadDefaultPatterns installs the built-in rule set, replacing whatever is
// currently active (including operator-added rules).
func (d *Detector) LoadDefaultPatterns() {
	d.rules.Store(defaultRules())
}

// AddPattern compiles and appends a rule to a fresh copy of the active set.
// The expression must be a valid RE2 pattern and category/severity must be
// known values.
func (d *Detector) AddPattern(expr string, category Category, severity Severity) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidPattern, category)
	}
	if !severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidPattern, severity)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	cur := d.active()
	next := make([]Rule, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, Rule{
		ID:       fmt.Sprintf("%s_custom_%d", category, len(cur)),
		Category: category,
		Severity: severity,
		re:       re,
	})
	d.rules.Store(next)
	return nil
}

// SetRules replaces the active rule set atomically. Used by policy reload.
func (d *Detector) SetRules(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	d.rules.Store(cp)
}

// Rules returns the active rule snapshot. Callers must not mutate it.
func (d *Detector) Rules() []Rule {
	return d.active()
}

func (d *Detector) active() []Rule {
	return d.rules.Load().([]Rule)
}

// Detect is the fast path: it returns on the first matching rule in the
// fixed iteration order. Empty input never matches.
func (d *Detector) Detect(text string) (bool, Category, Severity) {
	if text == "" {
		return false, "", ""
	}
	for _, r := range d.active() {
		if r.re.MatchString(text) {
			return true, r.Category, r.Severity
		}
	}
	return false, "", ""
}

// DetectAll returns every rule hit in rule-iteration order.
func (d *Detector) DetectAll(text string) []Match {
	if text == "" {
		return nil
	}
	var out []Match
	for _, r := range d.active() {
		if r.re.MatchString(text) {
			out = append(out, Match{RuleID: r.ID, Category: r.Category, Severity: r.Severity})
		}
	}
	return out
}

// ValidateInput applies the length bound before any scanning so oversized
// payloads never reach the regex engine, then reports all matches. The
// reported severity is the maximum across matches; the first match decides
// the leading threat entry (deterministic tie-break).
func (d *Detector) ValidateInput(text string, maxLen int) ValidationResult {
	if maxLen > 0 && len(text) > maxLen {
		return ValidationResult{Valid: false, Severity: SeverityWarning}
	}

	threats := d.DetectAll(text)
	if len(threats) == 0 {
		return ValidationResult{Valid: true, Severity: SeverityInfo}
	}

	sev := threats[0].Severity
	for _, m := range threats[1:] {
		sev = MaxSeverity(sev, m.Severity)
	}
	return ValidationResult{Valid: false, Severity: sev, Threats: threats}
}

// SanitizeInput strips matched spans from the text. This is a best-effort
// cleanup for display and storage, not a security boundary on its own.
func (d *Detector) SanitizeInput(text string) string {
	if text == "" {
		return text
	}
	for _, r := range d.active() {
		if r.Category == CategorySensitiveData {
			text = r.re.ReplaceAllString(text, "<redacted>")
		} else {
			text = r.re.ReplaceAllString(text, "")
		}
	}
	return text
}
