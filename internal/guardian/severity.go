package guardian

// Severity classifies how serious a finding is. Ordering matters: when
// several rules match the same text the highest severity wins.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns the numeric ordering of the severity. Unknown values rank
// below info so malformed input never outranks a real finding.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSeverity returns the more serious of the two.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Category identifies the class of threat a rule detects.
type Category string

const (
	CategorySQLInjection     Category = "sql_injection"
	CategoryXSS              Category = "xss"
	CategoryPromptInjection  Category = "prompt_injection"
	CategoryCommandInjection Category = "command_injection"
	CategoryPathTraversal    Category = "path_traversal"
	CategorySensitiveData    Category = "sensitive_data"
	CategoryCustom           Category = "custom"
)

var knownCategories = map[Category]struct{}{
	CategorySQLInjection:     {},
	CategoryXSS:              {},
	CategoryPromptInjection:  {},
	CategoryCommandInjection: {},
	CategoryPathTraversal:    {},
	CategorySensitiveData:    {},
	CategoryCustom:           {},
}

// Valid reports whether the category is one of the known classes.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}
