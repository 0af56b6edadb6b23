package guardian

import (
	"regexp"
)

// defaultRules returns the built-in detection rules. Rule order is fixed and
// meaningful: Detect reports the category of the first matching rule, so the
// most specific rules per category come first. All expressions are RE2, which
// guarantees linear-time matching on adversarial input.
func defaultRules() []Rule {
	return []Rule{
		// SQL injection
		{ID: "sql_stacked_drop", Category: CategorySQLInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i);\s*DROP\s+(TABLE|DATABASE)\b`)},
		{ID: "sql_stacked_statement", Category: CategorySQLInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i);\s*(DELETE\s+FROM|UPDATE\s+\w+\s+SET|INSERT\s+INTO|TRUNCATE\s+TABLE)\b`)},
		{ID: "sql_union_select", Category: CategorySQLInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
		{ID: "sql_or_true", Category: CategorySQLInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(OR|AND)\s+['"]?\d+['"]?\s*=\s*['"]?\d+['"]?`)},
		{ID: "sql_comment_bypass", Category: CategorySQLInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)['"]\s*(--|#|/\*)`)},
		{ID: "sql_time_blind", Category: CategorySQLInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(SLEEP|PG_SLEEP|BENCHMARK)\s*\(`)},
		{ID: "sql_schema_probe", Category: CategorySQLInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(INFORMATION_SCHEMA|sysobjects|sys\.tables)\b`)},
		{ID: "sql_file_access", Category: CategorySQLInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)\b(LOAD_FILE\s*\(|INTO\s+(OUT|DUMP)FILE\b)`)},

		// Cross-site scripting
		{ID: "xss_script_tag", Category: CategoryXSS, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)<\s*script\b`)},
		{ID: "xss_event_handler", Category: CategoryXSS, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`)},
		{ID: "xss_js_uri", Category: CategoryXSS, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)javascript\s*:`)},
		{ID: "xss_iframe", Category: CategoryXSS, Severity: SeverityWarning,
			re: regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`)},
		{ID: "xss_cookie_theft", Category: CategoryXSS, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)document\s*\.\s*cookie`)},

		// Prompt injection
		{ID: "prompt_ignore_instructions", Category: CategoryPromptInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)\bignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|directions)\b`)},
		{ID: "prompt_disregard_instructions", Category: CategoryPromptInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)\bdisregard\s+(all\s+|any\s+)?(previous|prior|above|earlier|your)\s+(instructions|prompts|rules|guidelines)\b`)},
		{ID: "prompt_role_override", Category: CategoryPromptInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)\byou\s+are\s+(now\s+)?(a\s+different|no\s+longer)\b`)},
		{ID: "prompt_reveal_system", Category: CategoryPromptInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(reveal|show|print|repeat)\b.{0,40}\bsystem\s+prompt\b`)},
		{ID: "prompt_pretend", Category: CategoryPromptInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\b`)},
		{ID: "prompt_jailbreak", Category: CategoryPromptInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(jailbreak|DAN\s+mode|developer\s+mode\s+enabled)\b`)},
		{ID: "prompt_new_instructions", Category: CategoryPromptInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(new|updated)\s+instructions\s*:\s*`)},

		// Command injection
		{ID: "cmd_chained", Category: CategoryCommandInjection, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)(;|&&|\|\|)\s*(rm|cat|wget|curl|nc|bash|sh|chmod|chown|kill)\b`)},
		{ID: "cmd_substitution", Category: CategoryCommandInjection, Severity: SeverityCritical,
			re: regexp.MustCompile("\\$\\([^)]*\\)|`[^`]+`")},
		{ID: "cmd_pipe_shell", Category: CategoryCommandInjection, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\|\s*(sh|bash|zsh)\b`)},
		{ID: "cmd_null_device", Category: CategoryCommandInjection, Severity: SeverityWarning,
			re: regexp.MustCompile(`(?i)\b(2>&1|>\s*/dev/null)\b`)},

		// Path traversal
		{ID: "path_dotdot", Category: CategoryPathTraversal, Severity: SeverityError,
			re: regexp.MustCompile(`\.\./|\.\.\\`)},
		{ID: "path_dotdot_encoded", Category: CategoryPathTraversal, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)%2e%2e(%2f|%5c|/|\\)`)},
		{ID: "path_sensitive_file", Category: CategoryPathTraversal, Severity: SeverityCritical,
			re: regexp.MustCompile(`(?i)(/etc/(passwd|shadow)|\\windows\\system32)`)},

		// Sensitive data exposure
		{ID: "secret_aws_key", Category: CategorySensitiveData, Severity: SeverityCritical,
			re: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
		{ID: "secret_private_key", Category: CategorySensitiveData, Severity: SeverityCritical,
			re: regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`)},
		{ID: "secret_jwt", Category: CategorySensitiveData, Severity: SeverityError,
			re: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
		{ID: "secret_assignment", Category: CategorySensitiveData, Severity: SeverityError,
			re: regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-./+]{8,}`)},
	}
}
