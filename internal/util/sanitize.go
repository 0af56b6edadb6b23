package util

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// Patterns for values that must never reach the audit store in the clear.
// Key=value forms cover JSON bodies, query strings and header excerpts.
var sensitiveKV = regexp.MustCompile(`(?i)("?(?:password|passwd|pwd|token|secret|api[_-]?key|authorization|access[_-]?key|private[_-]?key)"?\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&,}]+)`)

// SanitizeForLog removes control characters and newlines from user content before logging.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return controlChars.ReplaceAllString(s, " ")
}

// MaskSensitive redacts credential-like values (password, token, secret, key)
// in free-form text so raw credentials are never persisted in audit excerpts.
func MaskSensitive(s string) string {
	if s == "" {
		return s
	}
	return sensitiveKV.ReplaceAllString(s, `$1<redacted>`)
}

// Truncate bounds a string to max bytes for storage as an excerpt.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// Excerpt prepares user-supplied text for the audit trail: credentials are
// masked, control characters stripped and the result truncated.
func Excerpt(s string, max int) string {
	return Truncate(SanitizeForLog(MaskSensitive(s)), max)
}
