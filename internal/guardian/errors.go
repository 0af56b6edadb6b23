package guardian

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPattern is returned by AddPattern when the expression does
	// not compile or the category/severity is unknown.
	ErrInvalidPattern = errors.New("invalid threat pattern")
	// ErrRateLimitExceeded marks a request rejected by the rate limiter.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrIPBlocked marks a source address blocked for aggregated login abuse.
	ErrIPBlocked = errors.New("address blocked")
	// ErrInputTooLong marks input rejected by the length check before any
	// pattern scanning happens.
	ErrInputTooLong = errors.New("input exceeds maximum length")
	// ErrOutputTooLong marks model output rejected by the length check.
	ErrOutputTooLong = errors.New("output exceeds maximum length")
	// ErrAgentNotAllowed marks an agent name outside the tenant's allowlist.
	ErrAgentNotAllowed = errors.New("agent not allowed")
	// ErrPolicyNotFound is non-fatal: callers fall back to the default policy.
	ErrPolicyNotFound = errors.New("security policy not found")
)

// ThreatError carries the classification of a blocked payload. The detail is
// written to the audit trail only; user-facing responses stay generic.
type ThreatError struct {
	Category Category
	Severity Severity
	RuleID   string
}

func (e *ThreatError) Error() string {
	return fmt.Sprintf("threat detected: %s (%s)", e.Category, e.Severity)
}

// LockedError reports an account lockout with the time left on the lock.
type LockedError struct {
	RemainingTime time.Duration
}

func (e *LockedError) Error() string {
	return "account temporarily locked"
}
