package guardian

import (
	"strings"
	"sync"
	"time"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/logger"
	"github.com/guardianhq/guardian/internal/metrics"
)

// lockedMessage is deliberately identical for existing and unknown accounts
// so the endpoint cannot be used for account enumeration.
const lockedMessage = "account temporarily locked due to too many failed attempts"

// accountRecord tracks failures for one normalized account identifier.
type accountRecord struct {
	mu sync.Mutex

	failures     int
	firstFailure time.Time
	lockCount    int
	lockedUntil  time.Time
	lastSeen     time.Time
}

// ipRecord aggregates failures from one source address across all accounts,
// catching low-and-slow guessing that per-account counters miss.
type ipRecord struct {
	mu sync.Mutex

	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// AttemptResult describes the state after recording a failed attempt.
type AttemptResult struct {
	AttemptsLeft  int           `json:"attempts_left"`
	JustLocked    bool          `json:"just_locked"`
	LockCount     int           `json:"lock_count"`
	RemainingTime time.Duration `json:"remaining_time"`
	Message       string        `json:"message,omitempty"`
}

// LockStatus is the read-only answer to IsLocked.
type LockStatus struct {
	Locked        bool          `json:"locked"`
	RemainingTime time.Duration `json:"remaining_time"`
	Message       string        `json:"message,omitempty"`
}

// Lockout implements escalating account lockout plus IP-level aggregation.
type Lockout struct {
	mu       sync.RWMutex
	accounts map[string]*accountRecord
	ips      map[string]*ipRecord

	cfg config.LockoutConfig
	now func() time.Time
}

// NewLockout creates a lockout tracker with the given thresholds.
func NewLockout(cfg config.LockoutConfig) *Lockout {
	return &Lockout{
		accounts: make(map[string]*accountRecord),
		ips:      make(map[string]*ipRecord),
		cfg:      cfg,
		now:      time.Now,
	}
}

// normalizeAccount maps any caller-supplied identifier, including ones for
// accounts that do not exist, onto a uniform key so unknown accounts are
// tracked exactly like real ones.
func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

func (l *Lockout) account(key string) *accountRecord {
	l.mu.RLock()
	r, ok := l.accounts[key]
	l.mu.RUnlock()
	if ok {
		return r
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok = l.accounts[key]; ok {
		return r
	}
	r = &accountRecord{}
	l.accounts[key] = r
	return r
}

func (l *Lockout) ip(addr string) *ipRecord {
	l.mu.RLock()
	r, ok := l.ips[addr]
	l.mu.RUnlock()
	if ok {
		return r
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok = l.ips[addr]; ok {
		return r
	}
	r = &ipRecord{}
	l.ips[addr] = r
	return r
}

// lockDuration escalates with the cumulative lock count: each new lock is at
// least as long as the previous one, doubling until the cap.
func (l *Lockout) lockDuration(lockCount int) time.Duration {
	d := l.cfg.BaseLockDuration
	for i := 1; i < lockCount; i++ {
		d *= 2
		if d >= l.cfg.MaxLockDuration {
			return l.cfg.MaxLockDuration
		}
	}
	if d > l.cfg.MaxLockDuration {
		d = l.cfg.MaxLockDuration
	}
	return d
}

// RecordFailedAttempt registers a failed login for the account and its source
// address. The record mutex serializes concurrent failures on the same
// account so two simultaneous observations cannot both trigger a lock.
func (l *Lockout) RecordFailedAttempt(account, ip string) AttemptResult {
	now := l.now()

	if ip != "" {
		l.recordIPFailure(ip, now)
	}

	r := l.account(normalizeAccount(account))
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeen = now

	if now.Before(r.lockedUntil) {
		return AttemptResult{
			LockCount:     r.lockCount,
			RemainingTime: r.lockedUntil.Sub(now),
			Message:       lockedMessage,
		}
	}

	if r.failures == 0 || now.Sub(r.firstFailure) > l.cfg.AttemptWindow {
		r.failures = 0
		r.firstFailure = now
	}
	r.failures++

	if r.failures >= l.cfg.MaxAttempts {
		r.lockCount++
		d := l.lockDuration(r.lockCount)
		r.lockedUntil = now.Add(d)
		r.failures = 0
		metrics.IncLockout()
		logger.WithComponent("lockout").WithFields(map[string]interface{}{
			"lock_count": r.lockCount,
			"duration":   d.String(),
		}).Warn("account locked")
		return AttemptResult{
			JustLocked:    true,
			LockCount:     r.lockCount,
			RemainingTime: d,
			Message:       lockedMessage,
		}
	}

	return AttemptResult{
		AttemptsLeft: l.cfg.MaxAttempts - r.failures,
		LockCount:    r.lockCount,
	}
}

func (l *Lockout) recordIPFailure(ip string, now time.Time) {
	r := l.ip(ip)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeen = now

	if now.Before(r.blockedUntil) {
		return
	}

	if r.failures == 0 || now.Sub(r.windowStart) > l.cfg.IPAttemptWindow {
		r.failures = 0
		r.windowStart = now
	}
	r.failures++

	if r.failures >= l.cfg.IPMaxAttempts {
		r.blockedUntil = now.Add(l.cfg.IPBlockDuration)
		r.failures = 0
		logger.WithComponent("lockout").WithField("ip", ip).Warn("source address blocked")
	}
}

// RecordSuccessfulLogin resets the account's failure counter. The escalation
// counter is kept so a repeat offender still faces growing lock durations.
func (l *Lockout) RecordSuccessfulLogin(account, ip string) {
	r := l.account(normalizeAccount(account))
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = 0
	r.firstFailure = time.Time{}
	r.lastSeen = l.now()
}

// IsLocked reports whether the account is currently locked. Callers should
// check this before password verification so locked and unknown accounts
// produce indistinguishable responses.
func (l *Lockout) IsLocked(account string) LockStatus {
	key := normalizeAccount(account)

	l.mu.RLock()
	r, ok := l.accounts[key]
	l.mu.RUnlock()
	if !ok {
		return LockStatus{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := l.now()
	if now.Before(r.lockedUntil) {
		return LockStatus{
			Locked:        true,
			RemainingTime: r.lockedUntil.Sub(now),
			Message:       lockedMessage,
		}
	}
	return LockStatus{}
}

// CheckIPBlocked reports whether the source address is blocked for
// aggregated login abuse.
func (l *Lockout) CheckIPBlocked(ip string) bool {
	l.mu.RLock()
	r, ok := l.ips[ip]
	l.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return l.now().Before(r.blockedUntil)
}

// Sweep evicts records idle beyond maxIdle that carry no active lock.
func (l *Lockout) Sweep(maxIdle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, r := range l.accounts {
		r.mu.Lock()
		idle := now.Sub(r.lastSeen) > maxIdle && now.After(r.lockedUntil)
		r.mu.Unlock()
		if idle {
			delete(l.accounts, key)
			removed++
		}
	}
	for addr, r := range l.ips {
		r.mu.Lock()
		idle := now.Sub(r.lastSeen) > maxIdle && now.After(r.blockedUntil)
		r.mu.Unlock()
		if idle {
			delete(l.ips, addr)
			removed++
		}
	}
	return removed
}
