package guardian

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/logger"
)

// globalEndpoint keys the per-identifier budget that spans all endpoints.
const globalEndpoint = "*"

// rateEntry holds the counters for one identifier/endpoint pair. All fields
// are guarded by the entry mutex so a burst of simultaneous requests from the
// same identifier increments and compares atomically.
type rateEntry struct {
	mu sync.Mutex

	minuteStart  time.Time
	minuteCount  int
	hourStart    time.Time
	hourCount    int
	burst        *rate.Limiter // nil when burst limiting is disabled
	blockedUntil time.Time
	lastSeen     time.Time
}

// RateLimiter bounds request frequency per identifier/endpoint with fixed
// minute and hour windows plus a sub-second burst bucket. Unrelated keys are
// never serialized against each other: the shared map lock is held only long
// enough to find or insert an entry.
type RateLimiter struct {
	mu      sync.RWMutex
	entries map[string]*rateEntry

	cfg config.RateLimitConfig
	now func() time.Time
}

// RateStatus is a read-only snapshot of one identifier/endpoint budget.
type RateStatus struct {
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// NewRateLimiter creates a limiter with the given default budgets.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*rateEntry),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (rl *RateLimiter) entry(key string) *rateEntry {
	rl.mu.RLock()
	e, ok := rl.entries[key]
	rl.mu.RUnlock()
	if ok {
		return e
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if e, ok = rl.entries[key]; ok {
		return e
	}
	e = &rateEntry{}
	if rl.cfg.BurstPerSecond > 0 {
		e.burst = rate.NewLimiter(rate.Limit(rl.cfg.BurstPerSecond), rl.cfg.BurstPerSecond)
	}
	rl.entries[key] = e
	return e
}

// Check consumes one request from the identifier/endpoint budget using the
// limiter's default thresholds.
func (rl *RateLimiter) Check(identifier, endpoint string) (bool, error) {
	return rl.CheckWithLimits(identifier, endpoint, rl.cfg.RequestsPerMinute, rl.cfg.RequestsPerHour)
}

// CheckGlobal consumes one request from the identifier's cross-endpoint
// budget. The hourly default bounds identifiers that spread load thinly
// across many endpoints.
func (rl *RateLimiter) CheckGlobal(identifier string) (bool, error) {
	return rl.CheckWithLimits(identifier, globalEndpoint, rl.cfg.RequestsPerMinute, rl.cfg.RequestsPerHour)
}

// CheckWithLimits consumes one request using caller-supplied thresholds, used
// when a tenant policy overrides the defaults. Exceeding any threshold blocks
// the pair for the configured block duration and reports ErrRateLimitExceeded.
func (rl *RateLimiter) CheckWithLimits(identifier, endpoint string, perMinute, perHour int) (bool, error) {
	e := rl.entry(identifier + "|" + endpoint)
	now := rl.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeen = now

	if now.Before(e.blockedUntil) {
		return false, ErrRateLimitExceeded
	}

	if now.Sub(e.minuteStart) >= time.Minute {
		e.minuteStart = now
		e.minuteCount = 0
	}
	if now.Sub(e.hourStart) >= time.Hour {
		e.hourStart = now
		e.hourCount = 0
	}

	e.minuteCount++
	e.hourCount++

	if perMinute > 0 && e.minuteCount > perMinute {
		e.block(now, rl.cfg.BlockDuration, identifier, endpoint, "per-minute")
		return false, ErrRateLimitExceeded
	}
	if perHour > 0 && e.hourCount > perHour {
		e.block(now, rl.cfg.BlockDuration, identifier, endpoint, "per-hour")
		return false, ErrRateLimitExceeded
	}
	if e.burst != nil && !e.burst.AllowN(now, 1) {
		e.block(now, rl.cfg.BlockDuration, identifier, endpoint, "burst")
		return false, ErrRateLimitExceeded
	}

	return true, nil
}

func (e *rateEntry) block(now time.Time, d time.Duration, identifier, endpoint, window string) {
	e.blockedUntil = now.Add(d)
	logger.WithComponent("ratelimit").WithFields(map[string]interface{}{
		"identifier": identifier,
		"endpoint":   endpoint,
		"window":     window,
		"until":      e.blockedUntil,
	}).Warn("identifier blocked")
}

// Reset clears the budget for one identifier/endpoint pair.
func (rl *RateLimiter) Reset(identifier, endpoint string) {
	rl.mu.Lock()
	delete(rl.entries, identifier+"|"+endpoint)
	rl.mu.Unlock()
}

// Status reports the current minute-window usage without consuming a request.
func (rl *RateLimiter) Status(identifier, endpoint string) RateStatus {
	rl.mu.RLock()
	e, ok := rl.entries[identifier+"|"+endpoint]
	rl.mu.RUnlock()

	now := rl.now()
	if !ok {
		return RateStatus{Remaining: rl.cfg.RequestsPerMinute, ResetAt: now.Add(time.Minute)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	count := e.minuteCount
	resetAt := e.minuteStart.Add(time.Minute)
	if now.Sub(e.minuteStart) >= time.Minute {
		count = 0
		resetAt = now.Add(time.Minute)
	}
	remaining := rl.cfg.RequestsPerMinute - count
	if remaining < 0 {
		remaining = 0
	}
	return RateStatus{Count: count, Remaining: remaining, ResetAt: resetAt}
}

// Sweep evicts entries idle beyond maxIdle, bounding memory under
// high-cardinality identifier load. Called from the background scheduler.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, e := range rl.entries {
		e.mu.Lock()
		idle := now.Sub(e.lastSeen) > maxIdle && now.After(e.blockedUntil)
		e.mu.Unlock()
		if idle {
			delete(rl.entries, key)
			removed++
		}
	}
	if removed > 0 {
		logger.WithComponent("ratelimit").WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": len(rl.entries),
		}).Debug("swept idle rate entries")
	}
	return removed
}

// Len returns the number of tracked identifier/endpoint pairs.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.entries)
}
