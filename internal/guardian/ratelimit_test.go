package guardian

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guardianhq/guardian/internal/config"
)

func testRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		BurstPerSecond:    0, // disabled so minute budgets are exercised directly
		BlockDuration:     5 * time.Minute,
		SweepInterval:     time.Minute,
	}
}

func TestRateLimiter_MinuteBudget(t *testing.T) {
	rl := NewRateLimiter(testRateConfig())

	// 60 requests within one second all succeed
	for i := 0; i < 60; i++ {
		ok, _ := rl.Check("ip-1", "/login")
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	// the 61st is blocked with the typed rate-limit error
	ok, err := rl.Check("ip-1", "/login")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// unrelated identifier is unaffected
	ok, _ = rl.Check("ip-2", "/login")
	assert.True(t, ok)
}

func TestRateLimiter_WindowRollover(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 2,
		RequestsPerHour:   1000,
		BlockDuration:     time.Second,
	})
	now := time.Now()
	rl.now = func() time.Time { return now }

	ok, _ := rl.Check("id", "/ep")
	assert.True(t, ok)
	ok, _ = rl.Check("id", "/ep")
	assert.True(t, ok)
	ok, _ = rl.Check("id", "/ep")
	assert.False(t, ok)

	// after the block expires and the window rolls over, allowance resets
	now = now.Add(2 * time.Minute)
	ok, _ = rl.Check("id", "/ep")
	assert.True(t, ok)
}

func TestRateLimiter_BlockDuration(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 1,
		RequestsPerHour:   1000,
		BlockDuration:     10 * time.Minute,
	})
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Check("id", "/ep")
	ok, err := rl.Check("id", "/ep")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// still blocked after the minute window would have rolled over
	now = now.Add(5 * time.Minute)
	ok, err = rl.Check("id", "/ep")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	now = now.Add(6 * time.Minute)
	ok, _ = rl.Check("id", "/ep")
	assert.True(t, ok)
}

func TestRateLimiter_HourBudget(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 0, // disabled
		RequestsPerHour:   3,
		BlockDuration:     time.Second,
	})
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Check("id", "/ep")
		assert.True(t, ok)
	}
	ok, _ := rl.Check("id", "/ep")
	assert.False(t, ok)
}

func TestRateLimiter_Burst(t *testing.T) {
	cfg := testRateConfig()
	cfg.BurstPerSecond = 5
	cfg.RequestsPerMinute = 1000
	rl := NewRateLimiter(cfg)

	allowed := 0
	for i := 0; i < 20; i++ {
		if ok, _ := rl.Check("id", "/ep"); ok {
			allowed++
		}
	}
	// the token bucket admits roughly the burst size instantly
	assert.LessOrEqual(t, allowed, 7)
	assert.GreaterOrEqual(t, allowed, 5)
}

func TestRateLimiter_ConcurrentExactCount(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 50,
		RequestsPerHour:   10000,
		BlockDuration:     time.Minute,
	})

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Check("shared", "/ep"); ok {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	// exactly the budget passes, no matter how simultaneous the burst
	assert.Equal(t, int64(50), allowed)
}

func TestRateLimiter_Status(t *testing.T) {
	rl := NewRateLimiter(testRateConfig())

	st := rl.Status("id", "/ep")
	assert.Equal(t, 0, st.Count)
	assert.Equal(t, 60, st.Remaining)

	rl.Check("id", "/ep")
	rl.Check("id", "/ep")

	st = rl.Status("id", "/ep")
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 58, st.Remaining)
	assert.False(t, st.ResetAt.IsZero())
}

func TestRateLimiter_ResetAndSweep(t *testing.T) {
	rl := NewRateLimiter(testRateConfig())
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Check("a", "/ep")
	rl.Check("b", "/ep")
	assert.Equal(t, 2, rl.Len())

	rl.Reset("a", "/ep")
	assert.Equal(t, 1, rl.Len())

	now = now.Add(3 * time.Hour)
	removed := rl.Sweep(2 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiter_CheckGlobal(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 2,
		RequestsPerHour:   1000,
		BlockDuration:     time.Minute,
	})

	ok, _ := rl.CheckGlobal("id")
	assert.True(t, ok)
	ok, _ = rl.CheckGlobal("id")
	assert.True(t, ok)
	ok, _ = rl.CheckGlobal("id")
	assert.False(t, ok)

	// per-endpoint budget is tracked separately from the global one
	ok, _ = rl.Check("id", "/ep")
	assert.True(t, ok)
}
