package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string

	// AdminTokenHash is the bcrypt hash of the bearer token that guards the
	// admin surface (audit queries, policy changes). Empty disables admin routes.
	AdminTokenHash string
	// JWTSecret verifies caller-supplied JWTs so audit events can be
	// attributed to a user/org. Empty skips claim extraction.
	JWTSecret string

	// TrustedProxies is the number of reverse-proxy hops in front of the
	// service. Zero means RemoteAddr is used as-is and X-Forwarded-For
	// is ignored (it is client-controlled without a trusted proxy).
	TrustedProxies int

	// AlertURL is a shoutrrr destination for critical operator alerts.
	AlertURL string

	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Audit     AuditConfig

	// MaxInputLength bounds text accepted for pattern scanning when no
	// tenant policy overrides it.
	MaxInputLength  int
	MaxOutputLength int
}

// RateLimitConfig holds the default request budgets applied when no
// tenant-specific policy exists.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	BurstPerSecond    int
	BlockDuration     time.Duration
	SweepInterval     time.Duration
}

// LockoutConfig controls the escalating account lockout scheme.
type LockoutConfig struct {
	MaxAttempts      int
	AttemptWindow    time.Duration
	BaseLockDuration time.Duration
	MaxLockDuration  time.Duration
	IPMaxAttempts    int
	IPAttemptWindow  time.Duration
	IPBlockDuration  time.Duration
}

// AuditConfig controls the audit buffer and flush cadence.
type AuditConfig struct {
	BufferCap     int
	FlushInterval time.Duration
	BatchSize     int
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:    getEnv("GUARDIAN_ENV", "development"),
		HTTPPort:       getEnv("GUARDIAN_HTTP_PORT", "8080"),
		DatabasePath:   getEnv("GUARDIAN_DB_PATH", filepath.Join("data", "guardian.db")),
		AdminTokenHash: getEnv("GUARDIAN_ADMIN_TOKEN_HASH", ""),
		JWTSecret:      getEnv("GUARDIAN_JWT_SECRET", ""),
		TrustedProxies: getEnvInt("GUARDIAN_TRUSTED_PROXIES", 0),
		AlertURL:       getEnv("GUARDIAN_ALERT_URL", ""),
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("GUARDIAN_RATE_PER_MINUTE", 60),
			RequestsPerHour:   getEnvInt("GUARDIAN_RATE_PER_HOUR", 1000),
			BurstPerSecond:    getEnvInt("GUARDIAN_RATE_BURST", 20),
			BlockDuration:     getEnvDuration("GUARDIAN_RATE_BLOCK_DURATION", 5*time.Minute),
			SweepInterval:     getEnvDuration("GUARDIAN_SWEEP_INTERVAL", time.Minute),
		},
		Lockout: LockoutConfig{
			MaxAttempts:      getEnvInt("GUARDIAN_LOCKOUT_MAX_ATTEMPTS", 5),
			AttemptWindow:    getEnvDuration("GUARDIAN_LOCKOUT_WINDOW", 15*time.Minute),
			BaseLockDuration: getEnvDuration("GUARDIAN_LOCKOUT_BASE_DURATION", 5*time.Minute),
			MaxLockDuration:  getEnvDuration("GUARDIAN_LOCKOUT_MAX_DURATION", 24*time.Hour),
			IPMaxAttempts:    getEnvInt("GUARDIAN_LOCKOUT_IP_MAX_ATTEMPTS", 20),
			IPAttemptWindow:  getEnvDuration("GUARDIAN_LOCKOUT_IP_WINDOW", time.Hour),
			IPBlockDuration:  getEnvDuration("GUARDIAN_LOCKOUT_IP_BLOCK_DURATION", time.Hour),
		},
		Audit: AuditConfig{
			BufferCap:     getEnvInt("GUARDIAN_AUDIT_BUFFER_CAP", 10000),
			FlushInterval: getEnvDuration("GUARDIAN_AUDIT_FLUSH_INTERVAL", 5*time.Second),
			BatchSize:     getEnvInt("GUARDIAN_AUDIT_BATCH_SIZE", 200),
		},
		MaxInputLength:  getEnvInt("GUARDIAN_MAX_INPUT_LENGTH", 10000),
		MaxOutputLength: getEnvInt("GUARDIAN_MAX_OUTPUT_LENGTH", 50000),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return fallback
}
