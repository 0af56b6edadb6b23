package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/logger"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/models"
)

// Generic user-facing block reasons. The matched rule and threshold stay in
// the audit record only.
const (
	reasonBlocked     = "request blocked"
	reasonRateLimited = "rate limit exceeded"
	reasonLocked      = "account temporarily locked"
)

// OutputFormat declares what shape a model response is expected to take.
type OutputFormat string

const (
	FormatNone OutputFormat = "none"
	FormatSQL  OutputFormat = "sql"
	FormatJSON OutputFormat = "json"
)

// sqlOutputDeny rejects destructive statements in model output that is
// expected to be SQL, regardless of the generic threat rules.
var sqlOutputDeny = []string{"DROP ", "DELETE ", "TRUNCATE ", "ALTER ", "GRANT ", "REVOKE ", "CREATE USER"}

// RequestInput is the inbound-evaluation contract consumed by the API
// boundary.
type RequestInput struct {
	Identifier string `json:"identifier"` // usually the client IP
	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
	SourceIP   string `json:"source_ip"`
	UserAgent  string `json:"user_agent"`
	Body       string `json:"body"`
	Query      string `json:"query"`
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id"`
	OrgID      string `json:"org_id"`
	Account    string `json:"account"` // set on authentication endpoints
}

// Decision is the outcome of one evaluation. Reason is opaque: it never names
// the rule or threshold that triggered.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Status  int    `json:"suggested_status"`
	Reason  string `json:"reason,omitempty"`
	EventID string `json:"audit_event_id"`
}

// Guardian composes the rate limiter, pattern detector, audit log, lockout
// tracker and policy store into a single evaluation entry point. One instance
// is constructed at process start and shared by every caller.
type Guardian struct {
	cfg      config.Config
	db       *gorm.DB
	limiter  *RateLimiter
	detector *Detector
	audit    *AuditLog
	lockout  *Lockout
	policies *PolicyStore
	cron     *cron.Cron
}

// New wires up a Guardian instance: default patterns plus persisted custom
// patterns are loaded and the policy snapshot is primed. Call Start to launch
// the background sweep and flush tasks.
func New(db *gorm.DB, cfg config.Config, alert func(string)) (*Guardian, error) {
	g := &Guardian{
		cfg:      cfg,
		db:       db,
		limiter:  NewRateLimiter(cfg.RateLimit),
		detector: NewDetector(),
		audit:    NewAuditLog(db, cfg.Audit, alert),
		lockout:  NewLockout(cfg.Lockout),
		policies: NewPolicyStore(db, cfg),
	}

	if err := g.rebuildRules(); err != nil {
		return nil, err
	}
	if err := g.policies.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// rebuildRules composes the built-in rule set with the active persisted
// patterns and installs the result as one snapshot, so a reload is a single
// swap rather than a sequence of partial states.
func (g *Guardian) rebuildRules() error {
	rules := defaultRules()

	var rows []models.ThreatPatternRecord
	if err := g.db.Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("load custom patterns: %w", err)
	}
	for _, rec := range rows {
		cat, sev := Category(rec.Category), Severity(rec.Severity)
		if !cat.Valid() || !sev.Valid() {
			logger.WithComponent("detector").WithField("pattern", rec.UUID).
				Warn("skipping stored pattern with unknown category or severity")
			continue
		}
		re, err := regexp.Compile(rec.Expr)
		if err != nil {
			logger.WithComponent("detector").WithField("pattern", rec.UUID).
				WithError(err).Warn("skipping stored pattern")
			continue
		}
		rules = append(rules, Rule{
			ID:       fmt.Sprintf("%s_custom_%d", cat, len(rules)),
			Category: cat,
			Severity: sev,
			re:       re,
		})
	}

	g.detector.SetRules(rules)
	logger.WithComponent("detector").WithField("rules", len(g.detector.Rules())).
		Debug("rule snapshot rebuilt")
	return nil
}

// Start launches the periodic sweep and audit flush on the internal
// scheduler.
func (g *Guardian) Start() {
	g.cron = cron.New()
	sweepSpec := fmt.Sprintf("@every %s", g.cfg.RateLimit.SweepInterval)
	flushSpec := fmt.Sprintf("@every %s", g.cfg.Audit.FlushInterval)

	_, _ = g.cron.AddFunc(sweepSpec, func() {
		g.limiter.Sweep(2 * time.Hour)
		g.lockout.Sweep(24 * time.Hour)
	})
	_, _ = g.cron.AddFunc(flushSpec, func() {
		_ = g.audit.Flush()
	})
	g.cron.Start()
	logger.WithComponent("guardian").Info("background sweep and flush started")
}

// Stop halts the scheduler and flushes any remaining audit events.
func (g *Guardian) Stop(ctx context.Context) error {
	if g.cron != nil {
		stopped := g.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g.audit.Flush()
}

// EvaluateRequest runs the full inbound pipeline in fail-fast, cheapest-first
// order: lockout, rate limit, length, pattern scan. Exactly one audit event
// is produced whether the request is allowed or blocked.
func (g *Guardian) EvaluateRequest(req RequestInput) Decision {
	metrics.IncEvaluation()
	policy := g.policies.Get(req.TenantID)

	base := Event{
		EventType: EventRequest,
		Severity:  SeverityInfo,
		UserID:    req.UserID,
		OrgID:     req.OrgID,
		SourceIP:  req.SourceIP,
		UserAgent: req.UserAgent,
		Endpoint:  req.Endpoint,
		Method:    req.Method,
		Status:    http.StatusOK,
	}

	if req.SourceIP != "" && g.lockout.CheckIPBlocked(req.SourceIP) {
		metrics.IncBlocked("ip_blocked")
		return g.deny(base, EventBlocked, SeverityError, http.StatusForbidden,
			reasonBlocked, "source address blocked for aggregated login failures")
	}

	if req.Account != "" {
		if st := g.lockout.IsLocked(req.Account); st.Locked {
			metrics.IncBlocked("account_locked")
			return g.deny(base, EventBlocked, SeverityWarning, http.StatusForbidden,
				reasonLocked, fmt.Sprintf("account locked, %s remaining", st.RemainingTime.Round(time.Second)))
		}
	}

	if ok, _ := g.limiter.CheckWithLimits(req.Identifier, req.Endpoint, policy.RequestsPerMinute, policy.RequestsPerHour); !ok {
		metrics.IncRateLimited()
		metrics.IncBlocked("rate_limit")
		return g.deny(base, EventRateLimit, SeverityWarning, http.StatusTooManyRequests,
			reasonRateLimited, fmt.Sprintf("rate limit exceeded for %s on %s", req.Identifier, req.Endpoint))
	}
	if ok, _ := g.limiter.CheckGlobal(req.Identifier); !ok {
		metrics.IncRateLimited()
		metrics.IncBlocked("rate_limit")
		return g.deny(base, EventRateLimit, SeverityWarning, http.StatusTooManyRequests,
			reasonRateLimited, fmt.Sprintf("global rate limit exceeded for %s", req.Identifier))
	}

	scanned := req.Endpoint + "\n" + req.Query + "\n" + req.Body + "\n" + req.UserAgent
	base.Payload = req.Body

	if policy.MaxInputLength > 0 && len(req.Body) > policy.MaxInputLength {
		metrics.IncBlocked("length")
		return g.deny(base, EventBlocked, SeverityWarning, http.StatusBadRequest,
			reasonBlocked, fmt.Sprintf("body length %d exceeds limit %d", len(req.Body), policy.MaxInputLength))
	}

	// the composite carries query and user-agent text too, so it gets the
	// same length bound before any regex runs
	if res := g.detector.ValidateInput(scanned, policy.MaxInputLength); !res.Valid {
		if len(res.Threats) == 0 {
			metrics.IncBlocked("length")
			return g.deny(base, EventBlocked, SeverityWarning, http.StatusBadRequest,
				reasonBlocked, fmt.Sprintf("scanned length %d exceeds limit %d", len(scanned), policy.MaxInputLength))
		}
		lead := res.Threats[0]
		metrics.IncThreat(string(lead.Category))
		metrics.IncBlocked("threat")
		return g.deny(base, EventBlocked, res.Severity, http.StatusBadRequest,
			reasonBlocked, threatDetail(res.Threats))
	}

	if blocked, detail := g.tenantPatternHit(policy, scanned); blocked {
		metrics.IncThreat(string(CategoryCustom))
		metrics.IncBlocked("threat")
		return g.deny(base, EventBlocked, SeverityError, http.StatusBadRequest, reasonBlocked, detail)
	}

	id := g.audit.Log(base)
	return Decision{Allowed: true, Status: http.StatusOK, EventID: id}
}

// tenantPatternHit evaluates the tenant's own blocked patterns. Expressions
// are validated at Set time, so compile errors here are skipped quietly.
func (g *Guardian) tenantPatternHit(policy models.SecurityPolicy, text string) (bool, string) {
	for _, expr := range policy.BlockedPatternList() {
		re, err := regexpCompileCached(expr)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true, fmt.Sprintf("tenant pattern matched: %s", expr)
		}
	}
	return false, ""
}

func (g *Guardian) deny(base Event, eventType string, sev Severity, status int, reason, detail string) Decision {
	base.EventType = eventType
	base.Severity = sev
	base.Status = status
	base.Blocked = true
	base.Reason = detail
	id := g.audit.Log(base)
	return Decision{Allowed: false, Status: status, Reason: reason, EventID: id}
}

func threatDetail(threats []Match) string {
	parts := make([]string, 0, len(threats))
	for _, m := range threats {
		parts = append(parts, fmt.Sprintf("%s/%s (%s)", m.Category, m.RuleID, m.Severity))
	}
	return "pattern match: " + strings.Join(parts, ", ")
}

// ValidateInput guards text bound for a model: agent allowlist, length bound,
// then a full pattern scan (the default rule set includes prompt-injection
// rules for exactly this path). It returns the audit event id either way.
func (g *Guardian) ValidateInput(text, agentName, orgID, userID string) (string, error) {
	metrics.IncEvaluation()
	policy := g.policies.Get(orgID)

	ev := Event{
		EventType: EventDataAccess,
		Severity:  SeverityInfo,
		UserID:    userID,
		OrgID:     orgID,
		Endpoint:  "agent:" + agentName,
		Payload:   text,
	}

	if !policy.AgentAllowed(agentName) {
		ev.Blocked = true
		ev.Severity = SeverityWarning
		ev.Reason = fmt.Sprintf("agent %q not in tenant allowlist", agentName)
		metrics.IncBlocked("agent")
		return g.audit.Log(ev), ErrAgentNotAllowed
	}

	maxLen := policy.MaxInputLength
	res := g.detector.ValidateInput(text, maxLen)
	if res.Valid {
		id := g.audit.Log(ev)
		return id, nil
	}

	ev.Blocked = true
	ev.Severity = res.Severity
	if len(res.Threats) == 0 {
		ev.Reason = fmt.Sprintf("input length %d exceeds limit %d", len(text), maxLen)
		metrics.IncBlocked("length")
		return g.audit.Log(ev), ErrInputTooLong
	}

	lead := res.Threats[0]
	ev.Reason = threatDetail(res.Threats)
	metrics.IncThreat(string(lead.Category))
	metrics.IncBlocked("threat")
	return g.audit.Log(ev), &ThreatError{Category: lead.Category, Severity: res.Severity, RuleID: lead.RuleID}
}

// ValidateOutput inspects model output before it reaches the caller: length,
// sensitive-data leakage, and format-specific checks (destructive keywords
// for SQL, well-formedness for JSON). The length bound honors the tenant's
// policy override. The sanitized text is returned even on success so callers
// can store it directly.
func (g *Guardian) ValidateOutput(text, agentName, orgID string, format OutputFormat) (string, error) {
	metrics.IncEvaluation()
	policy := g.policies.Get(orgID)

	ev := Event{
		EventType: EventDataAccess,
		Severity:  SeverityInfo,
		OrgID:     orgID,
		Endpoint:  "agent:" + agentName,
		Metadata:  map[string]string{"direction": "output", "format": string(format)},
	}

	if policy.MaxOutputLength > 0 && len(text) > policy.MaxOutputLength {
		ev.Blocked = true
		ev.Severity = SeverityWarning
		ev.Reason = fmt.Sprintf("output length %d exceeds limit %d", len(text), policy.MaxOutputLength)
		metrics.IncBlocked("length")
		g.audit.Log(ev)
		return "", ErrOutputTooLong
	}

	for _, m := range g.detector.DetectAll(text) {
		if m.Category != CategorySensitiveData {
			continue
		}
		ev.Blocked = true
		ev.Severity = m.Severity
		ev.Reason = fmt.Sprintf("sensitive data in output: %s", m.RuleID)
		metrics.IncThreat(string(m.Category))
		metrics.IncBlocked("threat")
		g.audit.Log(ev)
		return "", &ThreatError{Category: m.Category, Severity: m.Severity, RuleID: m.RuleID}
	}

	switch format {
	case FormatSQL:
		upper := strings.ToUpper(text)
		for _, kw := range sqlOutputDeny {
			if strings.Contains(upper, kw) {
				ev.Blocked = true
				ev.Severity = SeverityCritical
				ev.Reason = fmt.Sprintf("disallowed SQL keyword in output: %s", strings.TrimSpace(kw))
				metrics.IncBlocked("threat")
				g.audit.Log(ev)
				return "", &ThreatError{Category: CategorySQLInjection, Severity: SeverityCritical}
			}
		}
	case FormatJSON:
		if !json.Valid([]byte(text)) {
			ev.Blocked = true
			ev.Severity = SeverityWarning
			ev.Reason = "output is not well-formed JSON"
			metrics.IncBlocked("format")
			g.audit.Log(ev)
			return "", errors.New("output is not well-formed JSON")
		}
	}

	g.audit.Log(ev)
	return g.detector.SanitizeInput(text), nil
}

// RecordLoginFailure tracks a failed authentication attempt and audits it.
// It reports a LockedError when the account is locked (or just became so) and
// ErrIPBlocked when the source address has exhausted its aggregate budget.
func (g *Guardian) RecordLoginFailure(account, ip string) (AttemptResult, error) {
	res := g.lockout.RecordFailedAttempt(account, ip)
	g.audit.Log(Event{
		EventType: EventLogin,
		Severity:  SeverityWarning,
		SourceIP:  ip,
		Blocked:   res.JustLocked,
		Reason:    fmt.Sprintf("failed login, %d attempts left", res.AttemptsLeft),
		Metadata:  map[string]string{"lock_count": fmt.Sprintf("%d", res.LockCount)},
	})

	if res.Message != "" {
		return res, &LockedError{RemainingTime: res.RemainingTime}
	}
	if ip != "" && g.lockout.CheckIPBlocked(ip) {
		return res, ErrIPBlocked
	}
	return res, nil
}

// RecordLoginSuccess resets the account's failure counter and audits it.
func (g *Guardian) RecordLoginSuccess(account, ip string) {
	g.lockout.RecordSuccessfulLogin(account, ip)
	g.audit.Log(Event{
		EventType: EventLogin,
		Severity:  SeverityInfo,
		SourceIP:  ip,
		Reason:    "successful login",
	})
}

// IsLocked reports the account's lock status without recording anything.
func (g *Guardian) IsLocked(account string) LockStatus {
	return g.lockout.IsLocked(account)
}

// CheckIPBlocked reports whether a source address is blocked.
func (g *Guardian) CheckIPBlocked(ip string) bool {
	return g.lockout.CheckIPBlocked(ip)
}

// AddPattern persists a custom detection rule and activates it immediately.
func (g *Guardian) AddPattern(expr string, category Category, severity Severity) error {
	if err := g.detector.AddPattern(expr, category, severity); err != nil {
		return err
	}
	rec := models.ThreatPatternRecord{
		Expr:     expr,
		Category: string(category),
		Severity: string(severity),
		Active:   true,
	}
	rec.UUID = uuid.NewString()
	if err := g.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("persist pattern: %w", err)
	}
	return nil
}

// SetPolicy upserts a tenant policy.
func (g *Guardian) SetPolicy(p *models.SecurityPolicy) error {
	return g.policies.Set(p)
}

// ReloadPolicies rebuilds the rule and policy snapshots from storage:
// defaults, persisted custom patterns, then tenant policies.
func (g *Guardian) ReloadPolicies() error {
	if err := g.rebuildRules(); err != nil {
		return err
	}
	return g.policies.Reload()
}

// GetLogs exposes the audit query interface for the admin surface.
func (g *Guardian) GetLogs(f LogFilter, limit, offset int) ([]models.SecurityEvent, error) {
	return g.audit.GetLogs(f, limit, offset)
}

// GetStats exposes audit aggregates for the admin surface.
func (g *Guardian) GetStats(period time.Duration) (AuditStats, error) {
	return g.audit.GetStats(period)
}

// Flush forces a synchronous audit flush. Mainly for tests and shutdown.
func (g *Guardian) Flush() error {
	return g.audit.Flush()
}

// RateStatus exposes the read-only rate budget for an identifier/endpoint.
func (g *Guardian) RateStatus(identifier, endpoint string) RateStatus {
	return g.limiter.Status(identifier, endpoint)
}
