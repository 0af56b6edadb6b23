package guardian

import (
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/models"
)

// PolicyStore serves per-tenant threshold overrides from an atomic snapshot.
// Lookups never lock or hit the database; Set and Reload rebuild the snapshot
// from storage and swap it whole.
type PolicyStore struct {
	db       *gorm.DB
	defaults models.SecurityPolicy
	snapshot atomic.Value // map[string]models.SecurityPolicy
}

// NewPolicyStore builds a store whose default policy comes from config.
func NewPolicyStore(db *gorm.DB, cfg config.Config) *PolicyStore {
	ps := &PolicyStore{
		db: db,
		defaults: models.SecurityPolicy{
			TenantID:          "",
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			RequestsPerHour:   cfg.RateLimit.RequestsPerHour,
			MaxInputLength:    cfg.MaxInputLength,
			MaxOutputLength:   cfg.MaxOutputLength,
		},
	}
	ps.snapshot.Store(map[string]models.SecurityPolicy{})
	return ps
}

// Get returns the tenant's policy or the global default when no override
// exists. The returned value is a copy; mutations do not affect the store.
func (ps *PolicyStore) Get(tenantID string) models.SecurityPolicy {
	snap := ps.snapshot.Load().(map[string]models.SecurityPolicy)
	if p, ok := snap[tenantID]; ok {
		return p
	}
	return ps.defaults
}

// Lookup is like Get but reports ErrPolicyNotFound for callers that need to
// distinguish fallback from an explicit override. The fallback is non-fatal.
func (ps *PolicyStore) Lookup(tenantID string) (models.SecurityPolicy, error) {
	snap := ps.snapshot.Load().(map[string]models.SecurityPolicy)
	if p, ok := snap[tenantID]; ok {
		return p, nil
	}
	return ps.defaults, ErrPolicyNotFound
}

// Set validates and upserts a tenant policy, then refreshes the snapshot.
func (ps *PolicyStore) Set(p *models.SecurityPolicy) error {
	if p == nil || p.TenantID == "" {
		return errors.New("policy requires a tenant id")
	}
	for _, expr := range p.BlockedPatternList() {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, expr, err)
		}
	}

	var existing models.SecurityPolicy
	err := ps.db.Where("tenant_id = ?", p.TenantID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if p.UUID == "" {
			p.UUID = uuid.NewString()
		}
		if err := ps.db.Create(p).Error; err != nil {
			return fmt.Errorf("create policy: %w", err)
		}
		return ps.Reload()
	}
	if err != nil {
		return fmt.Errorf("lookup policy: %w", err)
	}

	existing.RequestsPerMinute = p.RequestsPerMinute
	existing.RequestsPerHour = p.RequestsPerHour
	existing.MaxInputLength = p.MaxInputLength
	existing.MaxOutputLength = p.MaxOutputLength
	existing.AllowedAgents = p.AllowedAgents
	existing.BlockedPatterns = p.BlockedPatterns
	existing.UpdatedAt = time.Now()
	if err := ps.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return ps.Reload()
}

// Reload re-reads all tenant policies and swaps the snapshot atomically, so
// concurrent evaluations see either the old set or the new one, never a mix.
func (ps *PolicyStore) Reload() error {
	var rows []models.SecurityPolicy
	if err := ps.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	snap := make(map[string]models.SecurityPolicy, len(rows))
	for _, p := range rows {
		snap[p.TenantID] = ps.withDefaults(p)
	}
	ps.snapshot.Store(snap)
	return nil
}

// withDefaults fills unset threshold fields from the global defaults. A policy
// row created only for patterns or an agent allowlist keeps the default rate
// and length bounds instead of disabling them.
func (ps *PolicyStore) withDefaults(p models.SecurityPolicy) models.SecurityPolicy {
	if p.RequestsPerMinute <= 0 {
		p.RequestsPerMinute = ps.defaults.RequestsPerMinute
	}
	if p.RequestsPerHour <= 0 {
		p.RequestsPerHour = ps.defaults.RequestsPerHour
	}
	if p.MaxInputLength <= 0 {
		p.MaxInputLength = ps.defaults.MaxInputLength
	}
	if p.MaxOutputLength <= 0 {
		p.MaxOutputLength = ps.defaults.MaxOutputLength
	}
	return p
}
