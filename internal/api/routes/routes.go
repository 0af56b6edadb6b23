package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/api/handlers"
	"github.com/guardianhq/guardian/internal/api/middleware"
	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/guardian"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/models"
)

// Register wires up API routes and performs automatic migrations. The
// returned Guardian is started and owned by the caller.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, alert func(string)) (*guardian.Guardian, error) {
	if err := db.AutoMigrate(
		&models.SecurityEvent{},
		&models.SecurityPolicy{},
		&models.ThreatPatternRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	g, err := guardian.New(db, cfg, alert)
	if err != nil {
		return nil, fmt.Errorf("build guardian: %w", err)
	}

	router.Use(
		middleware.RequestID(),
		middleware.ResolveClientIP(cfg.TrustedProxies),
		middleware.SecurityHeaders(cfg.Environment == "development"),
		middleware.RequestLogger(),
		middleware.Recovery(cfg.Environment == "development"),
	)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	registry.MustRegister(collectors.NewGoCollector())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.CallerClaims(cfg.JWTSecret))

	evaluateHandler := handlers.NewEvaluateHandler(g)
	loginHandler := handlers.NewLoginHandler(g)

	api.POST("/evaluate", evaluateHandler.Evaluate)
	api.POST("/validate/input", evaluateHandler.ValidateInput)
	api.POST("/validate/output", evaluateHandler.ValidateOutput)
	api.GET("/ratelimit/status", evaluateHandler.RateStatus)

	api.POST("/login/failure", loginHandler.Failure)
	api.POST("/login/success", loginHandler.Success)
	api.GET("/login/status", loginHandler.Status)

	// Admin surface: bearer token gated, and the service's own pipeline
	// guards it so abusive operators hit the same limits as everyone else.
	auditHandler := handlers.NewAuditHandler(g)
	policyHandler := handlers.NewPolicyHandler(g)

	admin := api.Group("/")
	admin.Use(middleware.AdminAuth(cfg.AdminTokenHash), middleware.Guard(g))
	{
		admin.GET("/audit/logs", auditHandler.List)
		admin.GET("/audit/stats", auditHandler.Stats)
		admin.POST("/policies", policyHandler.Upsert)
		admin.POST("/policies/reload", policyHandler.Reload)
		admin.POST("/patterns", policyHandler.AddPattern)
	}

	return g, nil
}
