package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/api/routes"
	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/guardian"
)

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine   *gin.Engine
	Guardian *guardian.Guardian
	cfg      config.Config
}

// New wires up the HTTP router and registers versioned routes.
func New(db *gorm.DB, cfg config.Config, alert func(string)) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	g, err := routes.Register(router, db, cfg, alert)
	if err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &Server{Engine: router, Guardian: g, cfg: cfg}, nil
}

// Run starts the HTTP server with proper shutdown semantics: on context
// cancellation the listener drains and the guardian flushes its audit buffer.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.HTTPPort),
		Handler: s.Engine,
	}

	s.Guardian.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return s.Guardian.Stop(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
