package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/database"
	"github.com/guardianhq/guardian/internal/logger"
	"github.com/guardianhq/guardian/internal/notify"
	"github.com/guardianhq/guardian/internal/server"
	"github.com/guardianhq/guardian/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().WithError(err).Fatal("load config")
	}

	// Log to both stdout and a rotated file next to the database.
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "guardian.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.Log().WithField("version", version.Full()).Infof("starting %s", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("open database")
	}

	alerter := notify.New(cfg.AlertURL)

	srv, err := server.New(db, cfg, alerter.Critical)
	if err != nil {
		logger.Log().WithError(err).Fatal("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log().WithField("port", cfg.HTTPPort).Info("listening")
	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Fatal("server error")
	}
	logger.Log().Info("shutdown complete")
}
