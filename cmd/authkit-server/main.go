package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authkit/internal/app"
	"github.com/MrEthical07/authkit/internal/config"
	"github.com/MrEthical07/authkit/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "local")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.AppEnv).With().Str("app", cfg.AppName).Logger()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init failed")
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
}
