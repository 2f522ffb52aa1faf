package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting clearance queue service",
		"addr", cfg.HTTP.Addr,
		"engine_url", cfg.Engine.URL,
		"snapshot_path", cfg.Queue.SnapshotPath,
		"cpu_threshold", cfg.Admission.CPUThreshold,
		"auth_enabled", cfg.HTTP.AuthToken != "",
	)

	services, err := bootstrap.BuildServices(&cfg, logger)
	if err != nil {
		return err
	}

	return bootstrap.Run(ctx, &cfg, services, logger)
}
