package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"railtally/internal/config"
	"railtally/internal/db"
	"railtally/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	games := session.NewService(pool, logger)
	if err := games.EnsureSchema(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("RAILTALLY_WORKER_RUN_ONCE")), "true")
	if runOnce {
		sweep(ctx, logger, games, cfg)
		logger.Info("worker run-once completed")
		return
	}

	presenceTicker := time.NewTicker(cfg.PresenceSweep)
	defer presenceTicker.Stop()
	retentionTicker := time.NewTicker(cfg.RetentionSweep)
	defer retentionTicker.Stop()

	logger.Info("worker started",
		"presence_sweep", cfg.PresenceSweep.String(),
		"retention_sweep", cfg.RetentionSweep.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-presenceTicker.C:
			n, err := games.PruneStalePresence(ctx, cfg.PresenceTTL)
			if err != nil {
				logger.Error("presence sweep failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("presence sweep complete", "pruned", n)
			}
		case <-retentionTicker.C:
			n, err := games.PruneIdleGames(ctx, cfg.GameRetention)
			if err != nil {
				logger.Error("retention sweep failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("retention sweep complete", "pruned", n)
			}
		}
	}
}

func sweep(ctx context.Context, logger *slog.Logger, games *session.Service, cfg config.APIConfig) {
	if n, err := games.PruneStalePresence(ctx, cfg.PresenceTTL); err != nil {
		logger.Error("presence sweep failed", "err", err)
	} else {
		logger.Info("presence sweep complete", "pruned", n)
	}
	if n, err := games.PruneIdleGames(ctx, cfg.GameRetention); err != nil {
		logger.Error("retention sweep failed", "err", err)
	} else {
		logger.Info("retention sweep complete", "pruned", n)
	}
}
