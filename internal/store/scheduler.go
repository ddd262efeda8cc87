package store

// scheduler.go prunes old runs in the background.
//
// The job runs once at start and then every CheckInterval until its context
// is cancelled. A failed prune is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls pruning. Zero values use the defaults.
type RetentionConfig struct {
	MaxAge        time.Duration // default 7 days
	CheckInterval time.Duration // default 1h
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Hour
	}
	return c
}

// StartPruneScheduler blocks, pruning runs older than cfg.MaxAge.
func StartPruneScheduler(ctx context.Context, s Store, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("prune scheduler started", "max_age", cfg.MaxAge, "interval", cfg.CheckInterval)

	runPruneJob(ctx, s, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("prune scheduler stopped")
			return
		case now := <-ticker.C:
			runPruneJob(ctx, s, cfg, now)
		}
	}
}

func runPruneJob(ctx context.Context, s Store, cfg RetentionConfig, now time.Time) int64 {
	start := time.Now()
	n, err := s.Prune(ctx, now.Add(-cfg.MaxAge))
	if err != nil {
		slog.Error("prune failed", "error", err)
		return 0
	}
	slog.Info("pruned old runs",
		"runs_pruned", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n
}
