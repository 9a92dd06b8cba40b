package core

// scheduler.go runs background maintenance for run history.
//
// The prune job deletes run records older than the retention window. It runs
// once at start and then every Interval until the context is cancelled.
// A failed prune is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the history prune scheduler.
type PruneConfig struct {
	Retention time.Duration // Age after which runs are deleted (default: 30 days)
	Interval  time.Duration // How often to run (default: 1h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	return c
}

// StartPruneScheduler blocks, pruning history until ctx is cancelled.
// Callers run it in its own goroutine.
func (s *Service) StartPruneScheduler(ctx context.Context, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history prune scheduler started",
		"retention", cfg.Retention.String(),
		"interval", cfg.Interval.String(),
	)

	s.runPruneJob(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history prune scheduler stopped")
			return
		case <-ticker.C:
			s.runPruneJob(ctx, cfg)
		}
	}
}

// runPruneJob performs one prune cycle and returns the number of removed runs.
func (s *Service) runPruneJob(ctx context.Context, cfg PruneConfig) int64 {
	start := time.Now()
	cutoff := s.now().Add(-cfg.Retention)

	removed, err := s.history.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return 0
	}

	slog.Info("pruned run history",
		"runs_removed", removed,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return removed
}
