package core

// scheduler.go runs background maintenance for the conversion history.
//
// The pruner removes history entries older than the retention period. It is
// long-running and stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the history pruner.
type PruneConfig struct {
	MaxAge        time.Duration // entries older than this are removed (default: 24h)
	CheckInterval time.Duration // how often to run (default: 1h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Hour
	}
	return c
}

// StartHistoryPruner periodically prunes h. It runs immediately on start,
// then every CheckInterval, until ctx is cancelled.
func StartHistoryPruner(ctx context.Context, h *History, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history pruner started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.CheckInterval.String(),
	)

	runPrune(h, cfg.MaxAge)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			runPrune(h, cfg.MaxAge)
		}
	}
}

func runPrune(h *History, maxAge time.Duration) {
	start := time.Now()
	removed := h.Prune(start.Add(-maxAge))
	if removed > 0 {
		slog.Info("pruned conversion history",
			"entries_removed", removed,
			"entries_kept", h.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
