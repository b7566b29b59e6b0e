package core

// sweeper.go provides background expiry of abandoned multi-part assemblies.
//
// A multi-part version whose remaining parts never arrive would otherwise sit
// in processing forever and block re-ingestion under the same label. The
// sweeper periodically fails assemblies idle longer than AssemblyMaxWait;
// failed versions are superseded on the next submission.
//
// The sweeper is designed to be long-running and context-aware for graceful
// shutdown. It logs progress but never fails the application.

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs the stale-assembly sweep every interval until the context
// is cancelled. A non-positive interval defaults to one minute.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("assembly sweeper started",
		"interval", interval.String(),
		"max_wait", s.opts.AssemblyMaxWait.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("assembly sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep performs one expiry pass.
func (s *Service) runSweep(ctx context.Context) {
	start := time.Now()
	failed := s.mgr.FailStale(ctx, s.opts.AssemblyMaxWait)
	if len(failed) == 0 {
		return
	}
	slog.Info("stale assemblies expired",
		"count", len(failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
