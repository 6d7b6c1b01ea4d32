// Package sweeper periodically persists JIT expiry and purges dead one-time
// links. Authorization never depends on it having run.
package sweeper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
)

const defaultBatch = 100

// JITExpirer persists expiry of approved grants past their deadline.
type JITExpirer interface {
	ExpireDue(ctx context.Context, batch int) (int, error)
}

// LinkPurger removes consumed and expired links.
type LinkPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	jit      JITExpirer
	links    LinkPurger
	interval time.Duration
	batch    int
	logger   logging.Logger
}

func New(jit JITExpirer, links LinkPurger, interval time.Duration, logger logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		jit:      jit,
		links:    links,
		interval: interval,
		batch:    defaultBatch,
		logger:   logger.With("module", "sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Starting sweeper", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping sweeper...")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass. Failures are logged and counted; the next
// pass retries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	ok := true

	// drain in batches so one pass catches up after downtime
	total := 0
	for {
		n, err := s.jit.ExpireDue(ctx, s.batch)
		if err != nil {
			s.logger.Error(ctx, "jit expiry failed", "error", err)
			ok = false
			break
		}
		total += n
		if n < s.batch || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		s.logger.Info(ctx, "expired jit grants", "count", total)
	}

	purged, err := s.links.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "link purge failed", "error", err)
		ok = false
	} else if purged > 0 {
		s.logger.Info(ctx, "purged one-time links", "count", purged)
	}

	if ok {
		metrics.SweepRuns.WithLabelValues("ok").Inc()
	} else {
		metrics.SweepRuns.WithLabelValues("error").Inc()
	}
}
