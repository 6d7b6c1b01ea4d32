package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/sethvargo/go-retry"
)

// Retrying makes up to attempts delivery attempts with exponential backoff
// starting at base.
type Retrying struct {
	next     Notifier
	attempts int
	base     time.Duration
	logger   logging.Logger
}

func NewRetrying(next Notifier, attempts int, base time.Duration, logger logging.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &Retrying{next: next, attempts: attempts, base: base, logger: logger.With("module", "notify")}
}

func (r *Retrying) SendAlert(ctx context.Context, a Alert) error {
	attempt := 0
	b := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.base))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := r.next.SendAlert(ctx, a); err != nil {
			r.logger.Warn(ctx, "alert delivery attempt failed", "attempt", attempt, "title", a.Title, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.Alerts.WithLabelValues(string(a.Priority), "failed").Inc()
		return fmt.Errorf("alert not delivered after %d attempts: %w", attempt, err)
	}
	metrics.Alerts.WithLabelValues(string(a.Priority), "delivered").Inc()
	return nil
}
