// Package services contains server-side business logic: the checkout lock
// manager, the JIT and break-glass engines, one-time links, reveal, audit
// queries and the thin vault/item write path.
//
// Every state-changing operation runs through Runner.Do, which writes the
// state change and its audit entry in one transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/audit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

const forwardTimeout = 5 * time.Second

// Tx is the view of one transaction handed to operation bodies.
type Tx struct {
	repomanager.Repositories
	recorded []*models.AuditEntry
}

// Record appends e to the audit log inside the transaction. A failed append
// aborts the transaction and marks it for retry.
func (t *Tx) Record(ctx context.Context, e *models.AuditEntry) error {
	if err := t.Audit().Append(ctx, e); err != nil {
		return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrAuditWrite, err))
	}
	t.recorded = append(t.recorded, e)
	return nil
}

type Runner struct {
	rm        repomanager.RepositoryManager
	forwarder audit.Forwarder
	logger    logging.Logger
	attempts  int
	base      time.Duration
}

// NewRunner builds a Runner that tries a transaction at most attempts times
// when its audit write fails, backing off exponentially from base.
func NewRunner(rm repomanager.RepositoryManager, fwd audit.Forwarder, logger logging.Logger, attempts int, base time.Duration) *Runner {
	if attempts < 1 {
		attempts = 3
	}
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if fwd == nil {
		fwd = audit.NopForwarder{}
	}
	return &Runner{rm: rm, forwarder: fwd, logger: logger.With("module", "txrunner"), attempts: attempts, base: base}
}

// Do runs fn in a transaction. fn may be invoked more than once and must
// derive all of its writes from what it reads inside the transaction.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	var committed []*models.AuditEntry

	b := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.base))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var tx *Tx
		if err := r.rm.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
			tx = &Tx{Repositories: repos}
			return fn(ctx, tx)
		}); err != nil {
			if errors.Is(err, common.ErrAuditWrite) {
				r.logger.Warn(ctx, "audit write failed, transaction rolled back", "error", err)
			}
			return err
		}
		committed = tx.recorded
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrAuditWrite) {
			metrics.AuditWriteFailures.Inc()
			r.logger.Error(ctx, "operation rejected: audit log unavailable", "attempts", r.attempts, "error", err)
		}
		return err
	}

	r.forward(ctx, committed)
	return nil
}

// Record writes a standalone audit entry in its own transaction.
func (r *Runner) Record(ctx context.Context, e *models.AuditEntry) error {
	return r.Do(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.Record(ctx, e)
	})
}

func (r *Runner) forward(ctx context.Context, entries []*models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
	defer cancel()
	if err := r.forwarder.Forward(fctx, entries); err != nil {
		metrics.AuditForwardFailures.Add(float64(len(entries)))
		r.logger.Warn(ctx, "audit forwarding failed", "entries", len(entries), "error", err)
	}
}

// View runs a read-only fn in a transaction without retry or audit.
func (r *Runner) View(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	return r.rm.WithTx(ctx, fn)
}
