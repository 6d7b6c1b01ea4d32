package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// CheckoutService manages exclusive borrowing of items flagged
// requires_checkout. There is no override: only the holder can check in.
type CheckoutService struct {
	runner *Runner
	logger logging.Logger
	now    func() time.Time
}

func NewCheckoutService(runner *Runner, logger logging.Logger) *CheckoutService {
	return &CheckoutService{runner: runner, logger: logger.With("module", "checkout"), now: time.Now}
}

// Checkout acquires the lock on itemID for p. Checking out an item p
// already holds returns the existing lock without a new audit entry.
func (s *CheckoutService) Checkout(ctx context.Context, p models.Principal, itemID string) (*models.CheckoutLock, error) {
	var out *models.CheckoutLock

	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()

		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		if !it.RequiresCheckout {
			return common.ErrCheckoutNotNeeded
		}
		d, err := evaluateAccess(ctx, tx, p, it, now)
		if err != nil {
			return err
		}
		if !d.Allowed() {
			return common.ErrForbidden
		}

		lock, inserted, err := tx.Locks().Acquire(ctx, &models.CheckoutLock{ItemID: itemID, HolderID: p.ID, AcquiredAt: now.UTC()})
		if err != nil {
			return err
		}
		if !inserted {
			if lock.HolderID != p.ID {
				return common.ErrAlreadyCheckedOut
			}
			out = lock
			return nil
		}

		e := newEntry(ctx, p, models.EventItemCheckedOut, models.SubjectItem, itemID, now)
		e.VaultID = it.VaultID
		e.Details["access_basis"] = string(d.Basis)
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = lock
		return nil
	})
	if err != nil {
		metrics.Checkouts.WithLabelValues("checkout", "rejected").Inc()
		return nil, err
	}

	metrics.Checkouts.WithLabelValues("checkout", "ok").Inc()
	s.logger.Info(ctx, "item checked out", "item_id", itemID, "holder", p.ID)
	return out, nil
}

// Checkin releases the lock p holds on itemID.
func (s *CheckoutService) Checkin(ctx context.Context, p models.Principal, itemID string) error {
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()

		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}

		lock, err := tx.Locks().Get(ctx, itemID)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotCheckedOut
		}
		if err != nil {
			return err
		}
		if lock.HolderID != p.ID {
			return common.ErrNotLockHolder
		}

		released, err := tx.Locks().Release(ctx, itemID, p.ID)
		if err != nil {
			return err
		}
		if !released {
			return common.ErrNotCheckedOut
		}

		e := newEntry(ctx, p, models.EventItemCheckedIn, models.SubjectItem, itemID, now)
		e.VaultID = it.VaultID
		e.Details["held_for_seconds"] = int64(now.Sub(lock.AcquiredAt).Seconds())
		return tx.Record(ctx, e)
	})
	if err != nil {
		metrics.Checkouts.WithLabelValues("checkin", "rejected").Inc()
		return err
	}

	metrics.Checkouts.WithLabelValues("checkin", "ok").Inc()
	s.logger.Info(ctx, "item checked in", "item_id", itemID, "holder", p.ID)
	return nil
}

// Status returns the current lock on itemID, or nil when it is free.
func (s *CheckoutService) Status(ctx context.Context, itemID string) (*models.CheckoutLock, error) {
	var out *models.CheckoutLock
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if _, err := r.Items().Get(ctx, itemID); err != nil {
			return err
		}
		lock, err := r.Locks().Get(ctx, itemID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = lock
		return nil
	})
	return out, err
}
