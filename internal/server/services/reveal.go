package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
)

// RevealResult is the decrypted secret of an item. NoCopy tells clients not
// to offer copy-to-clipboard.
type RevealResult struct {
	ItemID      string            `json:"item_id"`
	Secret      string            `json:"secret"`
	Fields      map[string]string `json:"fields,omitempty"`
	NoCopy      bool              `json:"no_copy"`
	AccessBasis AccessBasis       `json:"access_basis"`
}

type RevealService struct {
	runner  *Runner
	sealer  Sealer
	alerter *Alerter
	logger  logging.Logger
	now     func() time.Time
}

func NewRevealService(runner *Runner, sealer Sealer, alerter *Alerter, logger logging.Logger) *RevealService {
	return &RevealService{runner: runner, sealer: sealer, alerter: alerter, logger: logger.With("module", "reveal"), now: time.Now}
}

// Reveal decrypts itemID for p. Every attempt is audited: successes as
// item_revealed, authorization failures as reveal_denied.
func (s *RevealService) Reveal(ctx context.Context, p models.Principal, itemID string) (*RevealResult, error) {
	var (
		out    *RevealResult
		item   *models.Item
		denied string
	)
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		denied = ""

		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		d, err := evaluateReveal(ctx, tx, p, it, now)
		if err != nil {
			return err
		}
		if !d.Allowed() {
			denied = d.Reason
			e := newEntry(ctx, p, models.EventRevealDenied, models.SubjectItem, itemID, now)
			e.VaultID = it.VaultID
			e.Details["reason"] = d.Reason
			return tx.Record(ctx, e)
		}

		payload, err := openPayload(s.sealer, it.EncryptedPayload)
		if err != nil {
			return err
		}

		e := newEntry(ctx, p, models.EventItemRevealed, models.SubjectItem, itemID, now)
		e.VaultID = it.VaultID
		e.Details["access_basis"] = string(d.Basis)
		e.Details["no_copy"] = it.NoCopy
		if err := tx.Record(ctx, e); err != nil {
			return err
		}

		item = it
		out = &RevealResult{
			ItemID:      it.ID,
			Secret:      payload.Secret,
			Fields:      payload.Fields,
			NoCopy:      it.NoCopy,
			AccessBasis: d.Basis,
		}
		return nil
	})
	if err != nil {
		if common.Kind(err) == common.ErrIntegrity {
			s.logger.Error(ctx, "stored payload failed authentication", "item_id", itemID)
		}
		metrics.Reveals.WithLabelValues("error", "").Inc()
		return nil, err
	}
	if denied != "" {
		metrics.Reveals.WithLabelValues("denied", "").Inc()
		s.logger.Warn(ctx, "reveal denied", "item_id", itemID, "principal", p.ID, "reason", denied)
		return nil, common.ErrForbidden
	}

	metrics.Reveals.WithLabelValues("allowed", string(out.AccessBasis)).Inc()
	s.logger.Info(ctx, "item revealed", "item_id", itemID, "principal", p.ID, "basis", out.AccessBasis)

	if item.Criticality == models.CriticalityHigh {
		s.alerter.Notify(ctx, notify.Alert{
			Priority: notify.PriorityNormal,
			Title:    "High-criticality secret revealed",
			Fields: []notify.Field{
				{Label: "Item", Value: item.Title},
				{Label: "By", Value: displayName(p)},
				{Label: "Access", Value: string(out.AccessBasis)},
			},
		})
	}
	return out, nil
}
