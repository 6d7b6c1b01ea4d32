package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/breakglass"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var (
	errBreakGlassRevoked       = fmt.Errorf("%w: break-glass request is revoked", common.ErrConflict)
	errBreakGlassFullyApproved = fmt.Errorf("%w: break-glass request already has two approvals", common.ErrConflict)
)

// BreakGlassResult carries the request and whether the operator alert for
// the transition was delivered.
type BreakGlassResult struct {
	Request        *models.BreakGlassRequest `json:"request"`
	AlertDelivered bool                      `json:"alert_delivered"`
}

// BreakGlassService grants emergency access immediately and collects two
// distinct approvals afterwards. Access lasts until revoked.
type BreakGlassService struct {
	runner  *Runner
	alerter *Alerter
	logger  logging.Logger
	now     func() time.Time
}

func NewBreakGlassService(runner *Runner, alerter *Alerter, logger logging.Logger) *BreakGlassService {
	return &BreakGlassService{runner: runner, alerter: alerter, logger: logger.With("module", "breakglass"), now: time.Now}
}

func (s *BreakGlassService) Request(ctx context.Context, p models.Principal, itemID, reason string) (*BreakGlassResult, error) {
	if p.Role == models.RoleClient {
		return nil, fmt.Errorf("%w: clients cannot request break-glass access", common.ErrForbidden)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, common.ErrEmptyReason
	}

	id := uuid.NewString()
	var (
		out   *models.BreakGlassRequest
		item  *models.Item
		vault *models.Vault
	)
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		v, err := tx.Vaults().Get(ctx, it.VaultID)
		if err != nil {
			return err
		}
		req := &models.BreakGlassRequest{
			ID:            id,
			ItemID:        itemID,
			RequesterID:   p.ID,
			RequesterMail: p.Email,
			Reason:        reason,
			Status:        models.BreakGlassPending,
			CreatedAt:     now.UTC(),
		}
		if err := tx.BreakGlass().Create(ctx, req); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventBreakGlassRequested, models.SubjectBreakGlass, id, now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = itemID
		e.Details["reason"] = reason
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out, item, vault = req, it, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BreakGlassEvents.WithLabelValues("requested").Inc()
	s.logger.Warn(ctx, "break-glass access granted", "request_id", id, "item_id", itemID, "requester", p.ID)

	delivered := s.alerter.Critical(ctx, notify.Alert{
		Priority: notify.PriorityHigh,
		Title:    "BREAK-GLASS REQUEST",
		Text:     "Emergency access was granted and awaits two approvals.",
		Fields: []notify.Field{
			{Label: "Request", Value: shortID(id)},
			{Label: "Requester", Value: displayName(p)},
			{Label: "Item", Value: item.Title},
			{Label: "Vault", Value: vault.Path},
			{Label: "Reason", Value: reason},
		},
		Link: s.alerter.link("/breakglass"),
	}, models.SubjectBreakGlass, id)

	return &BreakGlassResult{Request: out, AlertDelivered: delivered}, nil
}

// Approve records p's approval. The first approval keeps the request
// pending; a second, distinct approver moves it to approved.
func (s *BreakGlassService) Approve(ctx context.Context, p models.Principal, id string) (*BreakGlassResult, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrNotApprover
	}

	var (
		out      *models.BreakGlassRequest
		approval int
	)
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		req, err := tx.BreakGlass().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case req.RequesterID == p.ID:
			return common.ErrSelfApproval
		case req.HasApproved(p.ID):
			return common.ErrDuplicateApprover
		case req.Status == models.BreakGlassRevoked:
			return errBreakGlassRevoked
		case req.Approvals() >= 2:
			return errBreakGlassFullyApproved
		}

		at := now.UTC()
		approver := p.ID
		if req.Approver1ID == nil {
			req.Approver1ID, req.Approver1At = &approver, &at
			approval = 1
		} else {
			req.Approver2ID, req.Approver2At = &approver, &at
			req.Status = models.BreakGlassApproved
			approval = 2
		}
		if err := tx.BreakGlass().Update(ctx, req); err != nil {
			return err
		}

		it, err := tx.Items().Get(ctx, req.ItemID)
		if err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventBreakGlassApproved, models.SubjectBreakGlass, id, now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = req.ItemID
		e.Details["approval"] = approval
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BreakGlassEvents.WithLabelValues("approved").Inc()
	s.logger.Info(ctx, "break-glass approved", "request_id", id, "approver", p.ID, "approval", approval)

	delivered := s.alerter.Critical(ctx, notify.Alert{
		Priority: notify.PriorityHigh,
		Title:    fmt.Sprintf("Break-glass approval %d/2", approval),
		Fields: []notify.Field{
			{Label: "Request", Value: shortID(id)},
			{Label: "Approver", Value: displayName(p)},
			{Label: "Status", Value: string(out.Status)},
		},
		Link: s.alerter.link("/breakglass"),
	}, models.SubjectBreakGlass, id)

	return &BreakGlassResult{Request: out, AlertDelivered: delivered}, nil
}

// Revoke ends the access a break-glass request grants.
func (s *BreakGlassService) Revoke(ctx context.Context, p models.Principal, id, reason string) (*BreakGlassResult, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrNotApprover
	}
	reason = strings.TrimSpace(reason)

	var out *models.BreakGlassRequest
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		req, err := tx.BreakGlass().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.RequesterID == p.ID {
			return common.ErrSelfApproval
		}
		if req.Status == models.BreakGlassRevoked {
			return errBreakGlassRevoked
		}

		at := now.UTC()
		by := p.ID
		req.Status = models.BreakGlassRevoked
		req.RevokedBy, req.RevokedAt = &by, &at
		if err := tx.BreakGlass().Update(ctx, req); err != nil {
			return err
		}

		it, err := tx.Items().Get(ctx, req.ItemID)
		if err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventBreakGlassRevoked, models.SubjectBreakGlass, id, now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = req.ItemID
		if reason != "" {
			e.Details["reason"] = reason
		}
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BreakGlassEvents.WithLabelValues("revoked").Inc()
	s.logger.Info(ctx, "break-glass revoked", "request_id", id, "by", p.ID)

	delivered := s.alerter.Critical(ctx, notify.Alert{
		Priority: notify.PriorityHigh,
		Title:    "Break-glass access revoked",
		Fields: []notify.Field{
			{Label: "Request", Value: shortID(id)},
			{Label: "Revoked by", Value: displayName(p)},
		},
		Link: s.alerter.link("/breakglass"),
	}, models.SubjectBreakGlass, id)

	return &BreakGlassResult{Request: out, AlertDelivered: delivered}, nil
}

// Get is open to approvers and to the requester of the request.
func (s *BreakGlassService) Get(ctx context.Context, p models.Principal, id string) (*models.BreakGlassRequest, error) {
	var out *models.BreakGlassRequest
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		req, err := r.BreakGlass().Get(ctx, id)
		if err != nil {
			return err
		}
		if req.RequesterID != p.ID && !p.Role.CanApprove() {
			return common.ErrForbidden
		}
		out = req
		return nil
	})
	return out, err
}

func (s *BreakGlassService) List(ctx context.Context, p models.Principal, f breakglass.Filter) ([]*models.BreakGlassRequest, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrNotApprover
	}
	var out []*models.BreakGlassRequest
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		out, err = r.BreakGlass().List(ctx, f)
		return err
	})
	return out, err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
