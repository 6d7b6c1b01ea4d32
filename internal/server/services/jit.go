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
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AllowedJITHours are the grant durations a request can ask for.
var AllowedJITHours = []int{1, 2, 4, 8, 24}

const DefaultJITHours = 2

// NormalizeJITHours maps a requested duration onto the allow-list: the
// smallest allowed value not below the request, capped at the largest.
// Zero selects the default.
func NormalizeJITHours(h int) (int, error) {
	if h < 0 {
		return 0, fmt.Errorf("%w: duration must not be negative", common.ErrValidation)
	}
	if h == 0 {
		return DefaultJITHours, nil
	}
	for _, a := range AllowedJITHours {
		if h <= a {
			return a, nil
		}
	}
	return AllowedJITHours[len(AllowedJITHours)-1], nil
}

type JITService struct {
	runner  *Runner
	alerter *Alerter
	logger  logging.Logger
	now     func() time.Time
}

func NewJITService(runner *Runner, alerter *Alerter, logger logging.Logger) *JITService {
	return &JITService{runner: runner, alerter: alerter, logger: logger.With("module", "jit"), now: time.Now}
}

// Request files a pending JIT request by p for itemID.
func (s *JITService) Request(ctx context.Context, p models.Principal, itemID, reason string, hours int) (*models.JITRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, common.ErrEmptyReason
	}
	hours, err := NormalizeJITHours(hours)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var (
		out  *models.JITRequest
		item *models.Item
	)
	err = s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		req := &models.JITRequest{
			ID:            id,
			ItemID:        itemID,
			RequesterID:   p.ID,
			RequesterMail: p.Email,
			Reason:        reason,
			DurationHours: hours,
			Status:        models.JITPending,
			CreatedAt:     now.UTC(),
		}
		if err := tx.JIT().Create(ctx, req); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventJITRequested, models.SubjectJIT, id, now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = itemID
		e.Details["reason"] = reason
		e.Details["duration_hours"] = hours
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out, item = req, it
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.JITDecisions.WithLabelValues(string(models.JITPending)).Inc()
	s.logger.Info(ctx, "jit requested", "request_id", id, "item_id", itemID, "requester", p.ID, "hours", hours)
	s.alerter.Notify(ctx, notify.Alert{
		Priority: notify.PriorityNormal,
		Title:    "JIT access request",
		Text:     fmt.Sprintf("%s requests %dh access", displayName(p), hours),
		Fields: []notify.Field{
			{Label: "Item", Value: item.Title},
			{Label: "Reason", Value: reason},
		},
		Link: s.alerter.link("/jit"),
	})
	return out, nil
}

func (s *JITService) Approve(ctx context.Context, p models.Principal, id string) (*models.JITRequest, error) {
	return s.decide(ctx, p, id, true)
}

func (s *JITService) Deny(ctx context.Context, p models.Principal, id string) (*models.JITRequest, error) {
	return s.decide(ctx, p, id, false)
}

func (s *JITService) decide(ctx context.Context, p models.Principal, id string, approve bool) (*models.JITRequest, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrNotApprover
	}

	var out *models.JITRequest
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		req, err := tx.JIT().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.RequesterID == p.ID {
			return common.ErrSelfApproval
		}
		if req.Status != models.JITPending {
			return common.ErrAlreadyDecided
		}

		decided := now.UTC()
		approver := p.ID
		req.ApproverID = &approver
		req.DecidedAt = &decided

		ev := models.EventJITDenied
		req.Status = models.JITDenied
		if approve {
			ev = models.EventJITApproved
			req.Status = models.JITApproved
			exp := decided.Add(req.Duration())
			req.ExpiresAt = &exp
		}
		if err := tx.JIT().Update(ctx, req); err != nil {
			return err
		}

		it, err := tx.Items().Get(ctx, req.ItemID)
		if err != nil {
			return err
		}
		e := newEntry(ctx, p, ev, models.SubjectJIT, id, now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = req.ItemID
		e.Details["requester_id"] = req.RequesterID
		if req.ExpiresAt != nil {
			e.Details["expires_at"] = req.ExpiresAt.Format(time.RFC3339)
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

	metrics.JITDecisions.WithLabelValues(string(out.Status)).Inc()
	s.logger.Info(ctx, "jit decided", "request_id", id, "status", out.Status, "approver", p.ID)
	return out, nil
}

// Get returns the request with its status as of now. Only the requester and
// approvers may read it.
func (s *JITService) Get(ctx context.Context, p models.Principal, id string) (*models.JITRequest, error) {
	var out *models.JITRequest
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		req, err := r.JIT().Get(ctx, id)
		if err != nil {
			return err
		}
		if req.RequesterID != p.ID && !p.Role.CanApprove() {
			return common.ErrForbidden
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Status = out.EffectiveStatus(s.now())
	return out, nil
}

// List returns requests visible to p, newest first. Non-approvers only see
// their own. Status filters apply to the effective status.
func (s *JITService) List(ctx context.Context, p models.Principal, f jit.Filter) ([]*models.JITRequest, error) {
	if !p.Role.CanApprove() {
		f.RequesterID = p.ID
	}
	want := f.Status
	if want == models.JITApproved || want == models.JITExpired {
		f.Status = ""
	}

	var rows []*models.JITRequest
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		rows, err = r.JIT().List(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*models.JITRequest, 0, len(rows))
	for _, req := range rows {
		req.Status = req.EffectiveStatus(now)
		if want != "" && req.Status != want {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// ActiveGrant returns the grant that currently authorizes principalID on
// itemID, or common.ErrNotFound.
func (s *JITService) ActiveGrant(ctx context.Context, principalID, itemID string) (*models.JITRequest, error) {
	var out *models.JITRequest
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		out, err = r.JIT().FindActive(ctx, principalID, itemID, s.now())
		return err
	})
	return out, err
}

// ExpireDue persists approved→expired for grants whose time is up. Each
// transition is audited with the system actor. It returns how many grants
// it expired.
func (s *JITService) ExpireDue(ctx context.Context, batch int) (int, error) {
	var due []*models.JITRequest
	now := s.now()
	if err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		due, err = r.JIT().ListExpired(ctx, now, batch)
		return err
	}); err != nil {
		return 0, err
	}

	n := 0
	for _, req := range due {
		var expired bool
		err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
			expired = false
			ok, err := tx.JIT().MarkExpired(ctx, req.ID)
			if err != nil || !ok {
				return err
			}
			e := newEntry(ctx, systemPrincipal, models.EventJITExpired, models.SubjectJIT, req.ID, s.now())
			e.Details["item_id"] = req.ItemID
			e.Details["requester_id"] = req.RequesterID
			expired = true
			return tx.Record(ctx, e)
		})
		if err != nil {
			return n, err
		}
		if expired {
			n++
		}
	}
	if n > 0 {
		metrics.JITDecisions.WithLabelValues(string(models.JITExpired)).Add(float64(n))
	}
	return n, nil
}

func displayName(p models.Principal) string {
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}
