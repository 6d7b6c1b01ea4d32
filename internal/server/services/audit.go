package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/audit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// AuditService reads the audit trail. Writing happens only through Tx.Record.
type AuditService struct {
	runner   *Runner
	exporter audit.Exporter
	logger   logging.Logger
	now      func() time.Time
}

// NewAuditService builds the service; exporter may be nil when no export
// target is configured.
func NewAuditService(runner *Runner, exporter audit.Exporter, logger logging.Logger) *AuditService {
	return &AuditService{runner: runner, exporter: exporter, logger: logger.With("module", "audit"), now: time.Now}
}

func (s *AuditService) Query(ctx context.Context, p models.Principal, f models.AuditFilter) ([]*models.AuditEntry, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrForbidden
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: time range ends before it starts", common.ErrValidation)
	}
	f.Limit = auditlog.NormalizeLimit(f.Limit)

	var out []*models.AuditEntry
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		out, err = r.Audit().Query(ctx, f)
		return err
	})
	return out, err
}

// Export ships the matching entries to the configured object store and
// returns the object location. Admins only.
func (s *AuditService) Export(ctx context.Context, p models.Principal, f models.AuditFilter) (string, error) {
	if p.Role != models.RoleAdmin {
		return "", common.ErrForbidden
	}
	if s.exporter == nil {
		return "", fmt.Errorf("%w: audit export is not configured", common.ErrValidation)
	}

	entries, err := s.Query(ctx, p, f)
	if err != nil {
		return "", err
	}
	location, err := s.exporter.Export(ctx, entries)
	if err != nil {
		s.logger.Error(ctx, "audit export failed", "error", err)
		return "", err
	}

	e := newEntry(ctx, p, models.EventAuditExported, models.SubjectAudit, location, s.now())
	e.Details["count"] = len(entries)
	if err := s.runner.Record(ctx, e); err != nil {
		return "", err
	}
	s.logger.Info(ctx, "audit exported", "location", location, "count", len(entries))
	return location, nil
}
