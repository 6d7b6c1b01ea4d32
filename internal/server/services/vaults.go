package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type VaultInput struct {
	Name     string           `json:"name"`
	Type     models.VaultType `json:"type"`
	ParentID *string          `json:"parent_id,omitempty"`
}

type VaultService struct {
	runner *Runner
	logger logging.Logger
	now    func() time.Time
}

func NewVaultService(runner *Runner, logger logging.Logger) *VaultService {
	return &VaultService{runner: runner, logger: logger.With("module", "vaults"), now: time.Now}
}

func validVaultType(t models.VaultType) bool {
	switch t {
	case models.VaultClient, models.VaultProduct, models.VaultSquad:
		return true
	}
	return false
}

// Create adds a vault under ParentID, or a root vault when it is nil.
func (s *VaultService) Create(ctx context.Context, p models.Principal, in VaultInput) (*models.Vault, error) {
	if !p.Role.CanApprove() {
		return nil, common.ErrForbidden
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: vault name must be non-empty and must not contain '/'", common.ErrValidation)
	}
	if !validVaultType(in.Type) {
		return nil, fmt.Errorf("%w: unknown vault type %q", common.ErrValidation, in.Type)
	}

	id := uuid.NewString()
	var out *models.Vault
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		path := name
		if in.ParentID != nil {
			parent, err := tx.Vaults().Get(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			path = parent.Path + "/" + name
		}
		v := &models.Vault{
			ID:        id,
			Name:      name,
			Type:      in.Type,
			ParentID:  in.ParentID,
			Path:      path,
			OwnerID:   p.ID,
			CreatedAt: now.UTC(),
		}
		if err := tx.Vaults().Create(ctx, v); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventVaultCreated, models.SubjectVault, id, now)
		e.VaultID = id
		e.Details["path"] = path
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "vault created", "vault_id", id, "path", out.Path)
	return out, nil
}

func (s *VaultService) Get(ctx context.Context, id string) (*models.Vault, error) {
	var out *models.Vault
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		out, err = r.Vaults().Get(ctx, id)
		return err
	})
	return out, err
}
