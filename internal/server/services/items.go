package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/itemkinds"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type ItemInput struct {
	VaultID          string             `json:"vault_id"`
	Kind             string             `json:"kind"`
	Title            string             `json:"title"`
	Login            string             `json:"login,omitempty"`
	LoginURL         string             `json:"login_url,omitempty"`
	Secret           string             `json:"secret"`
	Fields           map[string]string  `json:"fields,omitempty"`
	Environment      models.Environment `json:"environment,omitempty"`
	Criticality      models.Criticality `json:"criticality,omitempty"`
	RequiresCheckout bool               `json:"requires_checkout"`
	NoCopy           bool               `json:"no_copy"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
}

// ItemView is item metadata plus its checkout holder. It never carries
// plaintext.
type ItemView struct {
	*models.Item
	CheckedOutBy *string `json:"checked_out_by,omitempty"`
}

type ItemService struct {
	runner   *Runner
	sealer   Sealer
	registry *itemkinds.Registry
	logger   logging.Logger
	now      func() time.Time
}

func NewItemService(runner *Runner, sealer Sealer, registry *itemkinds.Registry, logger logging.Logger) *ItemService {
	return &ItemService{runner: runner, sealer: sealer, registry: registry, logger: logger.With("module", "items"), now: time.Now}
}

func normalizeItemInput(in *ItemInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if in.VaultID == "" {
		return fmt.Errorf("%w: vault_id is required", common.ErrValidation)
	}
	switch in.Environment {
	case "":
		in.Environment = models.EnvProd
	case models.EnvProd, models.EnvStage:
	default:
		return fmt.Errorf("%w: unknown environment %q", common.ErrValidation, in.Environment)
	}
	switch in.Criticality {
	case "":
		in.Criticality = models.CriticalityMedium
	case models.CriticalityHigh, models.CriticalityMedium, models.CriticalityLow:
	default:
		return fmt.Errorf("%w: unknown criticality %q", common.ErrValidation, in.Criticality)
	}
	return nil
}

// Create stores a new item with its secret sealed. Clients cannot create.
func (s *ItemService) Create(ctx context.Context, p models.Principal, in ItemInput) (*models.Item, error) {
	if p.Role == models.RoleClient || !p.Role.Valid() {
		return nil, common.ErrForbidden
	}
	if err := normalizeItemInput(&in); err != nil {
		return nil, err
	}
	plain, secretFields, err := s.registry.Split(in.Kind, in.Fields)
	if err != nil {
		return nil, err
	}
	if in.Secret == "" && len(secretFields) == 0 {
		return nil, fmt.Errorf("%w: secret is required", common.ErrValidation)
	}

	sp := models.SecretPayload{Secret: in.Secret}
	if len(secretFields) > 0 {
		sp.Fields = secretFields
	}
	sealed, err := sealPayload(s.sealer, sp)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var out *models.Item
	err = s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now().UTC()
		if _, err := tx.Vaults().Get(ctx, in.VaultID); err != nil {
			return err
		}
		it := &models.Item{
			ID:               id,
			VaultID:          in.VaultID,
			Kind:             in.Kind,
			Title:            in.Title,
			Login:            in.Login,
			LoginURL:         in.LoginURL,
			EncryptedPayload: sealed,
			Metadata:         plain,
			Environment:      in.Environment,
			Criticality:      in.Criticality,
			RequiresCheckout: in.RequiresCheckout,
			NoCopy:           in.NoCopy,
			ExpiresAt:        in.ExpiresAt,
			CreatedBy:        p.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Items().Create(ctx, it); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventItemCreated, models.SubjectItem, id, now)
		e.VaultID = in.VaultID
		e.Details["kind"] = in.Kind
		e.Details["title"] = in.Title
		e.Details["criticality"] = string(in.Criticality)
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "item created", "item_id", id, "vault_id", in.VaultID, "kind", in.Kind)
	return out, nil
}

// Get returns item metadata and its checkout holder. Clients see only items
// they currently have access to.
func (s *ItemService) Get(ctx context.Context, p models.Principal, id string) (*ItemView, error) {
	var out *ItemView
	err := s.runner.View(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		it, err := r.Items().Get(ctx, id)
		if err != nil {
			return err
		}
		if p.Role == models.RoleClient {
			d, err := evaluateAccess(ctx, r, p, it, s.now())
			if err != nil {
				return err
			}
			if !d.Allowed() {
				return common.ErrForbidden
			}
		}
		view := &ItemView{Item: it}
		lock, err := r.Locks().Get(ctx, id)
		switch {
		case err == nil:
			view.CheckedOutBy = &lock.HolderID
		case !errors.Is(err, common.ErrNotFound):
			return err
		}
		out = view
		return nil
	})
	return out, err
}

// Schema returns the field layout for kind.
func (s *ItemService) Schema(kind string) (itemkinds.Schema, error) {
	return s.registry.Lookup(kind)
}

func (s *ItemService) Kinds() []string {
	return s.registry.Kinds()
}
