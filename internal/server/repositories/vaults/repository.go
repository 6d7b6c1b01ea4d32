package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Vault) error
	Get(ctx context.Context, id string) (*models.Vault, error)
}
