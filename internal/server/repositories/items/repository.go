package items

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, it *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, error)
}
