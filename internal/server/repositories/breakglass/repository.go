package breakglass

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	RequesterID string
	ItemID      string
	Status      models.BreakGlassStatus
}

type Repository interface {
	Create(ctx context.Context, r *models.BreakGlassRequest) error
	Get(ctx context.Context, id string) (*models.BreakGlassRequest, error)
	// GetForUpdate reads the request and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.BreakGlassRequest, error)
	// Update persists status, approvals and revocation.
	Update(ctx context.Context, r *models.BreakGlassRequest) error
	List(ctx context.Context, f Filter) ([]*models.BreakGlassRequest, error)
	// FindGranting returns a non-revoked request for the pair or common.ErrNotFound.
	FindGranting(ctx context.Context, requesterID, itemID string) (*models.BreakGlassRequest, error)
}
