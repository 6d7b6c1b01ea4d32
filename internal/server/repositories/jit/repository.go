package jit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	RequesterID string
	ItemID      string
	Status      models.JITStatus
}

type Repository interface {
	Create(ctx context.Context, r *models.JITRequest) error
	Get(ctx context.Context, id string) (*models.JITRequest, error)
	// GetForUpdate reads the request and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.JITRequest, error)
	// Update persists the decision fields.
	Update(ctx context.Context, r *models.JITRequest) error
	List(ctx context.Context, f Filter) ([]*models.JITRequest, error)
	// FindActive returns the approved, unexpired grant for the pair or
	// common.ErrNotFound.
	FindActive(ctx context.Context, requesterID, itemID string, now time.Time) (*models.JITRequest, error)
	// ListExpired returns approved grants whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.JITRequest, error)
	// MarkExpired flips approved to expired if the grant is still approved.
	MarkExpired(ctx context.Context, id string) (bool, error)
}
