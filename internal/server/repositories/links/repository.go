package links

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, l *models.OneTimeLink) error
	Get(ctx context.Context, token string) (*models.OneTimeLink, error)
	// Consume marks the link consumed if it is unconsumed and unexpired at
	// now. Exactly one concurrent caller sees true.
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
	// DeleteExpired removes links whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
