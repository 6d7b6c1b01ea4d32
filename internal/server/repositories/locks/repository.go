package locks

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type Repository interface {
	// Acquire inserts lock unless the item is already locked. It returns the
	// lock now in place and whether it is the one just inserted.
	Acquire(ctx context.Context, lock *models.CheckoutLock) (*models.CheckoutLock, bool, error)
	// Get returns the live lock for itemID or common.ErrNotFound.
	Get(ctx context.Context, itemID string) (*models.CheckoutLock, error)
	// Release deletes the lock only if holderID holds it.
	Release(ctx context.Context, itemID, holderID string) (bool, error)
}
