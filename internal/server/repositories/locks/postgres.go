package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Acquire relies on the primary key on item_id: a concurrent insert for the
// same item blocks until the other transaction finishes and then does nothing.
func (r *PostgresRepository) Acquire(ctx context.Context, lock *models.CheckoutLock) (*models.CheckoutLock, bool, error) {
	query :=
		`INSERT INTO checkout_locks (item_id, holder_id, acquired_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (item_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, lock.ItemID, lock.HolderID, lock.AcquiredAt)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	inserted, err := dbx.Affected(res)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	if inserted {
		return lock, true, nil
	}

	current, err := r.Get(ctx, lock.ItemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: lock released concurrently", common.ErrConflict)
		}
		return nil, false, err
	}
	return current, false, nil
}

func (r *PostgresRepository) Get(ctx context.Context, itemID string) (*models.CheckoutLock, error) {
	query :=
		`SELECT item_id, holder_id, acquired_at FROM checkout_locks
		 WHERE item_id = $1`

	l := &models.CheckoutLock{}
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(&l.ItemID, &l.HolderID, &l.AcquiredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Release(ctx context.Context, itemID, holderID string) (bool, error) {
	query :=
		`DELETE FROM checkout_locks
		 WHERE item_id = $1 AND holder_id = $2`

	res, err := r.db.ExecContext(ctx, query, itemID, holderID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.Affected(res)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
