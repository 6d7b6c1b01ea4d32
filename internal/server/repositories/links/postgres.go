package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, l *models.OneTimeLink) error {
	query :=
		`INSERT INTO onetime_links (token, item_id, inline_payload, created_by, created_at, expires_at, consumed)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

	_, err := r.db.ExecContext(ctx, query, l.Token, l.ItemID, l.InlinePayload, l.CreatedBy, l.CreatedAt, l.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, token string) (*models.OneTimeLink, error) {
	query :=
		`SELECT token, item_id, inline_payload, created_by, created_at, expires_at, consumed, consumed_at
		 FROM onetime_links WHERE token = $1`

	l := &models.OneTimeLink{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&l.Token, &l.ItemID, &l.InlinePayload, &l.CreatedBy, &l.CreatedAt, &l.ExpiresAt, &l.Consumed, &l.ConsumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

// Consume also drops the inline ciphertext; the row stays as a tombstone
// until the purge.
func (r *PostgresRepository) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	query :=
		`UPDATE onetime_links
		 SET consumed = TRUE, consumed_at = $2, inline_payload = NULL
		 WHERE token = $1 AND consumed = FALSE AND expires_at > $2`

	res, err := r.db.ExecContext(ctx, query, token, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.Affected(res)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM onetime_links WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
