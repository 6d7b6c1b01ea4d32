package items

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, it *models.Item) error {
	meta, err := json.Marshal(it.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query :=
		`INSERT INTO items (id, vault_id, kind, title, login, login_url, encrypted_payload, metadata,
		                    environment, criticality, requires_checkout, no_copy, expires_at,
		                    created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = r.db.ExecContext(ctx, query,
		it.ID, it.VaultID, it.Kind, it.Title, it.Login, it.LoginURL, it.EncryptedPayload, string(meta),
		string(it.Environment), string(it.Criticality), it.RequiresCheckout, it.NoCopy, it.ExpiresAt,
		it.CreatedBy, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	query :=
		`SELECT id, vault_id, kind, title, login, login_url, encrypted_payload, metadata,
		        environment, criticality, requires_checkout, no_copy, expires_at,
		        created_by, created_at, updated_at
		 FROM items WHERE id = $1`

	it := &models.Item{}
	var meta []byte
	var env, crit string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&it.ID, &it.VaultID, &it.Kind, &it.Title, &it.Login, &it.LoginURL, &it.EncryptedPayload, &meta,
		&env, &crit, &it.RequiresCheckout, &it.NoCopy, &it.ExpiresAt,
		&it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &it.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	it.Environment = models.Environment(env)
	it.Criticality = models.Criticality(crit)
	return it, nil
}
