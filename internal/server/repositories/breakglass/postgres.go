package breakglass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `id, item_id, requester_id, requester_email, reason, status,
		        approver1_id, approver1_at, approver2_id, approver2_at, revoked_by, revoked_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.BreakGlassRequest, error) {
	r := &models.BreakGlassRequest{}
	var status string
	err := s.Scan(&r.ID, &r.ItemID, &r.RequesterID, &r.RequesterMail, &r.Reason, &status,
		&r.Approver1ID, &r.Approver1At, &r.Approver2ID, &r.Approver2At, &r.RevokedBy, &r.RevokedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.BreakGlassStatus(status)
	return r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.BreakGlassRequest) error {
	query :=
		`INSERT INTO breakglass_requests (id, item_id, requester_id, requester_email, reason, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query, req.ID, req.ItemID, req.RequesterID, req.RequesterMail,
		req.Reason, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.BreakGlassRequest, error) {
	req, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.BreakGlassRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM breakglass_requests WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.BreakGlassRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM breakglass_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) Update(ctx context.Context, req *models.BreakGlassRequest) error {
	query :=
		`UPDATE breakglass_requests
		 SET status = $2, approver1_id = $3, approver1_at = $4, approver2_id = $5, approver2_at = $6,
		     revoked_by = $7, revoked_at = $8
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, req.ID, string(req.Status),
		req.Approver1ID, req.Approver1At, req.Approver2ID, req.Approver2At, req.RevokedBy, req.RevokedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.Affected(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !ok {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.BreakGlassRequest, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.RequesterID != "" {
		add("requester_id = $%d", f.RequesterID)
	}
	if f.ItemID != "" {
		add("item_id = $%d", f.ItemID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + columns + ` FROM breakglass_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.BreakGlassRequest
	for rows.Next() {
		req, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FindGranting(ctx context.Context, requesterID, itemID string) (*models.BreakGlassRequest, error) {
	query := `SELECT ` + columns + ` FROM breakglass_requests
		 WHERE requester_id = $1 AND item_id = $2 AND status IN ('pending', 'approved')
		 ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, requesterID, itemID)
}
