package jit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const columns = `id, item_id, requester_id, requester_email, reason, duration_hours, status,
		        approver_id, decided_at, created_at, expires_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.JITRequest, error) {
	r := &models.JITRequest{}
	var status string
	err := s.Scan(&r.ID, &r.ItemID, &r.RequesterID, &r.RequesterMail, &r.Reason, &r.DurationHours, &status,
		&r.ApproverID, &r.DecidedAt, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.JITStatus(status)
	return r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.JITRequest) error {
	query :=
		`INSERT INTO jit_requests (id, item_id, requester_id, requester_email, reason, duration_hours, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, req.ID, req.ItemID, req.RequesterID, req.RequesterMail,
		req.Reason, req.DurationHours, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.JITRequest, error) {
	req, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.JITRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM jit_requests WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.JITRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM jit_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) Update(ctx context.Context, req *models.JITRequest) error {
	query :=
		`UPDATE jit_requests
		 SET status = $2, approver_id = $3, decided_at = $4, expires_at = $5
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, req.ID, string(req.Status), req.ApproverID, req.DecidedAt, req.ExpiresAt)
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

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.JITRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.JITRequest
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

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.JITRequest, error) {
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

	query := `SELECT ` + columns + ` FROM jit_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	return r.queryMany(ctx, query, args...)
}

func (r *PostgresRepository) FindActive(ctx context.Context, requesterID, itemID string, now time.Time) (*models.JITRequest, error) {
	query := `SELECT ` + columns + ` FROM jit_requests
		 WHERE requester_id = $1 AND item_id = $2 AND status = 'approved' AND expires_at >= $3
		 ORDER BY expires_at DESC LIMIT 1`
	return r.getOne(ctx, query, requesterID, itemID, now)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.JITRequest, error) {
	query := `SELECT ` + columns + ` FROM jit_requests
		 WHERE status = 'approved' AND expires_at < $1
		 ORDER BY expires_at LIMIT $2`
	return r.queryMany(ctx, query, now, limit)
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE jit_requests SET status = 'expired'
		 WHERE id = $1 AND status = 'approved'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.Affected(res)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
