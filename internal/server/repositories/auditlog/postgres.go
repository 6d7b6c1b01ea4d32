package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
	}

	query :=
		`INSERT INTO audit_log (ts, actor_id, actor_email, event_type, subject_type, subject_id,
		                        vault_id, ip_address, user_agent, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		e.Timestamp, e.ActorID, e.ActorEmail, string(e.EventType), string(e.SubjectType), e.SubjectID,
		e.VaultID, e.IPAddress, e.UserAgent, string(details)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.EventType != "" {
		add("event_type = $%d", string(f.EventType))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.SubjectID != "" {
		add("subject_id = $%d", f.SubjectID)
	}
	if f.VaultID != "" {
		add("vault_id = $%d", f.VaultID)
	}
	if !f.From.IsZero() {
		add("ts >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("ts <= $%d", f.To)
	}

	query := `SELECT id, ts, actor_id, actor_email, event_type, subject_type, subject_id,
		        vault_id, ip_address, user_agent, details
		 FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, NormalizeLimit(f.Limit))
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var evt, subj string
		var details []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.ActorEmail, &evt, &subj, &e.SubjectID,
			&e.VaultID, &e.IPAddress, &e.UserAgent, &details); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.EventType = models.EventType(evt)
		e.SubjectType = models.SubjectType(subj)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
