// Package auditlog stores the append-only audit trail. There is no update
// or delete in the contract.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Repository interface {
	// Append stores e and sets e.ID from the audit sequence.
	Append(ctx context.Context, e *models.AuditEntry) error
	// Query returns matching entries newest first.
	Query(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error)
}

// NormalizeLimit clamps a caller-supplied limit into [1, MaxLimit].
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
