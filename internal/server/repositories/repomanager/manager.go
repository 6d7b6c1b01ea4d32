// Package repomanager vends repositories bound to a single transaction.
// Every state change and its audit entry are written through the same
// Repositories value so they commit or roll back together.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/breakglass"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/locks"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/vaults"
)

// Repositories is the set of repositories visible inside one transaction.
type Repositories interface {
	Vaults() vaults.Repository
	Items() items.Repository
	Locks() locks.Repository
	JIT() jit.Repository
	BreakGlass() breakglass.Repository
	Links() links.Repository
	Audit() auditlog.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// WithTx runs fn in a transaction. A non-nil error from fn rolls back
	// everything fn wrote.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Close() error
}
