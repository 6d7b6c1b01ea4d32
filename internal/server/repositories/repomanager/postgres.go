package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/breakglass"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/locks"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/vaults"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories and runs
// the embedded goose migrations.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// NewPostgresRepositoryManager wraps an open pgx-backed *sql.DB.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db}
}

// OpenPostgres opens and pings a pgx connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (m *PostgresRepositoryManager) Vaults(db dbx.DBTX) vaults.Repository {
	return vaults.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Locks(db dbx.DBTX) locks.Repository {
	return locks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) JIT(db dbx.DBTX) jit.Repository {
	return jit.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) BreakGlass(db dbx.DBTX) breakglass.Repository {
	return breakglass.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Links(db dbx.DBTX) links.Repository {
	return links.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) auditlog.Repository {
	return auditlog.NewPostgresRepository(db)
}

// txRepositories binds every repository to the same transaction handle.
type txRepositories struct {
	m  *PostgresRepositoryManager
	tx dbx.DBTX
}

func (r *txRepositories) Vaults() vaults.Repository         { return r.m.Vaults(r.tx) }
func (r *txRepositories) Items() items.Repository           { return r.m.Items(r.tx) }
func (r *txRepositories) Locks() locks.Repository           { return r.m.Locks(r.tx) }
func (r *txRepositories) JIT() jit.Repository               { return r.m.JIT(r.tx) }
func (r *txRepositories) BreakGlass() breakglass.Repository { return r.m.BreakGlass(r.tx) }
func (r *txRepositories) Links() links.Repository           { return r.m.Links(r.tx) }
func (r *txRepositories) Audit() auditlog.Repository        { return r.m.Audit(r.tx) }

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &txRepositories{m: m, tx: tx})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
