package vaults

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+vaults\s*\(id,\s*name,\s*type,\s*parent_id,\s*path,\s*owner_id,\s*created_at\)`).
		WithArgs("v1", "Acme", "client", nil, "Acme", "u1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Vault{ID: "v1", Name: "Acme", Type: models.VaultClient, Path: "Acme", OwnerID: "u1", CreatedAt: now})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+vaults`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Vault{ID: "v1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	parent := "root"
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "type", "parent_id", "path", "owner_id", "created_at"}).
		AddRow("v2", "Ads", "squad", parent, "Acme/Ads", "u1", now)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name,.*FROM\s+vaults\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("v2").
		WillReturnRows(rows)

	v, err := repo.Get(context.Background(), "v2")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if v.Type != models.VaultSquad || v.ParentID == nil || *v.ParentID != "root" || v.Path != "Acme/Ads" {
		t.Fatalf("unexpected vault: %+v", v)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+vaults`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}
