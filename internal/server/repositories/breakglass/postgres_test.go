package breakglass

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "item_id", "requester_id", "requester_email", "reason", "status",
	"approver1_id", "approver1_at", "approver2_id", "approver2_at", "revoked_by", "revoked_at", "created_at"}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+breakglass_requests`).
		WithArgs("b1", "i1", "alice", "", "prod down", "pending", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.BreakGlassRequest{
		ID: "b1", ItemID: "i1", RequesterID: "alice", Reason: "prod down", Status: models.BreakGlassPending, CreatedAt: now,
	})
	require.NoError(t, err)
}

func TestGetForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+breakglass_requests\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "i1", "alice", "", "x", "pending", "bob", now, nil, nil, nil, nil, now))

	r, err := repo.GetForUpdate(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Approvals())
	assert.True(t, r.HasApproved("bob"))
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+breakglass_requests`).WithArgs("x").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	a1, a2 := "bob", "carol"
	mock.ExpectExec(`(?s)^UPDATE\s+breakglass_requests\s+SET\s+status\s*=\s*\$2`).
		WithArgs("b1", "approved", "bob", now, "carol", now, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.BreakGlassRequest{
		ID: "b1", Status: models.BreakGlassApproved, Approver1ID: &a1, Approver1At: &now, Approver2ID: &a2, Approver2At: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_ByStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+status\s*=\s*\$1\s+ORDER\s+BY`).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "i1", "alice", "", "x", "pending", nil, nil, nil, nil, nil, nil, now))

	out, err := repo.List(context.Background(), Filter{Status: models.BreakGlassPending})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestFindGranting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)status\s+IN\s+\('pending',\s*'approved'\)`).
		WithArgs("alice", "i1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("b1", "i1", "alice", "", "x", "pending", nil, nil, nil, nil, nil, nil, now))
	mock.ExpectQuery(`status\s+IN`).
		WithArgs("alice", "i2").
		WillReturnError(sql.ErrNoRows)

	r, err := repo.FindGranting(context.Background(), "alice", "i1")
	require.NoError(t, err)
	assert.True(t, r.GrantsAccess())

	_, err = repo.FindGranting(context.Background(), "alice", "i2")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+breakglass_requests`).WillReturnError(errors.New("boom"))

	_, err := repo.List(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}
