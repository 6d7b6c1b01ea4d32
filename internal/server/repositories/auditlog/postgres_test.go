package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

var cols = []string{"id", "ts", "actor_id", "actor_email", "event_type", "subject_type", "subject_id",
	"vault_id", "ip_address", "user_agent", "details"}

func TestAppend_SetsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+audit_log.*RETURNING\s+id$`).
		WithArgs(now, "alice", "alice@corp", "item_checked_out", "item", "i1", "v1", "10.0.0.1", "curl", `{"k":"v"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	e := &models.AuditEntry{
		Timestamp: now, ActorID: "alice", ActorEmail: "alice@corp", EventType: models.EventItemCheckedOut,
		SubjectType: models.SubjectItem, SubjectID: "i1", VaultID: "v1", IPAddress: "10.0.0.1", UserAgent: "curl",
		Details: map[string]any{"k": "v"},
	}
	require.NoError(t, repo.Append(context.Background(), e))
	assert.Equal(t, int64(17), e.ID)
}

func TestAppend_EmptyDetails(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+audit_log`).
		WithArgs(sqlmock.AnyArg(), "", "", "", "", "", "", "", "", "{}").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	require.NoError(t, repo.Append(context.Background(), &models.AuditEntry{}))
}

func TestAppend_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+audit_log`).WillReturnError(errors.New("disk full"))

	err := repo.Append(context.Background(), &models.AuditEntry{})
	if err == nil || !regexp.MustCompile(`db error: .*disk full`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestQuery_Filters(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(`(?s)FROM\s+audit_log\s+WHERE\s+event_type\s*=\s*\$1\s+AND\s+actor_id\s*=\s*\$2\s+AND\s+ts\s*>=\s*\$3\s+AND\s+ts\s*<=\s*\$4\s+ORDER\s+BY\s+id\s+DESC\s+LIMIT\s+\$5$`).
		WithArgs("jit_approved", "bob", from, to, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), from, "bob", "", "jit_approved", "jit_request", "r1", "", "", "", []byte(`{"expires_at":"x"}`)))

	out, err := repo.Query(context.Background(), models.AuditFilter{
		EventType: models.EventJITApproved, ActorID: "bob", From: from, To: to, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.SubjectJIT, out[0].SubjectType)
	assert.Equal(t, "x", out[0].Details["expires_at"])
}

func TestQuery_DefaultLimit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+audit_log\s+ORDER\s+BY\s+id\s+DESC\s+LIMIT\s+\$1$`).
		WithArgs(DefaultLimit).
		WillReturnRows(sqlmock.NewRows(cols))

	out, err := repo.Query(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 5, NormalizeLimit(5))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}
