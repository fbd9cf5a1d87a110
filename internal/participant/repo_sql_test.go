package participant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, SQLite)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	runRepositoryContract(t, newSQLiteRepo, uuid.NewString())
}

func TestSQLiteRejectsUnknownStatus(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := &Participant{Name: "P", Email: DefaultEmail, Phone: DefaultPhone, Filename: "f.jpg", Status: StatusNotEntered}
	require.NoError(t, repo.Insert(ctx, p))

	assert.Error(t, repo.UpdateStatus(ctx, p.ID, Status("Teleported")), "check constraint guards the enumeration")
}

func TestRebind(t *testing.T) {
	q := `UPDATE participants SET status = ? WHERE id = ?`
	assert.Equal(t, `UPDATE participants SET status = $1 WHERE id = $2`, Postgres.rebind(q))
	assert.Equal(t, q, SQLite.rebind(q))
}
