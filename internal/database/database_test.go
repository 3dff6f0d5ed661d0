package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db, "sqlite"))
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := openMemory(t)

	for _, table := range []string{"users", "refresh_tokens", "notes", "notifications", "activity_logs", "tenders", "documents"} {
		var n int
		err := db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMemory(t)
	assert.NoError(t, Migrate(context.Background(), db, "sqlite"))
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openMemory(t)
	var on int
	require.NoError(t, db.Get(&on, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, on)
}

func TestWithTxRollsBack(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (username, email, password_hash, created_at, updated_at)
			VALUES ('bob', 'bob@example.com', 'x', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 0, n)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
	assert.Error(t, Migrate(context.Background(), nil, "oracle"))
}
