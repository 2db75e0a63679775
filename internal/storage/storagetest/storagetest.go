// Package storagetest provides database helpers for tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablemeta/internal/storage"
)

// OpenSQLite opens an initialized sqlite metadata database in a temporary
// directory. The database is closed when the test finishes.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := storage.OpenSQLiteFile(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Initialize(context.Background(), db))
	return db
}

// NewPool returns a sqlite-backed pool rooted in a temporary directory.
func NewPool(t testing.TB) *storage.Pool {
	t.Helper()

	pool := storage.NewPool(storage.SQLiteOpener(t.TempDir()))
	t.Cleanup(func() { pool.Close() })
	return pool
}
