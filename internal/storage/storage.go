// Package storage owns the per-namespace metadata databases: opening them,
// creating the bookkeeping tables and translating driver errors.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
)

// Querier is the subset of *sql.DB and *sql.Tx used by the metadata stores.
// Every store is bound to a Querier so the same code runs inside and outside
// a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	// TableDefinitionsTable holds one structural record per table
	TableDefinitionsTable = "_table_definitions"
	// ColumnDefinitionsTable holds the column catalog of every table
	ColumnDefinitionsTable = "_column_definitions"
	// KeyValueStoreTable holds the metadata overlay
	KeyValueStoreTable = "_key_value_store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS _table_definitions (
	_table_id TEXT NOT NULL PRIMARY KEY,
	_schema_etag TEXT NULL,
	_last_data_etag TEXT NULL,
	_last_sync_time TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS _column_definitions (
	_table_id TEXT NOT NULL,
	_element_key TEXT NOT NULL,
	_element_name TEXT NOT NULL,
	_element_type TEXT NOT NULL,
	_parent_key TEXT NULL,
	_is_unit_of_retention INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (_table_id, _element_key)
)`,
	`CREATE TABLE IF NOT EXISTS _key_value_store (
	_table_id TEXT NOT NULL,
	_partition TEXT NOT NULL,
	_aspect TEXT NOT NULL,
	_key TEXT NOT NULL,
	_type TEXT NOT NULL,
	_value TEXT NULL,
	PRIMARY KEY (_table_id, _partition, _aspect, _key)
)`,
}

// Initialize ensures the bookkeeping tables exist. It is safe to call on
// every open.
func Initialize(ctx context.Context, db Querier) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize metadata schema: %w", err)
		}
	}
	return nil
}

// ValidateNamespace rejects namespaces that cannot be used as a directory or
// schema name.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if namespace == "." || namespace == ".." || strings.ContainsAny(namespace, `/\`) {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	if filepath.Base(namespace) != namespace {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	return nil
}
