// Package rowstore manages the data table that holds a table's rows.
package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/storage"
)

// Sync metadata columns present in every data table
const (
	ColumnID                 = "_id"
	ColumnRowETag            = "_row_etag"
	ColumnSyncState          = "_sync_state"
	ColumnConflictType       = "_conflict_type"
	ColumnDefaultAccess      = "_default_access"
	ColumnFormID             = "_form_id"
	ColumnLocale             = "_locale"
	ColumnSavepointType      = "_savepoint_type"
	ColumnSavepointTimestamp = "_savepoint_timestamp"
	ColumnSavepointCreator   = "_savepoint_creator"
)

var metadataColumns = []string{
	ColumnID + " TEXT NOT NULL",
	ColumnRowETag + " TEXT NULL",
	ColumnSyncState + " TEXT NOT NULL",
	ColumnConflictType + " INTEGER NULL",
	ColumnDefaultAccess + " TEXT NULL",
	ColumnFormID + " TEXT NULL",
	ColumnLocale + " TEXT NULL",
	ColumnSavepointType + " TEXT NULL",
	ColumnSavepointTimestamp + " TEXT NOT NULL",
	ColumnSavepointCreator + " TEXT NULL",
}

// Store creates, alters and drops data tables.
type Store struct {
	q storage.Querier
}

// NewStore binds a store to a database or transaction.
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

// CreateTable creates the data table of tableID with the sync metadata
// columns and one column per unit of retention in defs. It fails when a
// table named tableID already exists.
func (s *Store) CreateTable(ctx context.Context, tableID string, defs []column.Definition) error {
	cols := append([]string{}, metadataColumns...)
	for _, d := range defs {
		if d.UnitOfRetention {
			cols = append(cols, columnDDL(d))
		}
	}

	query := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)",
		pq.QuoteIdentifier(tableID), strings.Join(cols, ",\n\t"))
	if _, err := s.q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create data table %s: %w", tableID, err)
	}
	return nil
}

// AddColumn adds a unit-of-retention column to the data table of tableID.
func (s *Store) AddColumn(ctx context.Context, tableID string, def column.Definition) error {
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", pq.QuoteIdentifier(tableID), columnDDL(def))
	if _, err := s.q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to add column %s to %s: %w", def.ElementKey, tableID, err)
	}
	return nil
}

// DeleteTableAndData drops the data table of tableID and removes its
// structural record, column definitions and metadata overlay.
func (s *Store) DeleteTableAndData(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(tableID)); err != nil {
		return fmt.Errorf("failed to drop data table %s: %w", tableID, err)
	}

	for _, table := range []string{storage.TableDefinitionsTable, storage.ColumnDefinitionsTable, storage.KeyValueStoreTable} {
		query := fmt.Sprintf("DELETE FROM %s WHERE _table_id = $1", table)
		if _, err := s.q.ExecContext(ctx, query, tableID); err != nil {
			return fmt.Errorf("failed to purge %s from %s: %w", tableID, table, err)
		}
	}
	return nil
}

// HasCheckpoints reports whether any row of tableID is an incomplete
// checkpoint, i.e. has no savepoint type.
func (s *Store) HasCheckpoints(ctx context.Context, tableID string) (bool, error) {
	return s.exists(ctx, tableID, ColumnSavepointType+" IS NULL")
}

// HasConflicts reports whether any row of tableID is in conflict.
func (s *Store) HasConflicts(ctx context.Context, tableID string) (bool, error) {
	return s.exists(ctx, tableID, ColumnConflictType+" IS NOT NULL")
}

func (s *Store) exists(ctx context.Context, tableID, where string) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", pq.QuoteIdentifier(tableID), where)
	if err := s.q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", tableID, err)
	}
	return n > 0, nil
}

func columnDDL(d column.Definition) string {
	return pq.QuoteIdentifier(d.ElementKey) + " " + d.Type.SQLType() + " NULL"
}
