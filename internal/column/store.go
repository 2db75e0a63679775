package column

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/storage"
)

// Store persists column definitions. Display names and visibility live in
// the metadata overlay and are not handled here.
type Store struct {
	q storage.Querier
}

// NewStore binds a store to a database or transaction.
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

// Load returns the definitions of tableID ordered by element key.
func (s *Store) Load(ctx context.Context, tableID string) ([]Definition, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT _element_key, _element_name, _element_type, _parent_key, _is_unit_of_retention
FROM _column_definitions
WHERE _table_id = $1
ORDER BY _element_key ASC
`, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query column definitions: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var (
			def       Definition
			typeName  string
			parentKey sql.NullString
			retained  int
		)
		if err := rows.Scan(&def.ElementKey, &def.ElementName, &typeName, &parentKey, &retained); err != nil {
			return nil, fmt.Errorf("failed to scan column definition: %w", err)
		}
		def.Type, err = ParseType(typeName)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", def.ElementKey, err)
		}
		def.ParentKey = parentKey.String
		def.UnitOfRetention = retained != 0
		def.Visible = def.UnitOfRetention
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column definitions: %w", err)
	}
	return defs, nil
}

// Count returns the number of definitions of tableID.
func (s *Store) Count(ctx context.Context, tableID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM _column_definitions WHERE _table_id = $1", tableID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count column definitions: %w", err)
	}
	return n, nil
}

// Insert writes a new definition for tableID.
func (s *Store) Insert(ctx context.Context, tableID string, def Definition) error {
	var parent sql.NullString
	if def.ParentKey != "" {
		parent = sql.NullString{String: def.ParentKey, Valid: true}
	}
	retained := 0
	if def.UnitOfRetention {
		retained = 1
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO _column_definitions (_table_id, _element_key, _element_name, _element_type, _parent_key, _is_unit_of_retention)
VALUES ($1, $2, $3, $4, $5, $6)
`, tableID, def.ElementKey, def.ElementName, def.Type.String(), parent, retained)
	if err != nil {
		return fmt.Errorf("failed to insert column %s: %w", def.ElementKey, storage.ConvertDBError(err))
	}
	return nil
}

// DeleteTable removes every definition of tableID.
func (s *Store) DeleteTable(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _column_definitions WHERE _table_id = $1", tableID); err != nil {
		return fmt.Errorf("failed to delete column definitions: %w", err)
	}
	return nil
}
