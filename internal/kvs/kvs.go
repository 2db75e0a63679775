// Package kvs implements the metadata overlay: a key/value store scoped by
// table, partition and aspect that holds every table and column property not
// part of the structural record.
package kvs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/storage"
)

// Value types recorded alongside each entry
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// DefaultAspect is the aspect used for table-wide settings
const DefaultAspect = "default"

// Entry is a single overlay row. A nil Value means the value is absent.
type Entry struct {
	TableID   string
	Partition string
	Aspect    string
	Key       string
	Type      string
	Value     *string
}

// Store reads and writes overlay entries.
type Store struct {
	q storage.Querier
}

// NewStore binds a store to a database or transaction.
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

// Entries returns every entry of tableID ordered by partition, aspect and key.
func (s *Store) Entries(ctx context.Context, tableID string) ([]Entry, error) {
	return s.query(ctx, `
SELECT _table_id, _partition, _aspect, _key, _type, _value
FROM _key_value_store
WHERE _table_id = $1
ORDER BY _partition, _aspect, _key
`, tableID)
}

// PartitionEntries returns the entries of one partition of tableID.
func (s *Store) PartitionEntries(ctx context.Context, tableID, partition string) ([]Entry, error) {
	return s.query(ctx, `
SELECT _table_id, _partition, _aspect, _key, _type, _value
FROM _key_value_store
WHERE _table_id = $1 AND _partition = $2
ORDER BY _aspect, _key
`, tableID, partition)
}

// Properties returns the present values of one partition/aspect of tableID
// keyed by entry key.
func (s *Store) Properties(ctx context.Context, tableID, partition, aspect string) (map[string]string, error) {
	entries, err := s.query(ctx, `
SELECT _table_id, _partition, _aspect, _key, _type, _value
FROM _key_value_store
WHERE _table_id = $1 AND _partition = $2 AND _aspect = $3
`, tableID, partition, aspect)
	if err != nil {
		return nil, err
	}

	props := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Value != nil {
			props[e.Key] = *e.Value
		}
	}
	return props, nil
}

// Get returns a single entry, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, tableID, partition, aspect, key string) (*Entry, error) {
	entries, err := s.query(ctx, `
SELECT _table_id, _partition, _aspect, _key, _type, _value
FROM _key_value_store
WHERE _table_id = $1 AND _partition = $2 AND _aspect = $3 AND _key = $4
`, tableID, partition, aspect, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Set inserts or replaces an entry.
func (s *Store) Set(ctx context.Context, e Entry) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO _key_value_store (_table_id, _partition, _aspect, _key, _type, _value)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (_table_id, _partition, _aspect, _key)
DO UPDATE SET _type = excluded._type, _value = excluded._value
`, e.TableID, e.Partition, e.Aspect, e.Key, e.Type, nullString(e.Value))
	if err != nil {
		return fmt.Errorf("failed to set %s/%s/%s: %w", e.Partition, e.Aspect, e.Key, err)
	}
	return nil
}

// AddEntries writes every entry in order.
func (s *Store) AddEntries(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := s.Set(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a single entry. Removing a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, tableID, partition, aspect, key string) error {
	_, err := s.q.ExecContext(ctx, `
DELETE FROM _key_value_store
WHERE _table_id = $1 AND _partition = $2 AND _aspect = $3 AND _key = $4
`, tableID, partition, aspect, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s/%s: %w", partition, aspect, key, err)
	}
	return nil
}

// DeleteAspect removes every entry of one partition/aspect of tableID.
func (s *Store) DeleteAspect(ctx context.Context, tableID, partition, aspect string) error {
	_, err := s.q.ExecContext(ctx, `
DELETE FROM _key_value_store
WHERE _table_id = $1 AND _partition = $2 AND _aspect = $3
`, tableID, partition, aspect)
	if err != nil {
		return fmt.Errorf("failed to delete aspect %s/%s: %w", partition, aspect, err)
	}
	return nil
}

// Clear removes every entry of tableID.
func (s *Store) Clear(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _key_value_store WHERE _table_id = $1", tableID); err != nil {
		return fmt.Errorf("failed to clear metadata of %s: %w", tableID, err)
	}
	return nil
}

// HasEntries reports whether tableID has any overlay entry.
func (s *Store) HasEntries(ctx context.Context, tableID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM _key_value_store WHERE _table_id = $1", tableID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count metadata of %s: %w", tableID, err)
	}
	return n > 0, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			value sql.NullString
		)
		if err := rows.Scan(&e.TableID, &e.Partition, &e.Aspect, &e.Key, &e.Type, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata entry: %w", err)
		}
		if value.Valid {
			v := value.String
			e.Value = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metadata: %w", err)
	}
	return entries, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
