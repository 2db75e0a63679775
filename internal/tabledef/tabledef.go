// Package tabledef persists the structural record of each table: its id and
// its sync state (schema etag, data etag and last sync time).
package tabledef

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/storage"
)

// NeverSynced is the last sync time recorded for a table that has not synced.
const NeverSynced = "-1"

var (
	// ErrNotFound is returned when no structural record exists for a table
	ErrNotFound = storage.ErrNotFound

	// ErrInconsistentState is returned when more than one structural record
	// exists for a single table id
	ErrInconsistentState = errors.New("inconsistent table definitions")
)

// Record is the structural record of a table. Nil pointers mean the value
// is absent.
type Record struct {
	TableID      string
	SchemaETag   *string
	DataETag     *string
	LastSyncTime *string
}

// New returns a record for a table that has never been synced.
func New(tableID string) *Record {
	never := NeverSynced
	return &Record{TableID: tableID, LastSyncTime: &never}
}

// Store reads and writes structural records.
type Store struct {
	q storage.Querier
}

// NewStore binds a store to a database or transaction.
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

// Get returns the structural record of tableID.
func (s *Store) Get(ctx context.Context, tableID string) (*Record, error) {
	query := `
SELECT _table_id, _schema_etag, _last_data_etag, _last_sync_time
FROM _table_definitions
WHERE _table_id = $1
`
	rows, err := s.q.QueryContext(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query table definition: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec                          Record
			schemaETag, dataETag, synced sql.NullString
		)
		if err := rows.Scan(&rec.TableID, &schemaETag, &dataETag, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan table definition: %w", err)
		}
		rec.SchemaETag = nullable(schemaETag)
		rec.DataETag = nullable(dataETag)
		rec.LastSyncTime = nullable(synced)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table definitions: %w", err)
	}

	switch len(records) {
	case 0:
		return nil, fmt.Errorf("table %s: %w", tableID, ErrNotFound)
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("table %s has %d definitions: %w", tableID, len(records), ErrInconsistentState)
	}
}

// Insert writes a new structural record.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	synced := NeverSynced
	if rec.LastSyncTime != nil {
		synced = *rec.LastSyncTime
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO _table_definitions (_table_id, _schema_etag, _last_data_etag, _last_sync_time)
VALUES ($1, $2, $3, $4)
`, rec.TableID, nullString(rec.SchemaETag), nullString(rec.DataETag), synced)
	if err != nil {
		return fmt.Errorf("failed to insert table definition: %w", storage.ConvertDBError(err))
	}
	return nil
}

// UpdateSchemaETag sets the schema etag. When clearDataETag is true the data
// etag is cleared in the same statement.
func (s *Store) UpdateSchemaETag(ctx context.Context, tableID string, etag *string, clearDataETag bool) error {
	query := "UPDATE _table_definitions SET _schema_etag = $1 WHERE _table_id = $2"
	if clearDataETag {
		query = "UPDATE _table_definitions SET _schema_etag = $1, _last_data_etag = NULL WHERE _table_id = $2"
	}
	return s.update(ctx, "schema etag", query, nullString(etag), tableID)
}

// UpdateDataETag sets the data etag.
func (s *Store) UpdateDataETag(ctx context.Context, tableID string, etag *string) error {
	query := "UPDATE _table_definitions SET _last_data_etag = $1 WHERE _table_id = $2"
	return s.update(ctx, "data etag", query, nullString(etag), tableID)
}

// UpdateLastSyncTime sets the last sync time.
func (s *Store) UpdateLastSyncTime(ctx context.Context, tableID, syncTime string) error {
	query := "UPDATE _table_definitions SET _last_sync_time = $1 WHERE _table_id = $2"
	return s.update(ctx, "last sync time", query, syncTime, tableID)
}

func (s *Store) update(ctx context.Context, what, query string, value any, tableID string) error {
	res, err := s.q.ExecContext(ctx, query, value, tableID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s: %w", tableID, ErrNotFound)
	}
	return nil
}

// ListTableIDs returns every table id in the namespace.
func (s *Store) ListTableIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT _table_id FROM _table_definitions ORDER BY _table_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan table id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of structural records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM _table_definitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return n, nil
}

// Delete removes the structural record of tableID.
func (s *Store) Delete(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _table_definitions WHERE _table_id = $1", tableID); err != nil {
		return fmt.Errorf("failed to delete table definition: %w", err)
	}
	return nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
