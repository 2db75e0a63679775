package props

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/tabledef"
	"github.com/conduit-lang/tablemeta/internal/txn"
)

// SetSchemaETag records a new schema etag. When it differs from the stored
// one the data etag is cleared in the same transaction, and readers never
// observe the new schema etag alongside the old data etag.
func (tp *TableProperties) SetSchemaETag(ctx context.Context, etag *string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	var cleared bool
	err := txn.Run(ctx, tp.db, func(tx *sql.Tx) error {
		defs := tabledef.NewStore(tx)
		rec, err := defs.Get(ctx, tp.tableID)
		if err != nil {
			return err
		}
		cleared = !equalPtr(rec.SchemaETag, etag)
		return defs.UpdateSchemaETag(ctx, tp.tableID, etag, cleared)
	})
	if err != nil {
		return fmt.Errorf("failed to set schema etag of %s: %w", tp.tableID, err)
	}

	tp.schemaETag = clonePtr(etag)
	if cleared {
		tp.dataETag = nil
	}
	return nil
}

// SetDataETag records a new data etag.
func (tp *TableProperties) SetDataETag(ctx context.Context, etag *string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := tabledef.NewStore(tp.db).UpdateDataETag(ctx, tp.tableID, etag); err != nil {
		return fmt.Errorf("failed to set data etag of %s: %w", tp.tableID, err)
	}
	tp.dataETag = clonePtr(etag)
	return nil
}

// SetLastSyncTime records when the table last synced.
func (tp *TableProperties) SetLastSyncTime(ctx context.Context, syncTime string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := tabledef.NewStore(tp.db).UpdateLastSyncTime(ctx, tp.tableID, syncTime); err != nil {
		return fmt.Errorf("failed to set last sync time of %s: %w", tp.tableID, err)
	}
	tp.lastSyncTime = syncTime
	return nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
