package props

import (
	"context"
	"database/sql"
	"sync"

	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/displayname"
)

// TableProperties is the merged view of one table: its structural record,
// its metadata overlay and its column catalog. Instances are owned by the
// Store that produced them; setters write through to the backing store
// before updating the in-memory value. Every accessor returns copies.
type TableProperties struct {
	store     *Store
	db        *sql.DB
	namespace string
	tableID   string
	catalog   *column.Catalog

	mu              sync.RWMutex
	displayName     string
	schemaETag      *string
	dataETag        *string
	lastSyncTime    string
	columnOrder     []string
	groupBy         []string
	sortColumn      *string
	sortOrder       string
	indexColumn     string
	defaultViewType ViewType
	overlay         map[string]string
}

// SyncState is a consistent snapshot of a table's sync fields
type SyncState struct {
	SchemaETag   *string
	DataETag     *string
	LastSyncTime string
}

// Namespace returns the namespace the table lives in.
func (tp *TableProperties) Namespace() string { return tp.namespace }

// TableID returns the table id.
func (tp *TableProperties) TableID() string { return tp.tableID }

// Catalog returns the table's column catalog.
func (tp *TableProperties) Catalog() *column.Catalog { return tp.catalog }

// DisplayName returns the stored display name, usually JSON.
func (tp *TableProperties) DisplayName() string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.displayName
}

// LocalizedDisplayName returns the display name for the store's locale,
// falling back to the table id.
func (tp *TableProperties) LocalizedDisplayName() string {
	return displayname.LocalizeOr(tp.DisplayName(), tp.store.opts.Locale, tp.tableID)
}

// SchemaETag returns the schema etag and whether it is present.
func (tp *TableProperties) SchemaETag() (string, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return deref(tp.schemaETag)
}

// DataETag returns the data etag and whether it is present.
func (tp *TableProperties) DataETag() (string, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return deref(tp.dataETag)
}

// LastSyncTime returns the last sync time.
func (tp *TableProperties) LastSyncTime() string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.lastSyncTime
}

// SyncState returns the schema etag, data etag and last sync time as one
// snapshot.
func (tp *TableProperties) SyncState() SyncState {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return SyncState{
		SchemaETag:   clonePtr(tp.schemaETag),
		DataETag:     clonePtr(tp.dataETag),
		LastSyncTime: tp.lastSyncTime,
	}
}

// ColumnOrder returns the element keys in display order.
func (tp *TableProperties) ColumnOrder() []string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return cloneStrings(tp.columnOrder)
}

// GroupByColumns returns the element keys the table is grouped by.
func (tp *TableProperties) GroupByColumns() []string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return cloneStrings(tp.groupBy)
}

// HasGroupByColumns reports whether the table is grouped.
func (tp *TableProperties) HasGroupByColumns() bool {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return len(tp.groupBy) > 0
}

// IsGroupByColumn reports whether elementKey is one of the group-by columns.
func (tp *TableProperties) IsGroupByColumn(elementKey string) bool {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	for _, k := range tp.groupBy {
		if k == elementKey {
			return true
		}
	}
	return false
}

// SortColumn returns the sort column and whether one is set.
func (tp *TableProperties) SortColumn() (string, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return deref(tp.sortColumn)
}

// SortOrder returns the sort order, ASC unless set otherwise.
func (tp *TableProperties) SortOrder() string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.sortOrder
}

// IndexColumn returns the index (frozen) column, or "".
func (tp *TableProperties) IndexColumn() string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.indexColumn
}

// DefaultViewType returns the view the table opens in.
func (tp *TableProperties) DefaultViewType() ViewType {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.defaultViewType
}

// ListViewFileName returns the list view template and whether one is set.
func (tp *TableProperties) ListViewFileName() (string, bool) {
	return tp.overlayValue(KeyListViewFileName)
}

// DetailViewFileName returns the detail view template and whether one is set.
func (tp *TableProperties) DetailViewFileName() (string, bool) {
	return tp.overlayValue(KeyDetailViewFileName)
}

// MapListViewFileName returns the map list template and whether one is set.
func (tp *TableProperties) MapListViewFileName() (string, bool) {
	return tp.overlayValue(KeyMapListViewFileName)
}

// Overlay returns the table partition values the properties were built from.
func (tp *TableProperties) Overlay() map[string]string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	out := make(map[string]string, len(tp.overlay))
	for k, v := range tp.overlay {
		out[k] = v
	}
	return out
}

func (tp *TableProperties) overlayValue(key string) (string, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	v, ok := tp.overlay[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Columns returns every column definition ordered by element key.
func (tp *TableProperties) Columns(ctx context.Context) ([]column.Definition, error) {
	return tp.catalog.List(ctx)
}

// PersistedColumns returns the element keys of the units of retention.
func (tp *TableProperties) PersistedColumns(ctx context.Context) ([]string, error) {
	return tp.catalog.Persisted(ctx)
}

// UniqueColumnDisplayName returns a column display name not used by any
// column of the table.
func (tp *TableProperties) UniqueColumnDisplayName(ctx context.Context, proposed string) (string, error) {
	return tp.catalog.UniqueDisplayName(ctx, proposed)
}

func deref(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
