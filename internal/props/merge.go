package props

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/displayname"
	"github.com/conduit-lang/tablemeta/internal/kvs"
	"github.com/conduit-lang/tablemeta/internal/storage"
	"github.com/conduit-lang/tablemeta/internal/tabledef"
)

// load builds the properties of tableID from q. Lazy catalog reloads after
// construction go through db, so q may be a transaction that is about to
// be committed.
func (s *Store) load(ctx context.Context, namespace string, q storage.Querier, db *sql.DB, tableID string) (*TableProperties, error) {
	rec, err := tabledef.NewStore(q).Get(ctx, tableID)
	if err != nil {
		if errors.Is(err, tabledef.ErrNotFound) {
			return nil, &NotFoundError{Namespace: namespace, TableID: tableID}
		}
		return nil, err
	}

	overlay, err := kvs.NewStore(q).Properties(ctx, tableID, PartitionTable, AspectDefault)
	if err != nil {
		return nil, err
	}

	// overlay first, structural record second
	fields := make(map[string]string, len(overlay)+4)
	for k, v := range overlay {
		fields[k] = v
	}
	fields[fieldTableID] = rec.TableID
	putOrDelete(fields, fieldSchemaETag, rec.SchemaETag)
	putOrDelete(fields, fieldDataETag, rec.DataETag)
	putOrDelete(fields, fieldLastSyncTime, rec.LastSyncTime)

	tp := &TableProperties{
		store:     s,
		db:        db,
		namespace: namespace,
		tableID:   tableID,
		catalog:   column.NewCatalog(tableID, s.columnLoader(db)),
		overlay:   overlay,
	}
	fix := &recovery{store: s, q: q, tableID: tableID, overlay: overlay}

	tp.displayName = valueOr(fields, KeyDisplayName, tableID)
	tp.schemaETag = optional(fields, fieldSchemaETag)
	tp.dataETag = optional(fields, fieldDataETag)
	tp.lastSyncTime = valueOr(fields, fieldLastSyncTime, tabledef.NeverSynced)
	tp.columnOrder = fix.stringList(ctx, fields, KeyColumnOrder)
	tp.groupBy = fix.stringList(ctx, fields, KeyGroupByColumns)
	tp.indexColumn = valueOr(fields, KeyIndexColumn, "")

	if v := fields[KeySortColumn]; v != "" {
		tp.sortColumn = &v
	}
	tp.sortOrder = DefaultSortOrder
	if v := fields[KeySortOrder]; v != "" {
		tp.sortOrder = v
	}

	tp.defaultViewType = ViewSpreadsheet
	if raw, ok := fields[KeyDefaultViewType]; ok {
		vt, err := ParseViewType(raw)
		if err != nil {
			fix.report(KeyDefaultViewType, raw, err)
			fix.rewrite(ctx, KeyDefaultViewType, kvs.TypeString, ViewSpreadsheet.String())
		}
		tp.defaultViewType = vt
	}

	if err := tp.catalog.ReloadFrom(ctx, s.columnLoader(q)); err != nil {
		return nil, err
	}
	if len(tp.columnOrder) == 0 {
		if tp.columnOrder, err = tp.catalog.Persisted(ctx); err != nil {
			return nil, err
		}
	}

	return tp, nil
}

// recovery substitutes defaults for malformed overlay values, logs them and
// overwrites the stored value with the default.
type recovery struct {
	store   *Store
	q       storage.Querier
	tableID string
	overlay map[string]string
}

func (r *recovery) report(key, raw string, err error) {
	r.store.logger.Warn("malformed table metadata, using default",
		zap.Error(&MalformedMetadataError{TableID: r.tableID, Key: key, Value: raw, Err: err}))
}

func (r *recovery) rewrite(ctx context.Context, key, typ, value string) {
	err := kvs.NewStore(r.q).Set(ctx, kvs.Entry{
		TableID:   r.tableID,
		Partition: PartitionTable,
		Aspect:    AspectDefault,
		Key:       key,
		Type:      typ,
		Value:     &value,
	})
	if err != nil {
		r.store.logger.Warn("failed to overwrite malformed table metadata",
			zap.String("table", r.tableID), zap.String("key", key), zap.Error(err))
		return
	}
	r.overlay[key] = value
}

func (r *recovery) stringList(ctx context.Context, fields map[string]string, key string) []string {
	raw, ok := fields[key]
	if !ok {
		return []string{}
	}
	list, err := kvs.DecodeStringList(raw)
	if err != nil {
		r.report(key, raw, err)
		r.rewrite(ctx, key, kvs.TypeArray, kvs.EncodeStringList(nil))
		return []string{}
	}
	return list
}

// columnLoader loads column definitions and decorates them with the display
// name and visibility stored in the column partition of the overlay.
type columnLoader struct {
	q      storage.Querier
	locale string
}

func (s *Store) columnLoader(q storage.Querier) column.Loader {
	return &columnLoader{q: q, locale: s.opts.Locale}
}

func (l *columnLoader) Load(ctx context.Context, tableID string) ([]column.Definition, error) {
	defs, err := column.NewStore(l.q).Load(ctx, tableID)
	if err != nil {
		return nil, err
	}
	entries, err := kvs.NewStore(l.q).PartitionEntries(ctx, tableID, PartitionColumn)
	if err != nil {
		return nil, err
	}

	byColumn := make(map[string]map[string]string)
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		if byColumn[e.Aspect] == nil {
			byColumn[e.Aspect] = make(map[string]string)
		}
		byColumn[e.Aspect][e.Key] = *e.Value
	}

	for i := range defs {
		d := &defs[i]
		fallback := d.ElementName
		if fallback == "" {
			fallback = d.ElementKey
		}
		settings := byColumn[d.ElementKey]
		d.DisplayName = displayname.LocalizeOr(settings[KeyColumnDisplayName], l.locale, fallback)
		if raw, ok := settings[KeyColumnVisible]; ok {
			if visible, err := strconv.ParseBool(raw); err == nil {
				d.Visible = visible
			}
		}
	}
	return defs, nil
}

func (l *columnLoader) Count(ctx context.Context, tableID string) (int, error) {
	n, err := column.NewStore(l.q).Count(ctx, tableID)
	if err != nil {
		return 0, fmt.Errorf("failed to count columns of %s: %w", tableID, err)
	}
	return n, nil
}

func putOrDelete(fields map[string]string, key string, value *string) {
	if value == nil {
		delete(fields, key)
		return
	}
	fields[key] = *value
}

func valueOr(fields map[string]string, key, fallback string) string {
	if v, ok := fields[key]; ok {
		return v
	}
	return fallback
}

func optional(fields map[string]string, key string) *string {
	if v, ok := fields[key]; ok {
		return &v
	}
	return nil
}
