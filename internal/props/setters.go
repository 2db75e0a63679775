package props

import (
	"context"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/displayname"
	"github.com/conduit-lang/tablemeta/internal/kvs"
)

// writeTable stores a table partition value, or removes it when value is
// nil, and then mirrors the change in memory with apply. tp.mu is held
// across both.
func (tp *TableProperties) writeTable(ctx context.Context, key, typ string, value *string, apply func()) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	h := kvs.NewStore(tp.db).Helper(tp.tableID, PartitionTable, AspectDefault)

	var err error
	if value == nil {
		err = h.Remove(ctx, key)
	} else {
		err = kvs.NewStore(tp.db).Set(ctx, kvs.Entry{
			TableID:   tp.tableID,
			Partition: PartitionTable,
			Aspect:    AspectDefault,
			Key:       key,
			Type:      typ,
			Value:     value,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to update %s of %s: %w", key, tp.tableID, err)
	}

	if value == nil {
		delete(tp.overlay, key)
	} else {
		tp.overlay[key] = *value
	}
	if apply != nil {
		apply()
	}
	return nil
}

// SetDisplayName stores name, JSON-wrapping it unless it already is JSON.
func (tp *TableProperties) SetDisplayName(ctx context.Context, name string) error {
	wrapped := displayname.Wrap(name)
	return tp.writeTable(ctx, KeyDisplayName, kvs.TypeObject, &wrapped, func() {
		tp.displayName = wrapped
	})
}

// SetColumnOrder stores the display order of the columns. Keys that are
// not in the column catalog are dropped.
func (tp *TableProperties) SetColumnOrder(ctx context.Context, order []string) error {
	known, err := tp.catalog.All(ctx)
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := known[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, key)
	}

	encoded := kvs.EncodeStringList(kept)
	return tp.writeTable(ctx, KeyColumnOrder, kvs.TypeArray, &encoded, func() {
		tp.columnOrder = kept
	})
}

// SetGroupByColumns stores the group-by element keys.
func (tp *TableProperties) SetGroupByColumns(ctx context.Context, cols []string) error {
	list := cloneStrings(cols)
	encoded := kvs.EncodeStringList(list)
	return tp.writeTable(ctx, KeyGroupByColumns, kvs.TypeArray, &encoded, func() {
		tp.groupBy = list
	})
}

// SetSortColumn stores the sort column. An empty key clears it.
func (tp *TableProperties) SetSortColumn(ctx context.Context, elementKey string) error {
	if elementKey == "" {
		return tp.writeTable(ctx, KeySortColumn, kvs.TypeString, nil, func() {
			tp.sortColumn = nil
		})
	}
	return tp.writeTable(ctx, KeySortColumn, kvs.TypeString, &elementKey, func() {
		tp.sortColumn = &elementKey
	})
}

// SetSortOrder stores the sort order. An empty order clears it, which reads
// back as ASC.
func (tp *TableProperties) SetSortOrder(ctx context.Context, order string) error {
	if order == "" {
		return tp.writeTable(ctx, KeySortOrder, kvs.TypeString, nil, func() {
			tp.sortOrder = DefaultSortOrder
		})
	}
	return tp.writeTable(ctx, KeySortOrder, kvs.TypeString, &order, func() {
		tp.sortOrder = order
	})
}

// SetIndexColumn stores the index column; "" means none.
func (tp *TableProperties) SetIndexColumn(ctx context.Context, elementKey string) error {
	return tp.writeTable(ctx, KeyIndexColumn, kvs.TypeString, &elementKey, func() {
		tp.indexColumn = elementKey
	})
}

// SetDefaultViewType stores the view the table opens in.
func (tp *TableProperties) SetDefaultViewType(ctx context.Context, vt ViewType) error {
	name := vt.String()
	if _, err := ParseViewType(name); err != nil {
		return err
	}
	return tp.writeTable(ctx, KeyDefaultViewType, kvs.TypeString, &name, func() {
		tp.defaultViewType = vt
	})
}

// SetListViewFileName stores the list view template. "" clears it.
func (tp *TableProperties) SetListViewFileName(ctx context.Context, name string) error {
	return tp.writeTable(ctx, KeyListViewFileName, kvs.TypeString, emptyAsNil(name), nil)
}

// SetDetailViewFileName stores the detail view template. "" clears it.
func (tp *TableProperties) SetDetailViewFileName(ctx context.Context, name string) error {
	return tp.writeTable(ctx, KeyDetailViewFileName, kvs.TypeString, emptyAsNil(name), nil)
}

// SetMapListViewFileName stores the map list template. "" clears it.
func (tp *TableProperties) SetMapListViewFileName(ctx context.Context, name string) error {
	return tp.writeTable(ctx, KeyMapListViewFileName, kvs.TypeString, emptyAsNil(name), nil)
}

func emptyAsNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
