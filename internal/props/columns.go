package props

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/displayname"
	"github.com/conduit-lang/tablemeta/internal/kvs"
	"github.com/conduit-lang/tablemeta/internal/txn"
)

// AddColumns persists new column definitions in one transaction: the
// definitions themselves, their display names and visibility, a data table
// column for every unit of retention, and a column order extended with the
// new visible columns. A column is visible iff it is a unit of retention.
// Empty display names default to the element name.
func (tp *TableProperties) AddColumns(ctx context.Context, defs []column.Definition) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	order := cloneStrings(tp.columnOrder)
	for _, d := range defs {
		if d.UnitOfRetention {
			order = append(order, d.ElementKey)
		}
	}

	err := txn.Run(ctx, tp.db, func(tx *sql.Tx) error {
		cols := column.NewStore(tx)
		overlay := kvs.NewStore(tx)
		rows := tp.store.opts.Rows(tx)

		for _, d := range defs {
			if err := cols.Insert(ctx, tp.tableID, d); err != nil {
				return err
			}

			name := d.DisplayName
			if name == "" {
				name = d.ElementName
			}
			wrapped := displayname.Wrap(name)
			settings := overlay.Helper(tp.tableID, PartitionColumn, d.ElementKey)
			if err := settings.SetString(ctx, KeyColumnDisplayName, &wrapped); err != nil {
				return err
			}
			if err := settings.SetBool(ctx, KeyColumnVisible, d.UnitOfRetention); err != nil {
				return err
			}

			if d.UnitOfRetention {
				if err := rows.AddColumn(ctx, tp.tableID, d); err != nil {
					return err
				}
			}
		}

		table := overlay.Helper(tp.tableID, PartitionTable, AspectDefault)
		return table.SetStringList(ctx, KeyColumnOrder, order)
	})
	if err != nil {
		if refreshErr := tp.catalog.Refresh(ctx); refreshErr != nil {
			tp.store.logger.Warn("failed to reload columns after failed insert",
				zap.String("table", tp.tableID), zap.Error(refreshErr))
		}
		return fmt.Errorf("failed to add columns to %s: %w", tp.tableID, err)
	}

	if err := tp.catalog.Refresh(ctx); err != nil {
		return err
	}

	tp.columnOrder = order
	tp.overlay[KeyColumnOrder] = kvs.EncodeStringList(order)
	return nil
}
