package props

import (
	"context"

	"github.com/conduit-lang/tablemeta/internal/colorrule"
	"github.com/conduit-lang/tablemeta/internal/kvs"
)

// HasCheckpoints reports whether the table has incomplete checkpoint rows.
func (tp *TableProperties) HasCheckpoints(ctx context.Context) (bool, error) {
	return tp.store.opts.Rows(tp.db).HasCheckpoints(ctx, tp.tableID)
}

// HasConflicts reports whether the table has rows in conflict.
func (tp *TableProperties) HasConflicts(ctx context.Context) (bool, error) {
	return tp.store.opts.Rows(tp.db).HasConflicts(ctx, tp.tableID)
}

// MetadataEntries returns every overlay entry of the table.
func (tp *TableProperties) MetadataEntries(ctx context.Context) ([]kvs.Entry, error) {
	return kvs.NewStore(tp.db).Entries(ctx, tp.tableID)
}

// HasMetadataEntries reports whether the table has any overlay entry.
func (tp *TableProperties) HasMetadataEntries(ctx context.Context) (bool, error) {
	return kvs.NewStore(tp.db).HasEntries(ctx, tp.tableID)
}

// ColorRuleGroup returns one of the table's color rule groups.
func (tp *TableProperties) ColorRuleGroup(kind colorrule.Kind, elementKey string) *colorrule.Group {
	return colorrule.NewGroup(kvs.NewStore(tp.db), tp.tableID, kind, elementKey)
}

// MapColorRuleType selects which color rules the map view applies
type MapColorRuleType string

const (
	MapColorNone   MapColorRuleType = "none"
	MapColorTable  MapColorRuleType = "table"
	MapColorStatus MapColorRuleType = "status"
	MapColorColumn MapColorRuleType = "column"
)

// MapSettings holds the map view configuration of a table
type MapSettings struct {
	LatitudeColumn  string
	LongitudeColumn string
	ColorRuleType   MapColorRuleType
	ColorRuleColumn string
}

func (tp *TableProperties) mapHelper() *kvs.Helper {
	return kvs.NewStore(tp.db).Helper(tp.tableID, PartitionMap, AspectDefault)
}

// MapSettings reads the map view configuration. Unset fields are empty;
// the color rule type defaults to none.
func (tp *TableProperties) MapSettings(ctx context.Context) (MapSettings, error) {
	props, err := kvs.NewStore(tp.db).Properties(ctx, tp.tableID, PartitionMap, AspectDefault)
	if err != nil {
		return MapSettings{}, err
	}
	settings := MapSettings{
		LatitudeColumn:  props[KeyMapLatitudeColumn],
		LongitudeColumn: props[KeyMapLongitudeColumn],
		ColorRuleType:   MapColorRuleType(props[KeyMapColorRuleType]),
		ColorRuleColumn: props[KeyMapColorRuleColumn],
	}
	if settings.ColorRuleType == "" {
		settings.ColorRuleType = MapColorNone
	}
	return settings, nil
}

// SetMapColumns stores the latitude and longitude columns of the map view.
func (tp *TableProperties) SetMapColumns(ctx context.Context, latitude, longitude string) error {
	h := tp.mapHelper()
	if err := h.SetString(ctx, KeyMapLatitudeColumn, emptyAsNil(latitude)); err != nil {
		return err
	}
	return h.SetString(ctx, KeyMapLongitudeColumn, emptyAsNil(longitude))
}

// SetMapColorRule stores which color rules the map view applies. The column
// is only kept for MapColorColumn.
func (tp *TableProperties) SetMapColorRule(ctx context.Context, ruleType MapColorRuleType, elementKey string) error {
	h := tp.mapHelper()
	kind := string(ruleType)
	if err := h.SetString(ctx, KeyMapColorRuleType, &kind); err != nil {
		return err
	}
	if ruleType != MapColorColumn {
		elementKey = ""
	}
	return h.SetString(ctx, KeyMapColorRuleColumn, emptyAsNil(elementKey))
}
