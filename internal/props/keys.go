package props

import "github.com/conduit-lang/tablemeta/internal/kvs"

// Metadata overlay partitions
const (
	PartitionTable  = "Table"
	PartitionColumn = "Column"
	PartitionMap    = "TableMapFragment"

	AspectDefault = kvs.DefaultAspect
)

// Table partition keys
const (
	KeyDisplayName         = "displayName"
	KeyColumnOrder         = "colOrder"
	KeyGroupByColumns      = "groupByCols"
	KeySortColumn          = "sortCol"
	KeySortOrder           = "sortOrder"
	KeyIndexColumn         = "indexCol"
	KeyDefaultViewType     = "defaultViewType"
	KeyListViewFileName    = "listViewFileName"
	KeyDetailViewFileName  = "detailViewFileName"
	KeyMapListViewFileName = "mapListViewFileName"
)

// Column partition keys; the aspect is the column's element key
const (
	KeyColumnDisplayName = "displayName"
	KeyColumnVisible     = "displayVisible"
)

// Map partition keys
const (
	KeyMapLatitudeColumn  = "keyMapLatCol"
	KeyMapLongitudeColumn = "keyMapLongCol"
	KeyMapColorRuleType   = "keyColorRuleType"
	KeyMapColorRuleColumn = "keyColorRuleColumn"
)

// Structural record fields as they appear in the merged property map. They
// are applied after the overlay, so they win over overlay keys of the same name.
const (
	fieldTableID      = "_table_id"
	fieldSchemaETag   = "_schema_etag"
	fieldDataETag     = "_last_data_etag"
	fieldLastSyncTime = "_last_sync_time"
)

// DefaultSortOrder is used when no sort order is stored
const DefaultSortOrder = "ASC"
