package colorrule

// SyncStateColumn is the row column the status rules inspect
const SyncStateColumn = "_sync_state"

// Row sync states
const (
	SyncStateSynced   = "synced"
	SyncStateNewRow   = "new_row"
	SyncStateChanged  = "changed"
	SyncStateDeleted  = "deleted"
	SyncStateConflict = "in_conflict"
)

const (
	black       uint32 = 0xFF000000
	lightGreen  uint32 = 0xFF94D59A
	lightYellow uint32 = 0xFFFFF59D
	lightGray   uint32 = 0xFFBDBDBD
	lightRed    uint32 = 0xFFEF9A9A
)

// Source supplies the rules installed on new tables
type Source interface {
	DefaultStatusColumnRules() []Rule
}

// Defaults is the built-in Source
type Defaults struct{}

// DefaultStatusColumnRules implements Source
func (Defaults) DefaultStatusColumnRules() []Rule {
	return DefaultStatusColumnRules()
}

// DefaultStatusColumnRules returns one rule per unsynced row state.
func DefaultStatusColumnRules() []Rule {
	return []Rule{
		NewRule(SyncStateColumn, Equal, SyncStateConflict, black, lightRed),
		NewRule(SyncStateColumn, Equal, SyncStateNewRow, black, lightGreen),
		NewRule(SyncStateColumn, Equal, SyncStateChanged, black, lightYellow),
		NewRule(SyncStateColumn, Equal, SyncStateDeleted, black, lightGray),
	}
}
