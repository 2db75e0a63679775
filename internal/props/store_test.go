package props

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/tablemeta/internal/assets"
	"github.com/conduit-lang/tablemeta/internal/colorrule"
	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/invalidate"
	"github.com/conduit-lang/tablemeta/internal/kvs"
	"github.com/conduit-lang/tablemeta/internal/rowstore"
	"github.com/conduit-lang/tablemeta/internal/storage"
	"github.com/conduit-lang/tablemeta/internal/storage/storagetest"
	"github.com/conduit-lang/tablemeta/internal/tabledef"
)

const ns = "default"

type testEnv struct {
	store  *Store
	pool   *storage.Pool
	layout *assets.Layout
	logs   *observer.ObservedLogs
}

func setupStore(t *testing.T, configure ...func(*Options)) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	env := &testEnv{
		pool:   storagetest.NewPool(t),
		layout: &assets.Layout{Fs: afero.NewMemMapFs(), Root: "/odk"},
		logs:   logs,
	}
	opts := Options{DB: env.pool, Assets: env.layout, Logger: zap.New(core)}
	for _, c := range configure {
		c(&opts)
	}

	store, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	env.store = store
	return env
}

func (e *testEnv) db(t *testing.T) *sql.DB {
	t.Helper()
	db, err := e.pool.DB(context.Background(), ns)
	require.NoError(t, err)
	return db
}

func (e *testEnv) setOverlay(t *testing.T, tableID, key, value string) {
	t.Helper()
	require.NoError(t, kvs.NewStore(e.db(t)).Set(context.Background(), kvs.Entry{
		TableID: tableID, Partition: PartitionTable, Aspect: AspectDefault, Key: key, Type: kvs.TypeString, Value: &value,
	}))
}

func (e *testEnv) overlayValue(t *testing.T, tableID, key string) (string, bool) {
	t.Helper()
	entry, err := kvs.NewStore(e.db(t)).Get(context.Background(), tableID, PartitionTable, AspectDefault, key)
	require.NoError(t, err)
	if entry == nil || entry.Value == nil {
		return "", false
	}
	return *entry.Value, true
}

// failingRows wraps the SQL row store and fails selected operations.
type failingRows struct {
	RowStorage
	createErr error
	deleteErr error
}

func (f failingRows) CreateTable(ctx context.Context, tableID string, defs []column.Definition) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.RowStorage.CreateTable(ctx, tableID, defs)
}

func (f failingRows) DeleteTableAndData(ctx context.Context, tableID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.RowStorage.DeleteTableAndData(ctx, tableID)
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStore_AddTableDefaults(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	tp, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.NoError(t, err)

	assert.Equal(t, ns, tp.Namespace())
	assert.Equal(t, "households", tp.TableID())
	assert.Equal(t, `"Households"`, tp.DisplayName())
	assert.Equal(t, "Households", tp.LocalizedDisplayName())
	assert.Empty(t, tp.ColumnOrder())
	assert.Empty(t, tp.GroupByColumns())
	assert.False(t, tp.HasGroupByColumns())
	_, ok := tp.SortColumn()
	assert.False(t, ok)
	assert.Equal(t, "ASC", tp.SortOrder())
	assert.Equal(t, "", tp.IndexColumn())
	assert.Equal(t, ViewSpreadsheet, tp.DefaultViewType())
	assert.Equal(t, tabledef.NeverSynced, tp.LastSyncTime())
	_, ok = tp.SchemaETag()
	assert.False(t, ok)
	_, ok = tp.DataETag()
	assert.False(t, ok)

	rules, err := tp.ColorRuleGroup(colorrule.KindStatusColumn, "").Load(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 4)

	has, err := tp.HasConflicts(ctx)
	require.NoError(t, err)
	assert.False(t, has, "data table must exist and be empty")

	got, err := env.store.Get(ctx, ns, "households")
	require.NoError(t, err)
	assert.Same(t, tp, got)
}

func TestStore_AddTableDisplayNameAlreadyJSON(t *testing.T) {
	env := setupStore(t)

	tp, err := env.store.AddTable(context.Background(), ns, "people", `{"default":"People","fr":"Personnes"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"default":"People","fr":"Personnes"}`, tp.DisplayName())
	assert.Equal(t, "People", tp.LocalizedDisplayName())
}

func TestStore_LocalizedDisplayNameUsesLocale(t *testing.T) {
	env := setupStore(t, func(o *Options) { o.Locale = "fr" })

	tp, err := env.store.AddTable(context.Background(), ns, "people", `{"default":"People","fr":"Personnes"}`)
	require.NoError(t, err)
	assert.Equal(t, "Personnes", tp.LocalizedDisplayName())
}

func TestStore_AddTableDuplicate(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	first, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.NoError(t, err)

	_, err = env.store.AddTable(ctx, ns, "households", "Again")
	require.Error(t, err)
	assert.True(t, IsCreationError(err))
	assert.True(t, storage.IsUniqueViolation(err))

	got, err := env.store.Get(ctx, ns, "households")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, `"Households"`, got.DisplayName())
}

func TestStore_AddTableIsAtomic(t *testing.T) {
	env := setupStore(t, func(o *Options) {
		o.Rows = func(q storage.Querier) RowStorage {
			return failingRows{RowStorage: rowstore.NewStore(q), createErr: errors.New("disk full")}
		}
	})
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.Error(t, err)
	assert.True(t, IsCreationError(err))
	assert.ErrorContains(t, err, "disk full")

	n, err := tabledef.NewStore(env.db(t)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	has, err := kvs.NewStore(env.db(t)).HasEntries(ctx, "households")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = env.store.Get(ctx, ns, "households")
	assert.True(t, IsNotFound(err))
}

func TestStore_AddTableRejectsInvalidIDs(t *testing.T) {
	tests := []struct {
		name    string
		tableID string
	}{
		{"empty", ""},
		{"structural records", "_table_definitions"},
		{"column definitions", "_column_definitions"},
		{"metadata overlay", "_key_value_store"},
		{"underscore prefix", "_scratch"},
		{"leading digit", "1visits"},
		{"space", "home visits"},
		{"dash", "home-visits"},
		{"quote", `visits"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupStore(t)
			ctx := context.Background()

			_, err := env.store.AddTable(ctx, ns, tt.tableID, "x")
			require.Error(t, err)
			assert.True(t, IsCreationError(err))

			ids, err := env.store.TableIDs(ctx, ns)
			require.NoError(t, err)
			assert.Empty(t, ids)

			// bookkeeping tables are untouched
			_, err = env.store.AddTable(ctx, ns, "households", "Households")
			require.NoError(t, err)
			require.NoError(t, env.store.DeleteTable(ctx, ns, "households"))
		})
	}
}

func TestValidateTableID(t *testing.T) {
	for _, id := range []string{"a", "households", "Visits2024", "home_visits"} {
		assert.NoError(t, ValidateTableID(id), id)
	}
	for _, id := range []string{"", "_x", "9a", "a b", "a.b"} {
		assert.Error(t, ValidateTableID(id), id)
	}
}

func TestStore_AddTableOverExistingDataTable(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	require.NoError(t, rowstore.NewStore(env.db(t)).CreateTable(ctx, "visits", nil))

	_, err := env.store.AddTable(ctx, ns, "visits", "Visits")
	require.Error(t, err)
	assert.True(t, IsCreationError(err))

	n, err := tabledef.NewStore(env.db(t)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = env.store.Get(ctx, ns, "visits")
	assert.True(t, IsNotFound(err))
}

func TestStore_AddTableSharesObjectWithGet(t *testing.T) {
	tests := []struct {
		name          string
		loadNamespace bool
	}{
		{"namespace not loaded", false},
		{"namespace loaded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupStore(t)
			ctx := context.Background()

			if tt.loadNamespace {
				_, err := env.store.AddTable(ctx, ns, "people", "People")
				require.NoError(t, err)
				_, err = env.store.All(ctx, ns)
				require.NoError(t, err)
			}

			added, err := env.store.AddTable(ctx, ns, "t1", "T1")
			require.NoError(t, err)

			got, err := env.store.Get(ctx, ns, "t1")
			require.NoError(t, err)
			require.Same(t, added, got)

			require.NoError(t, added.SetSortOrder(ctx, "DESC"))
			got, err = env.store.Get(ctx, ns, "t1")
			require.NoError(t, err)
			assert.Equal(t, "DESC", got.SortOrder())

			all, err := env.store.All(ctx, ns)
			require.NoError(t, err)
			assert.Contains(t, all, added)
		})
	}
}

// skippingTracker advances the generation twice per bump, as if another
// process changed the namespace concurrently.
type skippingTracker struct {
	*invalidate.MemoryTracker
}

func (s skippingTracker) Bump(ctx context.Context, namespace string) (int64, error) {
	if _, err := s.MemoryTracker.Bump(ctx, namespace); err != nil {
		return 0, err
	}
	return s.MemoryTracker.Bump(ctx, namespace)
}

func TestStore_AddTableKeepsObjectAfterConcurrentChange(t *testing.T) {
	env := setupStore(t, func(o *Options) {
		o.Generations = skippingTracker{invalidate.NewMemoryTracker()}
	})
	ctx := context.Background()

	added, err := env.store.AddTable(ctx, ns, "t1", "T1")
	require.NoError(t, err)

	got, err := env.store.Get(ctx, ns, "t1")
	require.NoError(t, err)
	assert.Same(t, added, got)
}

func TestStore_GetMissRebuildsOnce(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.Get(ctx, ns, "ghost")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, env.logs.FilterMessage("rebuilt table metadata cache").Len())

	_, err = env.store.Get(ctx, ns, "ghost")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 2, env.logs.FilterMessage("rebuilt table metadata cache").Len())
}

func TestStore_GetNotFound(t *testing.T) {
	env := setupStore(t)

	_, err := env.store.Get(context.Background(), ns, "ghost")
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.TableID)
	assert.Equal(t, ns, nf.Namespace)
}

func TestStore_RebuildsWhenCountChanges(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	first, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)

	// another writer adds a table behind the cache's back
	require.NoError(t, tabledef.NewStore(env.db(t)).Insert(ctx, tabledef.New("b")))

	got, err := env.store.Get(ctx, ns, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, got)

	b, err := env.store.Get(ctx, ns, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", b.LocalizedDisplayName())
	assert.Equal(t, "b", b.DisplayName())
}

func TestStore_GetRebuildsForUnknownTable(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)
	_, err = env.store.All(ctx, ns)
	require.NoError(t, err)

	// same count, different id set
	db := env.db(t)
	require.NoError(t, tabledef.NewStore(db).Delete(ctx, "a"))
	require.NoError(t, tabledef.NewStore(db).Insert(ctx, tabledef.New("c")))

	c, err := env.store.Get(ctx, ns, "c")
	require.NoError(t, err)
	assert.Equal(t, "c", c.TableID())
}

func TestStore_MarkStale(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	first, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)

	env.store.MarkStale(ns)

	got, err := env.store.Get(ctx, ns, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, got)
	assert.Equal(t, first.DisplayName(), got.DisplayName())
}

func TestStore_RefreshReplacesEntry(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	old, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)

	env.setOverlay(t, "a", KeySortColumn, "age")

	fresh, err := env.store.Refresh(ctx, ns, "a")
	require.NoError(t, err)
	col, ok := fresh.SortColumn()
	assert.True(t, ok)
	assert.Equal(t, "age", col)

	_, ok = old.SortColumn()
	assert.False(t, ok, "holders of the previous value keep it")

	got, err := env.store.Get(ctx, ns, "a")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestStore_RefreshMissingTable(t *testing.T) {
	env := setupStore(t)

	_, err := env.store.Refresh(context.Background(), ns, "ghost")
	assert.True(t, IsNotFound(err))
}

func TestStore_AllAndTableIDs(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	all, err := env.store.All(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, id := range []string{"people", "households", "visits"} {
		_, err := env.store.AddTable(ctx, ns, id, id)
		require.NoError(t, err)
	}

	all, err = env.store.All(ctx, ns)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "households", all[0].TableID())
	assert.Equal(t, "visits", all[2].TableID())

	ids, err := env.store.TableIDs(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"households", "people", "visits"}, ids)
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, "survey", "households", "Households")
	require.NoError(t, err)

	_, err = env.store.Get(ctx, ns, "households")
	assert.True(t, IsNotFound(err))

	_, err = env.store.Get(ctx, "survey", "households")
	assert.NoError(t, err)
}

func TestStore_DeleteTable(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.NoError(t, err)
	_, err = env.store.AddTable(ctx, ns, "people", "People")
	require.NoError(t, err)

	fs := env.layout.Fs
	require.NoError(t, fs.MkdirAll("/odk/default/tables/households", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/odk/default/tables/households/definition.csv", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/odk/default/assets/csv", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/odk/default/assets/csv/households.csv", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/odk/default/assets/csv/people.csv", []byte("x"), 0o644))

	require.NoError(t, env.store.DeleteTable(ctx, ns, "households"))

	_, err = env.store.Get(ctx, ns, "households")
	assert.True(t, IsNotFound(err))

	ids, err := env.store.TableIDs(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, ids)

	ok, err := afero.Exists(fs, "/odk/default/tables/households")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = afero.Exists(fs, "/odk/default/assets/csv/households.csv")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = afero.Exists(fs, "/odk/default/assets/csv/people.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	has, err := kvs.NewStore(env.db(t)).HasEntries(ctx, "households")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStore_DeleteTableFilesystemFailureMarksStale(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	before, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.NoError(t, err)

	require.NoError(t, env.layout.Fs.MkdirAll("/odk/default/tables/households", 0o755))
	env.layout.Fs = afero.NewReadOnlyFs(env.layout.Fs)

	err = env.store.DeleteTable(ctx, ns, "households")
	require.Error(t, err)
	assert.True(t, IsDeletionError(err))

	after, err := env.store.Get(ctx, ns, "households")
	require.NoError(t, err, "the table itself was not deleted")
	assert.NotSame(t, before, after, "cache must be rebuilt after a failed deletion")
}

func TestStore_DeleteTableStorageFailure(t *testing.T) {
	env := setupStore(t, func(o *Options) {
		o.Rows = func(q storage.Querier) RowStorage {
			return failingRows{RowStorage: rowstore.NewStore(q), deleteErr: errors.New("locked")}
		}
	})
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "households", "Households")
	require.NoError(t, err)

	err = env.store.DeleteTable(ctx, ns, "households")
	assert.True(t, IsDeletionError(err))
	assert.ErrorContains(t, err, "locked")

	assert.NotEmpty(t, env.logs.FilterMessage("table deletion failed").All())
}

func TestStore_DeleteMissingTable(t *testing.T) {
	env := setupStore(t)
	assert.NoError(t, env.store.DeleteTable(context.Background(), ns, "ghost"))
}

func TestStore_StructuralRecordWins(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)
	env.setOverlay(t, "a", fieldLastSyncTime, "overlay-value")
	env.setOverlay(t, "a", fieldSchemaETag, "overlay-etag")

	tp, err := env.store.Refresh(ctx, ns, "a")
	require.NoError(t, err)
	assert.Equal(t, tabledef.NeverSynced, tp.LastSyncTime())
	_, ok := tp.SchemaETag()
	assert.False(t, ok, "absent structural value still wins over the overlay")
}

func TestStore_MalformedColumnOrderRecovers(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	tp, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)
	require.NoError(t, tp.AddColumns(ctx, []column.Definition{
		{ElementKey: "name", ElementName: "name", Type: column.TypeString, UnitOfRetention: true},
		{ElementKey: "age", ElementName: "age", Type: column.TypeInteger, UnitOfRetention: true},
	}))
	env.setOverlay(t, "a", KeyColumnOrder, "name,age")

	tp, err = env.store.Refresh(ctx, ns, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "name"}, tp.ColumnOrder())

	stored, ok := env.overlayValue(t, "a", KeyColumnOrder)
	require.True(t, ok)
	assert.Equal(t, "[]", stored)

	warnings := env.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.NotEmpty(t, warnings)
	assert.Equal(t, "malformed table metadata, using default", warnings[0].Message)
}

func TestStore_MalformedGroupByRecovers(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)
	env.setOverlay(t, "a", KeyGroupByColumns, "{bad")

	tp, err := env.store.Refresh(ctx, ns, "a")
	require.NoError(t, err)
	assert.Empty(t, tp.GroupByColumns())
}

func TestStore_InvalidViewTypeRecovers(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)
	env.setOverlay(t, "a", KeyDefaultViewType, "CAROUSEL")

	tp, err := env.store.Refresh(ctx, ns, "a")
	require.NoError(t, err)
	assert.Equal(t, ViewSpreadsheet, tp.DefaultViewType())

	stored, _ := env.overlayValue(t, "a", KeyDefaultViewType)
	assert.Equal(t, "SPREADSHEET", stored)
	assert.Equal(t, "SPREADSHEET", tp.Overlay()[KeyDefaultViewType])
}

func TestStore_AbsentOverlayKeysUseDefaults(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	// a bare structural record with no overlay at all
	require.NoError(t, tabledef.NewStore(env.db(t)).Insert(ctx, tabledef.New("bare")))

	tp, err := env.store.Get(ctx, ns, "bare")
	require.NoError(t, err)
	assert.Equal(t, "bare", tp.DisplayName())
	assert.Equal(t, "ASC", tp.SortOrder())
	assert.Equal(t, ViewSpreadsheet, tp.DefaultViewType())
	assert.Empty(t, tp.ColumnOrder())
	assert.Empty(t, tp.IndexColumn())
}

func TestStore_ReplaceMetadata(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	_, err := env.store.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)

	value := "detail.html"
	tp, err := env.store.ReplaceMetadata(ctx, ns, "a", []kvs.Entry{
		{TableID: "ignored", Partition: PartitionTable, Aspect: AspectDefault, Key: KeyDetailViewFileName, Type: kvs.TypeString, Value: &value},
	}, true)
	require.NoError(t, err)

	name, ok := tp.DetailViewFileName()
	assert.True(t, ok)
	assert.Equal(t, "detail.html", name)
	assert.Equal(t, "a", tp.DisplayName(), "clearing removed the seeded display name")

	entries, err := tp.MetadataEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = env.store.ReplaceMetadata(ctx, ns, "ghost", nil, false)
	assert.True(t, IsNotFound(err))
}

func TestStore_SharedGenerationsInvalidateOtherStores(t *testing.T) {
	tracker := invalidate.NewMemoryTracker()
	pool := storagetest.NewPool(t)
	newStore := func() *Store {
		s, err := New(Options{DB: pool, Generations: tracker})
		require.NoError(t, err)
		return s
	}
	reader, writer := newStore(), newStore()
	ctx := context.Background()

	_, err := writer.AddTable(ctx, ns, "a", "A")
	require.NoError(t, err)

	ids, err := reader.TableIDs(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	// same table count afterwards, so only the generation reveals the change
	require.NoError(t, writer.DeleteTable(ctx, ns, "a"))
	_, err = writer.AddTable(ctx, ns, "b", "B")
	require.NoError(t, err)

	ids, err = reader.TableIDs(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	// the writer's own bumps keep its cache valid
	first, err := writer.Get(ctx, ns, "b")
	require.NoError(t, err)
	second, err := writer.Get(ctx, ns, "b")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestStore_Closed(t *testing.T) {
	env := setupStore(t)
	require.NoError(t, env.store.Close())

	_, err := env.store.Get(context.Background(), ns, "a")
	assert.ErrorIs(t, err, ErrStoreClosed)
	env.store.MarkStale(ns)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	env := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.store.AddTable(ctx, ns, fmt.Sprintf("t%d", i), "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id := fmt.Sprintf("t%d", (i+j)%3)
				switch j % 4 {
				case 0:
					env.store.MarkStale(ns)
				case 1:
					if _, err := env.store.Refresh(ctx, ns, id); err != nil {
						errs <- err
					}
				default:
					tp, err := env.store.Get(ctx, ns, id)
					if err != nil {
						errs <- err
						continue
					}
					_ = tp.SyncState()
					_ = tp.ColumnOrder()
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
