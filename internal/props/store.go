// Package props is the table metadata store: it merges each table's
// structural record, metadata overlay and column catalog into a
// TableProperties value and caches those values per namespace.
package props

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablemeta/internal/assets"
	"github.com/conduit-lang/tablemeta/internal/colorrule"
	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/displayname"
	"github.com/conduit-lang/tablemeta/internal/invalidate"
	"github.com/conduit-lang/tablemeta/internal/kvs"
	"github.com/conduit-lang/tablemeta/internal/rowstore"
	"github.com/conduit-lang/tablemeta/internal/storage"
	"github.com/conduit-lang/tablemeta/internal/tabledef"
	"github.com/conduit-lang/tablemeta/internal/txn"
)

// DBProvider resolves the metadata database of a namespace
type DBProvider interface {
	DB(ctx context.Context, namespace string) (*sql.DB, error)
}

// RowStorage manages the data tables holding row contents
type RowStorage interface {
	CreateTable(ctx context.Context, tableID string, defs []column.Definition) error
	AddColumn(ctx context.Context, tableID string, def column.Definition) error
	DeleteTableAndData(ctx context.Context, tableID string) error
	HasCheckpoints(ctx context.Context, tableID string) (bool, error)
	HasConflicts(ctx context.Context, tableID string) (bool, error)
}

// RowStorageFactory binds a RowStorage to a database or transaction
type RowStorageFactory func(q storage.Querier) RowStorage

// Options configures a Store
type Options struct {
	// DB resolves namespace databases (required)
	DB DBProvider
	// Assets locates table files on disk; nil skips filesystem cleanup
	Assets *assets.Layout
	// Logger defaults to a no-op logger
	Logger *zap.Logger
	// Rows defaults to the SQL row store
	Rows RowStorageFactory
	// ColorRules supplies the status column rules of new tables
	ColorRules colorrule.Source
	// Generations, when set, invalidates caches across processes
	Generations invalidate.Tracker
	// Locale selects localized display names
	Locale string
}

// namespaceCache is guarded by its own mutex; every read and mutation of a
// namespace's cache happens with it held.
type namespaceCache struct {
	mu         sync.Mutex
	loaded     bool
	ids        []string
	tables     map[string]*TableProperties
	generation int64
}

func (nc *namespaceCache) markStale() {
	nc.loaded = false
	nc.ids = nil
	nc.tables = nil
}

// Store caches TableProperties per namespace and performs structural
// changes (table creation and deletion).
type Store struct {
	opts   Options
	logger *zap.Logger

	mu         sync.Mutex
	closed     bool
	namespaces map[string]*namespaceCache
}

// New creates a Store
func New(opts Options) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("props: a DBProvider is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rows == nil {
		opts.Rows = func(q storage.Querier) RowStorage { return rowstore.NewStore(q) }
	}
	if opts.ColorRules == nil {
		opts.ColorRules = colorrule.Defaults{}
	}
	if opts.Locale == "" {
		opts.Locale = displayname.DefaultLocale
	}

	return &Store{
		opts:       opts,
		logger:     opts.Logger,
		namespaces: make(map[string]*namespaceCache),
	}, nil
}

// Close drops every cached namespace. The store cannot be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.namespaces = make(map[string]*namespaceCache)
	return nil
}

func (s *Store) namespace(ns string) (*namespaceCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	nc, ok := s.namespaces[ns]
	if !ok {
		nc = &namespaceCache{}
		s.namespaces[ns] = nc
	}
	return nc, nil
}

// lock returns the locked cache and database of ns. The caller must unlock
// nc.mu.
func (s *Store) lock(ctx context.Context, ns string) (*namespaceCache, *sql.DB, error) {
	nc, err := s.namespace(ns)
	if err != nil {
		return nil, nil, err
	}
	db, err := s.opts.DB.DB(ctx, ns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open namespace %s: %w", ns, err)
	}
	nc.mu.Lock()
	return nc, db, nil
}

// generation reports the shared generation of ns. Tracker failures are
// logged and reported as unknown so that callers fall back to the count check.
func (s *Store) generation(ctx context.Context, ns string) (int64, bool) {
	if s.opts.Generations == nil {
		return 0, true
	}
	gen, err := s.opts.Generations.Current(ctx, ns)
	if err != nil {
		s.logger.Warn("failed to read namespace generation", zap.String("namespace", ns), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// bump advances the shared generation of ns after a local change. It
// reports false when another process changed ns in between, in which case
// the cache has been marked stale.
func (s *Store) bump(ctx context.Context, ns string, nc *namespaceCache) bool {
	if s.opts.Generations == nil {
		return true
	}
	gen, err := s.opts.Generations.Bump(ctx, ns)
	if err != nil {
		s.logger.Warn("failed to bump namespace generation", zap.String("namespace", ns), zap.Error(err))
		return true
	}
	if nc.loaded && gen == nc.generation+1 {
		nc.generation = gen
		return true
	}
	nc.markStale()
	return false
}

// ensureLoaded rebuilds the namespace cache unless it is loaded, its table
// count matches the backing store and its generation is current. It reports
// whether it rebuilt. Must be called with nc.mu held.
func (s *Store) ensureLoaded(ctx context.Context, ns string, nc *namespaceCache, db *sql.DB) (bool, error) {
	if nc.loaded {
		n, err := tabledef.NewStore(db).Count(ctx)
		if err != nil {
			return false, err
		}
		gen, known := s.generation(ctx, ns)
		if n == len(nc.ids) && (!known || gen == nc.generation) {
			return false, nil
		}
	}
	return true, s.rebuild(ctx, ns, nc, db)
}

// rebuild reloads every table of ns into a fresh map and swaps it in. On
// failure the cache is left stale. Must be called with nc.mu held.
func (s *Store) rebuild(ctx context.Context, ns string, nc *namespaceCache, db *sql.DB) error {
	nc.markStale()

	gen, _ := s.generation(ctx, ns)
	ids, err := tabledef.NewStore(db).ListTableIDs(ctx)
	if err != nil {
		return err
	}

	tables := make(map[string]*TableProperties, len(ids))
	for _, id := range ids {
		tp, err := s.load(ctx, ns, db, db, id)
		if err != nil {
			return fmt.Errorf("failed to load table %s: %w", id, err)
		}
		tables[id] = tp
	}

	nc.ids = ids
	nc.tables = tables
	nc.generation = gen
	nc.loaded = true

	s.logger.Debug("rebuilt table metadata cache", zap.String("namespace", ns), zap.Int("tables", len(ids)))
	return nil
}

// Get returns the cached properties of tableID, rebuilding the namespace
// cache first when it is stale or does not know the table.
func (s *Store) Get(ctx context.Context, ns, tableID string) (*TableProperties, error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer nc.mu.Unlock()

	rebuilt, err := s.ensureLoaded(ctx, ns, nc, db)
	if err != nil {
		return nil, err
	}
	if tp, ok := nc.tables[tableID]; ok {
		return tp, nil
	}
	if rebuilt {
		return nil, &NotFoundError{Namespace: ns, TableID: tableID}
	}

	if err := s.rebuild(ctx, ns, nc, db); err != nil {
		return nil, err
	}
	if tp, ok := nc.tables[tableID]; ok {
		return tp, nil
	}
	return nil, &NotFoundError{Namespace: ns, TableID: tableID}
}

// Refresh reloads tableID from the backing store and replaces its cache
// entry. Holders of the previous value keep it.
func (s *Store) Refresh(ctx context.Context, ns, tableID string) (*TableProperties, error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer nc.mu.Unlock()

	return s.refreshLocked(ctx, ns, nc, db, tableID)
}

func (s *Store) refreshLocked(ctx context.Context, ns string, nc *namespaceCache, db *sql.DB, tableID string) (*TableProperties, error) {
	if _, err := s.ensureLoaded(ctx, ns, nc, db); err != nil {
		return nil, err
	}

	tp, err := s.load(ctx, ns, db, db, tableID)
	if err != nil {
		if IsNotFound(err) {
			nc.markStale()
		}
		return nil, err
	}
	nc.register(tp)
	return tp, nil
}

// register adds or replaces tp in a loaded cache. Callers make sure the
// cache is loaded first; an unloaded cache is left alone and rebuilt later.
func (nc *namespaceCache) register(tp *TableProperties) {
	if !nc.loaded {
		return
	}
	if _, ok := nc.tables[tp.tableID]; !ok {
		nc.ids = append(nc.ids, tp.tableID)
		sort.Strings(nc.ids)
	}
	nc.tables[tp.tableID] = tp
}

// All returns the properties of every table in ns ordered by table id.
func (s *Store) All(ctx context.Context, ns string) ([]*TableProperties, error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer nc.mu.Unlock()

	if _, err := s.ensureLoaded(ctx, ns, nc, db); err != nil {
		return nil, err
	}
	out := make([]*TableProperties, 0, len(nc.ids))
	for _, id := range nc.ids {
		out = append(out, nc.tables[id])
	}
	return out, nil
}

// TableIDs returns the ids of every table in ns.
func (s *Store) TableIDs(ctx context.Context, ns string) ([]string, error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer nc.mu.Unlock()

	if _, err := s.ensureLoaded(ctx, ns, nc, db); err != nil {
		return nil, err
	}
	return cloneStrings(nc.ids), nil
}

// MarkStale drops the cache of ns; the next access rebuilds it.
func (s *Store) MarkStale(ns string) {
	nc, err := s.namespace(ns)
	if err != nil {
		return
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.markStale()
}

// AddTable creates tableID in ns. The structural record, the seeded
// overlay, the data table and the default status column color rules are
// written in a single transaction; the new properties are cached only after
// it commits, and later calls to Get return the same value.
func (s *Store) AddTable(ctx context.Context, ns, tableID, displayName string) (*TableProperties, error) {
	if err := ValidateTableID(tableID); err != nil {
		return nil, &CreationError{TableID: tableID, Err: err}
	}
	if displayName == "" {
		displayName = tableID
	}

	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, &CreationError{TableID: tableID, Err: err}
	}
	defer nc.mu.Unlock()

	if _, err := s.ensureLoaded(ctx, ns, nc, db); err != nil {
		return nil, &CreationError{TableID: tableID, Err: err}
	}

	var tp *TableProperties
	err = txn.Run(ctx, db, func(tx *sql.Tx) error {
		if err := tabledef.NewStore(tx).Insert(ctx, tabledef.New(tableID)); err != nil {
			return err
		}

		overlay := kvs.NewStore(tx)
		if err := overlay.AddEntries(ctx, seedEntries(tableID, displayName)); err != nil {
			return err
		}
		if err := s.opts.Rows(tx).CreateTable(ctx, tableID, nil); err != nil {
			return err
		}

		status := colorrule.NewGroup(overlay, tableID, colorrule.KindStatusColumn, "")
		if err := status.Save(ctx, s.opts.ColorRules.DefaultStatusColumnRules()); err != nil {
			return err
		}

		tp, err = s.load(ctx, ns, tx, db, tableID)
		return err
	})
	if err != nil {
		return nil, &CreationError{TableID: tableID, Err: err}
	}

	if !s.bump(ctx, ns, nc) {
		if err := s.rebuild(ctx, ns, nc, db); err != nil {
			s.logger.Warn("failed to reload namespace after table creation",
				zap.String("namespace", ns), zap.String("table", tableID), zap.Error(err))
		}
	}
	nc.register(tp)

	s.logger.Info("table created", zap.String("namespace", ns), zap.String("table", tableID))
	return tp, nil
}

// ValidateTableID rejects ids that cannot name a data table: ids must start
// with a letter and contain only letters, digits and underscores. Ids
// starting with an underscore are reserved for bookkeeping tables.
func ValidateTableID(tableID string) error {
	if tableID == "" {
		return errors.New("table id must not be empty")
	}
	if !tableIDPattern.MatchString(tableID) {
		return fmt.Errorf("invalid table id %q: must start with a letter and contain only letters, digits and underscores", tableID)
	}
	return nil
}

var tableIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func seedEntries(tableID, displayName string) []kvs.Entry {
	entry := func(key, typ, value string) kvs.Entry {
		return kvs.Entry{TableID: tableID, Partition: PartitionTable, Aspect: AspectDefault, Key: key, Type: typ, Value: &value}
	}
	return []kvs.Entry{
		entry(KeyDisplayName, kvs.TypeObject, displayname.Wrap(displayName)),
		entry(KeyColumnOrder, kvs.TypeArray, kvs.EncodeStringList(nil)),
		entry(KeyGroupByColumns, kvs.TypeArray, kvs.EncodeStringList(nil)),
		entry(KeySortOrder, kvs.TypeString, DefaultSortOrder),
		entry(KeyIndexColumn, kvs.TypeString, ""),
		entry(KeyDefaultViewType, kvs.TypeString, ViewSpreadsheet.String()),
	}
}

// DeleteTable removes tableID's files, data table and metadata. The
// namespace cache is marked stale whether or not deletion succeeds.
// Deleting a table that does not exist is not an error.
func (s *Store) DeleteTable(ctx context.Context, ns, tableID string) (err error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return &DeletionError{TableID: tableID, Err: err}
	}
	defer nc.mu.Unlock()

	defer func() {
		nc.markStale()
		s.bump(ctx, ns, nc)
		if err != nil {
			s.logger.Error("table deletion failed", zap.String("namespace", ns), zap.String("table", tableID), zap.Error(err))
		}
	}()

	if s.opts.Assets != nil {
		if err := s.opts.Assets.RemoveTable(ns, tableID); err != nil {
			return &DeletionError{TableID: tableID, Err: err}
		}
	}

	err = txn.Run(ctx, db, func(tx *sql.Tx) error {
		return s.opts.Rows(tx).DeleteTableAndData(ctx, tableID)
	})
	if err != nil {
		return &DeletionError{TableID: tableID, Err: err}
	}

	s.logger.Info("table deleted", zap.String("namespace", ns), zap.String("table", tableID))
	return nil
}

// ReplaceMetadata writes entries into tableID's overlay, optionally clearing
// the existing overlay first, and returns the refreshed properties.
func (s *Store) ReplaceMetadata(ctx context.Context, ns, tableID string, entries []kvs.Entry, clear bool) (*TableProperties, error) {
	nc, db, err := s.lock(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer nc.mu.Unlock()

	err = txn.Run(ctx, db, func(tx *sql.Tx) error {
		if _, err := tabledef.NewStore(tx).Get(ctx, tableID); err != nil {
			if errors.Is(err, tabledef.ErrNotFound) {
				return &NotFoundError{Namespace: ns, TableID: tableID}
			}
			return err
		}

		overlay := kvs.NewStore(tx)
		if clear {
			if err := overlay.Clear(ctx, tableID); err != nil {
				return err
			}
		}
		scoped := make([]kvs.Entry, len(entries))
		for i, e := range entries {
			e.TableID = tableID
			scoped[i] = e
		}
		return overlay.AddEntries(ctx, scoped)
	})
	if err != nil {
		return nil, err
	}

	return s.refreshLocked(ctx, ns, nc, db, tableID)
}
