package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Opener opens the metadata database of a single namespace.
type Opener func(ctx context.Context, namespace string) (*sql.DB, error)

// SQLiteOpener stores every namespace in its own file under
// <dataDir>/<namespace>/metadata/sqlite.db.
func SQLiteOpener(dataDir string) Opener {
	return func(ctx context.Context, namespace string) (*sql.DB, error) {
		dir := filepath.Join(dataDir, namespace, "metadata")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %w", err)
		}
		return OpenSQLiteFile(filepath.Join(dir, "sqlite.db"))
	}
}

// OpenSQLiteFile opens a sqlite database file with WAL journaling and a busy
// timeout so concurrent readers do not fail while a writer holds the lock.
func OpenSQLiteFile(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return db, nil
}

// PostgresOpener maps every namespace onto a PostgreSQL schema of the same
// name inside the database addressed by dsn.
func PostgresOpener(dsn string) Opener {
	return func(ctx context.Context, namespace string) (*sql.DB, error) {
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}

		admin := stdlib.OpenDB(*cfg)
		_, err = admin.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(namespace))
		closeErr := admin.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to create schema for namespace %s: %w", namespace, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to close admin connection: %w", closeErr)
		}

		cfg.RuntimeParams["search_path"] = namespace
		return stdlib.OpenDB(*cfg), nil
	}
}

// OpenerFor returns the Opener for a configured driver.
func OpenerFor(driver, dataDir, dsn string) (Opener, error) {
	switch driver {
	case "", DriverSQLite:
		return SQLiteOpener(dataDir), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("database.dsn is required for driver %s", driver)
		}
		return PostgresOpener(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Pool lazily opens and initializes one database per namespace and keeps the
// handles for the lifetime of the process.
type Pool struct {
	open Opener

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewPool creates a pool that opens namespaces with open.
func NewPool(open Opener) *Pool {
	return &Pool{
		open: open,
		dbs:  make(map[string]*sql.DB),
	}
}

// DB returns the database of namespace, opening and initializing it on first use.
func (p *Pool) DB(ctx context.Context, namespace string) (*sql.DB, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.dbs[namespace]; ok {
		return db, nil
	}

	db, err := p.open(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if err := Initialize(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	p.dbs[namespace] = db
	return db, nil
}

// Namespaces returns the namespaces opened so far, sorted.
func (p *Pool) Namespaces() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.dbs))
	for ns := range p.dbs {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Close closes every open database.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for ns, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close namespace %s: %w", ns, err))
		}
		delete(p.dbs, ns)
	}
	return errors.Join(errs...)
}
