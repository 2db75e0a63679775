package commands

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablemeta/internal/assets"
	"github.com/conduit-lang/tablemeta/internal/cli/config"
	"github.com/conduit-lang/tablemeta/internal/invalidate"
	"github.com/conduit-lang/tablemeta/internal/logging"
	"github.com/conduit-lang/tablemeta/internal/props"
	"github.com/conduit-lang/tablemeta/internal/storage"
)

// App holds the services a command runs against
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Pool   *storage.Pool
	Store  *props.Store

	tracker invalidate.Tracker
}

// NewApp wires the metadata store described by cfg: one database per
// namespace, table assets under the data directory and cache invalidation,
// shared with other processes through Redis when it is configured.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewOrNop(cfg.Log)

	opener, err := storage.OpenerFor(cfg.Database.Driver, cfg.DataDir, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Pool: storage.NewPool(opener)}

	if cfg.Redis.Enabled() {
		tracker, err := invalidate.NewRedisTracker(invalidate.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			app.Pool.Close()
			return nil, err
		}
		app.tracker = tracker
	} else {
		app.tracker = invalidate.NewMemoryTracker()
	}

	layout := assets.NewLayout(cfg.DataDir)
	app.Store, err = props.New(props.Options{
		DB:          app.Pool,
		Assets:      &layout,
		Logger:      logger,
		Generations: app.tracker,
		Locale:      cfg.Locale,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	return app, nil
}

// Close releases the store, the databases and the invalidation tracker
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.tracker != nil {
		errs = append(errs, a.tracker.Close())
	}
	errs = append(errs, a.Pool.Close())
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
