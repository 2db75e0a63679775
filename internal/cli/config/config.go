package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/tablemeta/internal/storage"
)

// Supported database drivers
const (
	DriverSQLite   = storage.DriverSQLite
	DriverPostgres = storage.DriverPostgres
)

// EnvPrefix prefixes every environment variable override, e.g.
// TABLEMETA_DATABASE_DSN for database.dsn.
const EnvPrefix = "TABLEMETA"

// Config represents the tablemeta configuration
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Locale   string         `mapstructure:"locale"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig configures shared cache invalidation. An empty address
// disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Enabled reports whether a Redis server is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads the configuration. An explicit path must exist; otherwise
// tablemeta.yml or tablemeta.yaml is looked up in the current directory
// and defaults are used when neither exists.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", "./odk")
	v.SetDefault("locale", "default")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tablemeta:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tablemeta")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindConfigFile walks up from the current directory looking for
// tablemeta.yml or tablemeta.yaml. It returns "" when there is none.
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"tablemeta.yml", "tablemeta.yaml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case DriverSQLite:
		if cfg.DataDir == "" {
			return fmt.Errorf("data_dir is required for the %s driver", DriverSQLite)
		}
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got: %q", DriverSQLite, DriverPostgres, cfg.Database.Driver)
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got: %d", cfg.Redis.DB)
	}

	return nil
}
