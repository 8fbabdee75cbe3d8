package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, apperrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported database driver %q", cfg.Driver))
	}
}

// OpenAndMigrate opens the database and ensures the cache schema exists. Connection and
// migration failures are reported as ErrStoreUnavailable.
func OpenAndMigrate(cfg Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		var cacheErr *apperrors.CacheError
		if errors.As(err, &cacheErr) {
			return nil, err
		}
		return nil, apperrors.ErrStoreUnavailable.WithMessage("open database").WithInternal(err)
	}

	if err := AutoMigrate(db); err != nil {
		_ = Close(db)
		return nil, apperrors.ErrStoreUnavailable.WithMessage("auto migrate").WithInternal(err)
	}

	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// requireCredentials reports a missing user or database name for server drivers.
func requireCredentials(driver string, cfg Config) error {
	if cfg.User == "" || cfg.Name == "" {
		return apperrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s configuration requires user and database name", driver))
	}
	return nil
}

// mergeOptions overlays overrides on defaults and renders sorted key=value pairs.
func mergeOptions(defaults, overrides map[string]string) []string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+merged[k])
	}
	return pairs
}

func withDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func portOrDefault(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
}
