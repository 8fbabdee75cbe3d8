package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/urlcache/internal/cache"
	"github.com/charlesng35/urlcache/internal/database"
	"github.com/charlesng35/urlcache/internal/database/testutil"
	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "./logs/urlcache.log", cfg.Log.File)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)
	require.Equal(t, "cache", cfg.Database.User)
	require.Equal(t, "secret", cfg.Database.Password)
	require.Equal(t, "urlcache", cfg.Database.Name)
	require.Equal(t, map[string]string{"sslmode": "require"}, cfg.Database.Options)

	require.Equal(t, 7, cfg.Cache.FreshnessWindowDays)
	require.Equal(t, "blake3", cfg.Cache.KeyAlgorithm)

	require.True(t, cfg.Monitoring.Enabled)
	require.Equal(t, "*/5 * * * *", cfg.Monitoring.ReportSchedule)
	require.Equal(t, "0.0.0.0:9464", cfg.Monitoring.Listen)
	require.Equal(t, "/metrics", cfg.Monitoring.Endpoint)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/cache.sqlite", cfg.Database.Path)
	require.Equal(t, 30, cfg.Cache.FreshnessWindowDays)
	require.Equal(t, 30*24*time.Hour, cfg.Cache.FreshnessWindow())
	require.Equal(t, "sha256", cfg.Cache.KeyAlgorithm)
	require.False(t, cfg.Monitoring.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("URLCACHE_CACHE_FRESHNESS_WINDOW_DAYS", "0")
	t.Setenv("URLCACHE_DATABASE_PATH", "/var/lib/urlcache/cache.sqlite")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 0, cfg.Cache.FreshnessWindowDays)
	require.Equal(t, "/var/lib/urlcache/cache.sqlite", cfg.Database.Path)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  freshness_window_days: 3\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Cache.FreshnessWindowDays)
	require.Equal(t, "sqlite", cfg.Database.Driver)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsInvalidSettings(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Cache.FreshnessWindowDays = -1
	cfg.Cache.KeyAlgorithm = "md5"
	cfg.Database.Driver = "oracle"
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.ReportSchedule = "every so often"

	err = cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	require.Contains(t, err.Error(), "freshness_window_days")
	require.Contains(t, err.Error(), "key_algorithm")
	require.Contains(t, err.Error(), "driver")
	require.Contains(t, err.Error(), "report_schedule")

	var nilCfg *Config
	require.ErrorIs(t, nilCfg.Validate(), apperrors.ErrInvalidConfig)
}

func TestValidateBoundsFreshnessWindowDays(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Cache.FreshnessWindowDays = cache.MaxFreshnessDays
	require.NoError(t, cfg.Validate())
	require.Positive(t, cfg.Cache.FreshnessWindow())

	for _, days := range []int{cache.MaxFreshnessDays + 1, 213504} {
		cfg.Cache.FreshnessWindowDays = days
		err := cfg.Validate()
		require.ErrorIs(t, err, apperrors.ErrInvalidConfig, "days=%d", days)
		require.Contains(t, err.Error(), "freshness_window_days")

		opts, err := cfg.Cache.CacheOptions(zap.NewNop())
		require.NoError(t, err)
		_, err = cache.New(cache.NewDatabaseStore(testutil.MustOpenTestDB(t)), opts...)
		require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	}
}

func TestCacheConfigAdapter(t *testing.T) {
	cfg := CacheConfig{FreshnessWindowDays: 2, KeyAlgorithm: "sha3-256"}

	opts, err := cfg.CacheOptions(zap.NewNop())
	require.NoError(t, err)
	require.Len(t, opts, 3)
	require.Equal(t, 48*time.Hour, cfg.FreshnessWindow())

	_, err = CacheConfig{KeyAlgorithm: "md5"}.CacheOptions(zap.NewNop())
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestDatabaseConfigAdapter(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   " MySQL ",
		Host:     "db.internal",
		Port:     3306,
		User:     "cache",
		Password: " keep spaces ",
		Name:     "urlcache",
		Options:  map[string]string{"charset": "utf8mb4"},
	}

	require.Equal(t, database.Config{
		Driver:   "mysql",
		Host:     "db.internal",
		Port:     3306,
		User:     "cache",
		Password: " keep spaces ",
		Name:     "urlcache",
		Options:  map[string]string{"charset": "utf8mb4"},
	}, cfg.ConnectionConfig())
}
