package app

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/urlcache/internal/cache"
	"github.com/charlesng35/urlcache/internal/database"
	"github.com/charlesng35/urlcache/pkg/keys"
)

// FreshnessWindow converts the configured day count into a duration, capped at
// cache.MaxFreshnessDays.
func (c CacheConfig) FreshnessWindow() time.Duration {
	days := c.FreshnessWindowDays
	if days > cache.MaxFreshnessDays {
		days = cache.MaxFreshnessDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CacheOptions converts the application cache configuration into cache package options.
func (c CacheConfig) CacheOptions(log *zap.Logger) ([]cache.Option, error) {
	deriver, err := keys.NewDeriver(strings.TrimSpace(c.KeyAlgorithm))
	if err != nil {
		return nil, err
	}

	return []cache.Option{
		cache.WithFreshnessDays(c.FreshnessWindowDays),
		cache.WithKeyDeriver(deriver),
		cache.WithLogger(log),
	}, nil
}

// ConnectionConfig converts the application database configuration into database.Config.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	options := make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		options[k] = v
	}

	return database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:     strings.TrimSpace(c.Path),
		DSN:      strings.TrimSpace(c.DSN),
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		User:     strings.TrimSpace(c.User),
		Password: c.Password,
		Name:     strings.TrimSpace(c.Name),
		Options:  options,
	}
}
