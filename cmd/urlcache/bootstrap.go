package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/urlcache/internal/app"
	"github.com/charlesng35/urlcache/internal/app/maintenance"
	"github.com/charlesng35/urlcache/internal/cache"
	"github.com/charlesng35/urlcache/internal/database"
	"github.com/charlesng35/urlcache/internal/monitoring"
	"github.com/charlesng35/urlcache/internal/monitoring/checks"
)

// runtimeStack bundles the long-lived services a command needs.
type runtimeStack struct {
	DB         *gorm.DB
	Cache      *cache.Cache
	Monitoring *monitoring.Module
	Reporter   *maintenance.Reporter
}

// bootstrapRuntime opens and migrates the database and builds the cache. Monitoring and the
// stats reporter are wired only when withMonitoring is set.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger, withMonitoring bool) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	var err error
	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Cache.CacheOptions(log.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("cache options: %w", err)
	}

	if withMonitoring {
		stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
		if err != nil {
			return nil, fmt.Errorf("initialise monitoring: %w", err)
		}
		stack.Monitoring.Health().RegisterReadiness(checks.Database(stack.DB, 0))
		opts = append(opts, cache.WithRecorder(stack.Monitoring))
	}

	store := cache.NewDatabaseStore(stack.DB, cache.WithStoreLogger(log.Named("store")))
	stack.Cache, err = cache.New(store, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise cache: %w", err)
	}

	if withMonitoring {
		stack.Reporter = maintenance.NewReporter(stack.Cache, stack.Monitoring,
			maintenance.WithSchedule(cfg.Monitoring.ReportSchedule),
			maintenance.WithHealth(stack.Monitoring.Health()),
			maintenance.WithLogger(log.Named("maintenance")),
		)
		if err := stack.Reporter.Start(); err != nil {
			return nil, fmt.Errorf("start stats reporter: %w", err)
		}
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Reporter != nil {
		<-s.Reporter.Stop().Done()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, err
	}

	log.Debug("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadFile(path)
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
