package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	govalidator "github.com/go-playground/validator/v10"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
	"github.com/charlesng35/urlcache/pkg/validator"
)

// Config represents the runtime configuration for urlcache.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver" validate:"required,oneof=sqlite postgres mysql"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port" validate:"gte=0,lte=65535"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig tunes the freshness policy and key derivation.
type CacheConfig struct {
	FreshnessWindowDays int    `mapstructure:"freshness_window_days" validate:"gte=0,lte=106751"`
	KeyAlgorithm        string `mapstructure:"key_algorithm" validate:"required,oneof=sha256 sha3-256 blake3"`
}

// MonitoringConfig enables metrics and the periodic stats reporter.
type MonitoringConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ReportSchedule string `mapstructure:"report_schedule" validate:"required_if=Enabled true,omitempty,cronspec"`
	Listen         string `mapstructure:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,startswith=/"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("URLCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// LoadFile reads configuration from an explicit file path. Missing files are an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("URLCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate checks the loaded configuration and reports every invalid field at once.
func (c *Config) Validate() error {
	if c == nil {
		return apperrors.ErrInvalidConfig.WithMessage("config: nil configuration")
	}
	registerRules()
	if err := validator.ValidateStruct(c); err != nil {
		return apperrors.ErrInvalidConfig.WithMessage("config: " + err.Error()).WithInternal(err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/cache.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")

	v.SetDefault("cache.freshness_window_days", 30)
	v.SetDefault("cache.key_algorithm", "sha256")

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.report_schedule", "@every 1m")
	v.SetDefault("monitoring.listen", "127.0.0.1:9464")
	v.SetDefault("monitoring.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var registerOnce sync.Once

func registerRules() {
	registerOnce.Do(func() {
		_ = validator.RegisterValidation("cronspec", func(fl govalidator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
	})
}
