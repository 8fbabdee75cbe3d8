package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// parseTime is required to scan created_at/updated_at into time.Time.
var mysqlDefaults = map[string]string{
	"charset":   "utf8mb4",
	"parseTime": "True",
	"loc":       "UTC",
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig())
}

func buildMySQLDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if err := requireCredentials("mysql", cfg); err != nil {
		return "", err
	}

	user := cfg.User
	if cfg.Password != "" {
		user += ":" + cfg.Password
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		user,
		withDefault(cfg.Host, "127.0.0.1"),
		portOrDefault(cfg.Port, 3306),
		cfg.Name,
		strings.Join(mergeOptions(mysqlDefaults, cfg.Options), "&"),
	), nil
}
