package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/urlcache/internal/models"
)

// AutoMigrate creates or updates the cache schema. Running it against an existing
// database leaves stored entries untouched.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(&models.CacheEntry{})
}
