package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// CacheTableName is the single table holding cache entries.
const CacheTableName = "cache"

// CacheEntry represents a cached value keyed by the digest of its identifier.
// Timestamps are written explicitly by the cache rather than by gorm so that the
// caller's clock decides freshness.
type CacheEntry struct {
	Key       string    `gorm:"column:key;primaryKey;size:64"`
	Data      Payload   `gorm:"column:data;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index;autoUpdateTime:false"`
}

// TableName pins the table name instead of gorm's pluralised default.
func (CacheEntry) TableName() string {
	return CacheTableName
}

// Age returns how long ago the entry was last written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	if e == nil {
		return 0
	}
	return now.Sub(e.UpdatedAt)
}

// Payload is the JSON text of a cached value. It scans and serialises like datatypes.JSON
// but always lives in a plain text column, so the stored bytes are exactly what was encoded.
type Payload datatypes.JSON

// GormDataType keeps the column a text column on every dialect.
func (Payload) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	return datatypes.JSON(p).Value()
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(value interface{}) error {
	var raw datatypes.JSON
	if err := raw.Scan(value); err != nil {
		return err
	}
	*p = append((*p)[:0], raw...)
	return nil
}

// String returns the payload text.
func (p Payload) String() string {
	return string(p)
}
