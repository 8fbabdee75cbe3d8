package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/urlcache/internal/models"
	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

// DatabaseStore implements the cache Store interface using the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// StoreOption customises a DatabaseStore.
type StoreOption func(*DatabaseStore)

// WithStoreLogger attaches a logger for store-level events.
func WithStoreLogger(log *zap.Logger) StoreOption {
	return func(s *DatabaseStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, opts ...StoreOption) *DatabaseStore {
	if db == nil {
		return nil
	}
	store := &DatabaseStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

var errStoreNotInitialised = apperrors.ErrStoreUnavailable.WithMessage("cache: database store not initialised")

// Exists returns the entry stored under key, or nil when the key is absent.
func (s *DatabaseStore) Exists(ctx context.Context, key string) (*models.CacheEntry, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}

	entry, err := findEntry(s.db.WithContext(ensuredContext(ctx)), key, false)
	if err != nil {
		return nil, storeError("lookup", err)
	}
	return entry, nil
}

// Insert creates a new entry, failing with ErrConflict when the key already exists.
func (s *DatabaseStore) Insert(ctx context.Context, entry *models.CacheEntry) error {
	if s == nil {
		return errStoreNotInitialised
	}
	if entry == nil {
		return apperrors.ErrInvalidValue.WithMessage("cache: nil entry")
	}

	return insertEntry(s.db.WithContext(ensuredContext(ctx)), entry)
}

// Update overwrites data and updated_at for key, leaving created_at untouched.
func (s *DatabaseStore) Update(ctx context.Context, key string, data models.Payload, updatedAt time.Time) error {
	if s == nil {
		return errStoreNotInitialised
	}

	return updateEntry(s.db.WithContext(ensuredContext(ctx)), key, data, updatedAt)
}

// Apply runs the read-decide-write sequence for one key inside a single transaction.
func (s *DatabaseStore) Apply(ctx context.Context, candidate *models.CacheEntry, decide Decider) (Outcome, error) {
	if s == nil {
		return OutcomeSkipped, errStoreNotInitialised
	}
	if candidate == nil || decide == nil {
		return OutcomeSkipped, apperrors.ErrInvalidValue.WithMessage("cache: apply requires a candidate and a decider")
	}

	var outcome Outcome
	err := s.db.WithContext(ensuredContext(ctx)).Transaction(func(tx *gorm.DB) error {
		// Acquire row-level lock
		existing, err := findEntry(tx, candidate.Key, true)
		if err != nil {
			return storeError("lookup", err)
		}

		outcome = decide(existing)
		if outcome != OutcomeInserted {
			return applyExisting(tx, existing, candidate, outcome)
		}
		if existing != nil {
			return apperrors.ErrConflict.WithMessage("cache: insert chosen for an existing key")
		}

		insertErr := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(candidate).Error
		})
		if insertErr == nil {
			return nil
		}
		if !isUniqueConstraintError(insertErr) {
			return storeError("insert", insertErr)
		}

		// Another writer committed this key between our read and insert.
		existing, err = findEntry(tx, candidate.Key, true)
		if err != nil {
			return storeError("lookup", err)
		}
		if existing == nil {
			return apperrors.ErrConflict.WithInternal(insertErr)
		}
		s.log.Debug("cache insert raced with a concurrent writer", zap.String("key", candidate.Key))

		outcome = decide(existing)
		if outcome == OutcomeInserted {
			return apperrors.ErrConflict.WithInternal(insertErr)
		}
		return applyExisting(tx, existing, candidate, outcome)
	})
	if err != nil {
		return OutcomeSkipped, err
	}

	return outcome, nil
}

// Stats counts stored entries and entries last written at or before staleBefore.
func (s *DatabaseStore) Stats(ctx context.Context, staleBefore time.Time) (Stats, error) {
	if s == nil {
		return Stats{}, errStoreNotInitialised
	}

	db := s.db.WithContext(ensuredContext(ctx))

	var stats Stats
	if err := db.Model(&models.CacheEntry{}).Count(&stats.Entries).Error; err != nil {
		return Stats{}, storeError("count", err)
	}
	if err := db.Model(&models.CacheEntry{}).
		Where(clause.Lte{Column: clause.Column{Name: "updated_at"}, Value: staleBefore}).
		Count(&stats.Stale).Error; err != nil {
		return Stats{}, storeError("count", err)
	}

	return stats, nil
}

func applyExisting(tx *gorm.DB, existing, candidate *models.CacheEntry, outcome Outcome) error {
	switch outcome {
	case OutcomeSkipped:
		return nil
	case OutcomeUpdated:
		if existing == nil {
			return apperrors.ErrNotFound.WithMessage("cache: update chosen for a missing key")
		}
		return updateEntry(tx, candidate.Key, candidate.Data, candidate.UpdatedAt)
	default:
		return apperrors.ErrInternal.WithMessage("cache: unknown write outcome")
	}
}

func findEntry(db *gorm.DB, key string, lock bool) (*models.CacheEntry, error) {
	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var entry models.CacheEntry
	err := query.Where(keyEquals(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func insertEntry(db *gorm.DB, entry *models.CacheEntry) error {
	err := db.Create(entry).Error
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return apperrors.ErrConflict.WithInternal(err)
	}
	return storeError("insert", err)
}

func updateEntry(db *gorm.DB, key string, data models.Payload, updatedAt time.Time) error {
	result := db.Model(&models.CacheEntry{}).
		Where(keyEquals(key)).
		UpdateColumns(map[string]interface{}{
			"data":       data,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return storeError("update", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// key is reserved in MySQL, so the column is always referenced through a quoted clause.
func keyEquals(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
