package cache

import (
	"context"
	"time"

	"github.com/charlesng35/urlcache/internal/models"
)

// Outcome describes what a write did to the stored entry.
type Outcome int

const (
	// OutcomeSkipped means an entry existed and was left untouched.
	OutcomeSkipped Outcome = iota
	// OutcomeUpdated means an existing entry had its data and updated_at replaced.
	OutcomeUpdated
	// OutcomeInserted means a new entry was created.
	OutcomeInserted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUpdated:
		return "updated"
	case OutcomeInserted:
		return "inserted"
	default:
		return "unknown"
	}
}

// Decider inspects the current entry for a key (nil when absent) and chooses the write to perform.
// It may be invoked more than once per Apply and must not have side effects.
type Decider func(existing *models.CacheEntry) Outcome

// Stats summarises the stored entries.
type Stats struct {
	Entries int64
	Stale   int64
}

// Store is the durable key-value contract behind the cache.
type Store interface {
	// Exists returns the entry for key, or nil when there is none.
	Exists(ctx context.Context, key string) (*models.CacheEntry, error)
	// Insert creates entry and fails with ErrConflict when its key is taken.
	Insert(ctx context.Context, entry *models.CacheEntry) error
	// Update replaces data and updated_at of an existing key and fails with ErrNotFound otherwise.
	Update(ctx context.Context, key string, data models.Payload, updatedAt time.Time) error
	// Apply reads the entry for candidate.Key and performs the write chosen by decide as one
	// atomic step. Inserts use candidate as-is; updates take candidate.Data and candidate.UpdatedAt.
	Apply(ctx context.Context, candidate *models.CacheEntry, decide Decider) (Outcome, error)
	// Stats counts all entries and those last written at or before staleBefore.
	Stats(ctx context.Context, staleBefore time.Time) (Stats, error)
}
