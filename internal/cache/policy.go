package cache

import (
	"math"
	"time"

	"github.com/charlesng35/urlcache/internal/models"
)

// DefaultFreshnessWindow is how long a written entry suppresses further writes.
const DefaultFreshnessWindow = 30 * 24 * time.Hour

// MaxFreshnessDays is the largest day count a time.Duration can hold.
const MaxFreshnessDays = int(math.MaxInt64 / int64(24*time.Hour))

// Decide chooses the write for a put at now: insert when nothing is stored, skip while the
// stored entry is younger than window, update once it is stale.
func Decide(existing *models.CacheEntry, now time.Time, window time.Duration) Outcome {
	if existing == nil {
		return OutcomeInserted
	}
	if IsStale(existing, now, window) {
		return OutcomeUpdated
	}
	return OutcomeSkipped
}

// IsStale reports whether entry's age has reached window.
func IsStale(entry *models.CacheEntry, now time.Time, window time.Duration) bool {
	if entry == nil {
		return false
	}
	return entry.Age(now) >= window
}

// overwriteAt is the decider behind Refresh: it ignores freshness but never moves
// updated_at backwards.
func overwriteAt(now time.Time) Decider {
	return func(existing *models.CacheEntry) Outcome {
		if existing == nil {
			return OutcomeInserted
		}
		if existing.Age(now) < 0 {
			return OutcomeSkipped
		}
		return OutcomeUpdated
	}
}
