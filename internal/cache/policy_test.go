package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/urlcache/internal/models"
)

func TestDecide(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	window := DefaultFreshnessWindow

	entryAged := func(age time.Duration) *models.CacheEntry {
		at := now.Add(-age)
		return &models.CacheEntry{CreatedAt: at, UpdatedAt: at}
	}

	tests := []struct {
		name     string
		existing *models.CacheEntry
		window   time.Duration
		want     Outcome
	}{
		{name: "missing", existing: nil, window: window, want: OutcomeInserted},
		{name: "just written", existing: entryAged(0), window: window, want: OutcomeSkipped},
		{name: "one day old", existing: entryAged(24 * time.Hour), window: window, want: OutcomeSkipped},
		{name: "just inside window", existing: entryAged(window - time.Second), window: window, want: OutcomeSkipped},
		{name: "exactly window", existing: entryAged(window), window: window, want: OutcomeUpdated},
		{name: "past window", existing: entryAged(window + time.Second), window: window, want: OutcomeUpdated},
		{name: "zero window", existing: entryAged(0), window: 0, want: OutcomeUpdated},
		{name: "future timestamp", existing: entryAged(-time.Hour), window: window, want: OutcomeSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Decide(tt.existing, now, tt.window))
		})
	}
}

func TestOverwriteAt(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	decide := overwriteAt(now)

	require.Equal(t, OutcomeInserted, decide(nil))
	require.Equal(t, OutcomeUpdated, decide(&models.CacheEntry{UpdatedAt: now}))
	require.Equal(t, OutcomeUpdated, decide(&models.CacheEntry{UpdatedAt: now.Add(-time.Hour)}))
	require.Equal(t, OutcomeSkipped, decide(&models.CacheEntry{UpdatedAt: now.Add(time.Hour)}))
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "skipped", OutcomeSkipped.String())
	require.Equal(t, "updated", OutcomeUpdated.String())
	require.Equal(t, "inserted", OutcomeInserted.String())
}

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, isUniqueConstraintError(nil))
	require.True(t, isUniqueConstraintError(errString("UNIQUE constraint failed: cache.key")))
	require.True(t, isUniqueConstraintError(errString("Error 1062: Duplicate entry 'x' for key 'PRIMARY'")))
	require.False(t, isUniqueConstraintError(errString("database is locked")))
}

type errString string

func (e errString) Error() string { return string(e) }
