package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/urlcache/internal/models"
	"github.com/charlesng35/urlcache/pkg/codec"
	apperrors "github.com/charlesng35/urlcache/pkg/errors"
	"github.com/charlesng35/urlcache/pkg/keys"
)

// Recorder receives one observation per cache operation. result is a write outcome,
// "hit"/"miss" for reads, or the lower-cased error code on failure.
type Recorder interface {
	RecordOperation(op, result string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string, time.Duration) {}

// Cache stores structured values under identifiers, refreshing an entry only once it is
// older than the freshness window. Reads ignore freshness.
type Cache struct {
	store    Store
	keys     *keys.Deriver
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger
	recorder Recorder
	reads    singleflight.Group
	optErr   error
}

// Option customises the Cache.
type Option func(*Cache)

// WithFreshnessWindow sets how long a write suppresses later writes for the same identifier.
func WithFreshnessWindow(window time.Duration) Option {
	return func(c *Cache) {
		c.window = window
	}
}

// WithFreshnessDays is WithFreshnessWindow expressed in whole days.
// Day counts above MaxFreshnessDays make New fail.
func WithFreshnessDays(days int) Option {
	if days > MaxFreshnessDays {
		return func(c *Cache) {
			c.optErr = apperrors.ErrInvalidConfig.WithMessage(
				fmt.Sprintf("cache: freshness window of %d days exceeds the maximum of %d", days, MaxFreshnessDays))
		}
	}
	return WithFreshnessWindow(time.Duration(days) * 24 * time.Hour)
}

// WithKeyDeriver overrides the default sha256 key derivation.
func WithKeyDeriver(deriver *keys.Deriver) Option {
	return func(c *Cache) {
		if deriver != nil {
			c.keys = deriver
		}
	}
}

// WithClock overrides the clock used for timestamps and freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger routes cache events to log.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRecorder reports operation outcomes and latencies to r.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// New constructs a Cache over store.
func New(store Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, apperrors.ErrStoreUnavailable.WithMessage("cache: store is required")
	}

	c := &Cache{
		store:    store,
		keys:     &keys.Deriver{},
		window:   DefaultFreshnessWindow,
		now:      time.Now,
		log:      zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.optErr != nil {
		return nil, c.optErr
	}
	if c.window < 0 {
		return nil, apperrors.ErrInvalidConfig.WithMessage(fmt.Sprintf("cache: freshness window must not be negative, got %s", c.window))
	}

	return c, nil
}

// Window returns the configured freshness window.
func (c *Cache) Window() time.Duration {
	return c.window
}

// Put stores value under identifier unless a fresh entry already exists. A skipped write is
// a successful outcome.
func (c *Cache) Put(ctx context.Context, identifier string, value any) (Outcome, error) {
	now := c.clock()
	return c.write(ctx, "put", identifier, value, now, func(existing *models.CacheEntry) Outcome {
		return Decide(existing, now, c.window)
	})
}

// Refresh stores value under identifier regardless of the entry's freshness.
func (c *Cache) Refresh(ctx context.Context, identifier string, value any) (Outcome, error) {
	now := c.clock()
	return c.write(ctx, "refresh", identifier, value, now, overwriteAt(now))
}

func (c *Cache) write(ctx context.Context, op, identifier string, value any, now time.Time, decide Decider) (Outcome, error) {
	start := time.Now()

	key, err := c.keys.Derive(identifier)
	if err != nil {
		return OutcomeSkipped, c.fail(op, start, err)
	}

	text, err := codec.Encode(value)
	if err != nil {
		return OutcomeSkipped, c.fail(op, start, err)
	}

	candidate := &models.CacheEntry{
		Key:       key,
		Data:      models.Payload(text),
		CreatedAt: now,
		UpdatedAt: now,
	}

	outcome, err := c.store.Apply(ctx, candidate, decide)
	if err != nil {
		c.log.Error("cache write failed",
			zap.String("op", op),
			zap.String("identifier", identifier),
			zap.String("key", key),
			zap.Error(err),
		)
		return OutcomeSkipped, c.fail(op, start, err)
	}

	fields := []zap.Field{
		zap.String("identifier", identifier),
		zap.String("key", key),
		zap.Stringer("outcome", outcome),
	}
	switch outcome {
	case OutcomeSkipped:
		c.log.Debug("cache entry fresh; skipping write", append(fields, zap.Duration("window", c.window))...)
	default:
		c.log.Info("cache entry written", fields...)
	}

	c.recorder.RecordOperation(op, outcome.String(), time.Since(start))
	return outcome, nil
}

// Get returns the value stored under identifier. found is false when nothing is stored;
// stale entries are returned like fresh ones.
func (c *Cache) Get(ctx context.Context, identifier string) (value any, found bool, err error) {
	start := time.Now()

	entry, err := c.lookup(ctx, identifier)
	if err != nil {
		return nil, false, c.fail("get", start, err)
	}
	if entry == nil {
		c.log.Debug("cache miss", zap.String("identifier", identifier))
		c.recorder.RecordOperation("get", "miss", time.Since(start))
		return nil, false, nil
	}

	value, err = codec.Decode(entry.Data.String())
	if err != nil {
		c.log.Warn("cached data could not be decoded",
			zap.String("identifier", identifier),
			zap.String("key", entry.Key),
			zap.Error(err),
		)
		return nil, false, c.fail("get", start, err)
	}

	c.recorder.RecordOperation("get", "hit", time.Since(start))
	return value, true, nil
}

// GetInto decodes the value stored under identifier into out, a pointer to a struct, map or
// slice. It reports false without touching out when nothing is stored.
func (c *Cache) GetInto(ctx context.Context, identifier string, out any) (bool, error) {
	value, found, err := c.Get(ctx, identifier)
	if err != nil || !found {
		return found, err
	}
	if err := codec.Assign(value, out); err != nil {
		return false, err
	}
	return true, nil
}

// EntryInfo describes a stored entry without decoding it.
type EntryInfo struct {
	Identifier string
	Key        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Age        time.Duration
	Stale      bool
	Size       int
}

// Inspect reports the metadata of the entry stored under identifier.
func (c *Cache) Inspect(ctx context.Context, identifier string) (EntryInfo, bool, error) {
	start := time.Now()

	entry, err := c.lookup(ctx, identifier)
	if err != nil {
		return EntryInfo{}, false, c.fail("inspect", start, err)
	}
	if entry == nil {
		c.recorder.RecordOperation("inspect", "miss", time.Since(start))
		return EntryInfo{}, false, nil
	}

	now := c.clock()
	c.recorder.RecordOperation("inspect", "hit", time.Since(start))
	return EntryInfo{
		Identifier: identifier,
		Key:        entry.Key,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
		Age:        entry.Age(now),
		Stale:      IsStale(entry, now, c.window),
		Size:       len(entry.Data),
	}, true, nil
}

// Stats counts stored entries and how many of them are stale.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats, err := c.store.Stats(ctx, c.clock().Add(-c.window))
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// lookup collapses concurrent reads of one key into a single store query. Callers decode
// the shared entry independently.
func (c *Cache) lookup(ctx context.Context, identifier string) (*models.CacheEntry, error) {
	key, err := c.keys.Derive(identifier)
	if err != nil {
		return nil, err
	}

	// The shared read ignores any one caller's cancellation; a cancelled caller stops waiting
	// while the others still get the result.
	shared := context.WithoutCancel(ctx)
	ch := c.reads.DoChan(key, func() (interface{}, error) {
		return c.store.Exists(shared, key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	entry, _ := res.Val.(*models.CacheEntry)
	return entry, nil
}

func (c *Cache) fail(op string, start time.Time, err error) error {
	result := "error"
	var cacheErr *apperrors.CacheError
	if errors.As(err, &cacheErr) {
		result = strings.ToLower(cacheErr.Code)
	}
	c.recorder.RecordOperation(op, result, time.Since(start))
	return err
}

func (c *Cache) clock() time.Time {
	return c.now().UTC()
}
