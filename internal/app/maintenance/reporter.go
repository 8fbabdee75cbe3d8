package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/urlcache/internal/cache"
	"github.com/charlesng35/urlcache/internal/monitoring"
)

const (
	defaultReportSpec    = "@every 1m"
	defaultReportTimeout = 30 * time.Second
)

// StatsSource reports entry totals. *cache.Cache satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// StatsSink receives report results. *monitoring.Module satisfies it.
type StatsSink interface {
	SetEntryStats(entries, stale int64)
	RecordReport(result string, at time.Time)
}

// Reporter periodically samples cache statistics into the metrics sink and evaluates
// readiness probes. It only reads; stale entries stay in the table.
type Reporter struct {
	source   StatsSource
	sink     StatsSink
	health   *monitoring.HealthManager
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
	timeout  time.Duration
}

// Option customises the Reporter.
type Option func(*Reporter)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reporter) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used to stamp successful reports.
func WithNow(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the report job.
func WithSchedule(spec string) Option {
	return func(r *Reporter) {
		if spec = strings.TrimSpace(spec); spec != "" {
			r.schedule = spec
		}
	}
}

// WithHealth evaluates the manager's readiness probes on every run.
func WithHealth(health *monitoring.HealthManager) Option {
	return func(r *Reporter) {
		r.health = health
	}
}

// WithLogger routes report failures to log.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reporter) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTimeout bounds a single scheduled run.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Reporter) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewReporter constructs a Reporter. A nil source disables the stats job; a nil sink
// discards results.
func NewReporter(source StatsSource, sink StatsSink, opts ...Option) *Reporter {
	r := &Reporter{
		source:   source,
		sink:     sink,
		now:      time.Now,
		log:      zap.NewNop(),
		schedule: defaultReportSpec,
		timeout:  defaultReportTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return r
}

// Start registers the report job with the cron scheduler and launches it.
func (r *Reporter) Start() error {
	if r.source == nil && r.health == nil {
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("stats report failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Reporter) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce samples statistics and evaluates readiness, returning every failure combined.
func (r *Reporter) RunOnce(ctx context.Context) (cache.Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats cache.Stats
		errs  error
	)

	if r.source != nil {
		sampled, err := r.source.Stats(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stats: %w", err))
		} else {
			stats = sampled
			if r.sink != nil {
				r.sink.SetEntryStats(stats.Entries, stats.Stale)
			}
			r.log.Debug("cache stats sampled",
				zap.Int64("entries", stats.Entries),
				zap.Int64("stale", stats.Stale),
			)
		}
	}

	if r.health != nil {
		report := r.health.EvaluateReadiness(ctx)
		for _, check := range report.Checks {
			if check.Status != monitoring.StatusUp {
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %s", check.Component, check.Status, check.Details))
			}
		}
	}

	if ctx.Err() != nil && !errors.Is(errs, ctx.Err()) {
		errs = multierr.Append(errs, ctx.Err())
	}

	if r.sink != nil {
		result := "success"
		if errs != nil {
			result = "failure"
		}
		r.sink.RecordReport(result, r.now())
	}

	return stats, errs
}
