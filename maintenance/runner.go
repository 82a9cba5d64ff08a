// Package maintenance runs the periodic background jobs of the answer
// service: keyword backfill for analytics events, anomaly scans that raise
// notifications, and value log garbage collection.
//
// Every cycle is idempotent. An anomaly kind is reported at most once per
// clock hour. A failing cycle is logged and tried again on
// the next tick.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/metrics"
	"github.com/Devcavi19/adal-4naga-app/persistence"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"golang.org/x/sync/errgroup"
)

// Runner defaults.
const (
	DefaultKeywordInterval    = time.Hour
	DefaultAnomalyInterval    = time.Hour
	DefaultGCInterval         = 10 * time.Minute
	DefaultBackfillWindow     = 2 * time.Hour
	DefaultSpikeWindow        = 24 * time.Hour
	DefaultSpikeMultiplier    = 2.0
	DefaultErrorRatePercent   = 10.0
	DefaultSatisfactionWindow = 24 * time.Hour
	DefaultSatisfactionRate   = 60.0
	DefaultMinRatings         = 10
	DefaultGCDiscardRatio     = 0.5
	KeywordBackfillCheckpoint = "keyword-backfill"
)

// Notification kinds.
const (
	KindQuerySpike       = "query_spike"
	KindErrorRate        = "error_rate"
	KindSatisfactionDrop = "satisfaction_drop"
)

var (
	// ErrAnalyticsRepositoryRequired is returned when an analytics repository is not provided.
	ErrAnalyticsRepositoryRequired = errors.New("analytics repository required")

	// ErrCheckpointRepositoryRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")
)

// GarbageCollector reclaims space in the underlying store.
type GarbageCollector interface {
	CollectGarbage(discardRatio float64) error
}

// Runner schedules the maintenance jobs.
type Runner struct {
	analytics   storage.AnalyticsRepository
	checkpoints storage.CheckpointRepository
	collector   GarbageCollector

	keywordInterval time.Duration
	anomalyInterval time.Duration
	gcInterval      time.Duration
	backfillWindow  time.Duration
	spikeWindow     time.Duration
	spikeMultiplier float64
	errorRate       float64
	satisfaction    float64
	minRatings      int
	keywordCount    int
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithIntervals sets how often keyword backfill and anomaly scans run.
func WithIntervals(keyword, anomaly time.Duration) Option {
	return func(r *Runner) error {
		if keyword <= 0 || anomaly <= 0 {
			return fmt.Errorf("intervals must be positive, got %s and %s", keyword, anomaly)
		}
		r.keywordInterval = keyword
		r.anomalyInterval = anomaly
		return nil
	}
}

// WithGarbageCollector enables periodic garbage collection.
func WithGarbageCollector(collector GarbageCollector, interval time.Duration) Option {
	return func(r *Runner) error {
		if interval <= 0 {
			return fmt.Errorf("gc interval must be positive, got %s", interval)
		}
		r.collector = collector
		r.gcInterval = interval
		return nil
	}
}

// WithThresholds sets the query spike multiplier and the error rate
// percentage above which notifications are raised.
func WithThresholds(spikeMultiplier, errorRatePercent float64) Option {
	return func(r *Runner) error {
		if spikeMultiplier <= 0 || errorRatePercent <= 0 {
			return fmt.Errorf("thresholds must be positive, got %g and %g", spikeMultiplier, errorRatePercent)
		}
		r.spikeMultiplier = spikeMultiplier
		r.errorRate = errorRatePercent
		return nil
	}
}

// WithSatisfaction sets the share of positive ratings, in percent, below
// which a satisfaction drop is reported, and how many ratings the last
// day must hold before the check applies.
func WithSatisfaction(ratePercent float64, minRatings int) Option {
	return func(r *Runner) error {
		if ratePercent <= 0 || ratePercent > 100 {
			return fmt.Errorf("satisfaction rate must be in (0, 100], got %g", ratePercent)
		}
		if minRatings < 1 {
			return fmt.Errorf("minimum ratings must be positive, got %d", minRatings)
		}
		r.satisfaction = ratePercent
		r.minRatings = minRatings
		return nil
	}
}

// WithSpikeWindow sets the trailing window the hourly query average is taken over.
func WithSpikeWindow(window time.Duration) Option {
	return func(r *Runner) error {
		if window < time.Hour {
			return fmt.Errorf("spike window must be at least one hour, got %s", window)
		}
		r.spikeWindow = window
		return nil
	}
}

// WithKeywordCount sets how many keywords are backfilled per event.
func WithKeywordCount(n int) Option {
	return func(r *Runner) error {
		r.keywordCount = n
		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(analytics storage.AnalyticsRepository, checkpoints storage.CheckpointRepository, opts ...Option) (*Runner, error) {
	if analytics == nil {
		return nil, ErrAnalyticsRepositoryRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	r := &Runner{
		analytics:       analytics,
		checkpoints:     checkpoints,
		keywordInterval: DefaultKeywordInterval,
		anomalyInterval: DefaultAnomalyInterval,
		gcInterval:      DefaultGCInterval,
		backfillWindow:  DefaultBackfillWindow,
		spikeWindow:     DefaultSpikeWindow,
		spikeMultiplier: DefaultSpikeMultiplier,
		errorRate:       DefaultErrorRatePercent,
		satisfaction:    DefaultSatisfactionRate,
		minRatings:      DefaultMinRatings,
		keywordCount:    persistence.DefaultKeywordCount,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "maintenance")
	return r, nil
}

// Run executes every job on its interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.loop(ctx, "keyword-backfill", r.keywordInterval, func(ctx context.Context) error {
			_, err := r.BackfillKeywords(ctx)
			return err
		})
		return nil
	})
	g.Go(func() error {
		r.loop(ctx, "anomaly-scan", r.anomalyInterval, func(ctx context.Context) error {
			_, err := r.ScanAnomalies(ctx)
			return err
		})
		return nil
	})
	if r.collector != nil {
		g.Go(func() error {
			r.loop(ctx, "gc", r.gcInterval, r.CollectGarbage)
			return nil
		})
	}

	r.logger.Info("maintenance started",
		"keyword_interval", r.keywordInterval,
		"anomaly_interval", r.anomalyInterval,
		"gc", r.collector != nil)
	err := g.Wait()
	r.logger.Info("maintenance stopped")
	return err
}

func (r *Runner) loop(ctx context.Context, job string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				r.logger.Error("maintenance job failed", "job", job, "err", err)
			}
		}
	}
}

// BackfillKeywords fills in keywords for recent events that have none and
// returns how many events were updated.
func (r *Runner) BackfillKeywords(ctx context.Context) (int, error) {
	now := r.now()
	events, err := r.analytics.GetEventsSince(ctx, now.Add(-r.backfillWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}

	var updated []*core.AnalyticsEvent
	for _, event := range events {
		if len(event.Keywords) > 0 {
			continue
		}
		keywords := persistence.ExtractKeywords(event.QueryText, r.keywordCount)
		if len(keywords) == 0 {
			continue
		}
		event.Keywords = keywords
		updated = append(updated, event)
	}

	if len(updated) > 0 {
		if err := r.analytics.UpdateEvents(ctx, updated...); err != nil {
			return 0, fmt.Errorf("failed to update events: %w", err)
		}
	}

	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, KeywordBackfillCheckpoint)
	if err != nil {
		return len(updated), fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		checkpoint = &core.Checkpoint{Name: KeywordBackfillCheckpoint}
	}
	checkpoint.LastRunAt = now
	checkpoint.Processed += len(updated)
	if err := r.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return len(updated), fmt.Errorf("failed to save checkpoint: %w", err)
	}

	r.logger.Info("keyword backfill finished", "scanned", len(events), "updated", len(updated))
	return len(updated), nil
}

// ScanAnomalies checks query volume and error rate over the last hour and
// answer ratings over the last day, and stores a notification for each
// anomaly not already reported in the current clock hour.
func (r *Runner) ScanAnomalies(ctx context.Context) ([]*core.Notification, error) {
	now := r.now()
	hourAgo := now.Add(-time.Hour)

	raised, err := r.analytics.GetNotificationsSince(ctx, now.Truncate(time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	reported := make(map[string]bool, len(raised))
	for _, n := range raised {
		reported[n.Kind] = true
	}

	events, err := r.analytics.GetEventsSince(ctx, now.Add(-r.spikeWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	errs, err := r.analytics.GetErrorsSince(ctx, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to load error log: %w", err)
	}

	feedback, err := r.analytics.GetFeedbackSince(ctx, now.Add(-DefaultSatisfactionWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	recent := 0
	for _, event := range events {
		if !event.CreatedAt.Before(hourAgo) {
			recent++
		}
	}

	var found []*core.Notification
	for _, n := range []*core.Notification{
		r.checkQuerySpike(recent, len(events)),
		r.checkErrorRate(recent, len(errs)),
		r.checkSatisfactionDrop(feedback),
	} {
		if n == nil {
			continue
		}
		if reported[n.Kind] {
			r.logger.Debug("anomaly already reported this hour", "kind", n.Kind)
			continue
		}
		n.CreatedAt = now
		found = append(found, n)
	}

	if len(found) == 0 {
		r.logger.Debug("no anomalies detected", "recent_queries", recent, "recent_errors", len(errs))
		return nil, nil
	}
	if err := r.analytics.AddNotifications(ctx, found...); err != nil {
		return nil, fmt.Errorf("failed to store notifications: %w", err)
	}
	for _, n := range found {
		metrics.NotificationRaised(n.Kind)
		r.logger.Warn("anomaly detected", "kind", n.Kind, "message", n.Message)
	}
	return found, nil
}

func (r *Runner) checkQuerySpike(recent, total int) *core.Notification {
	hours := r.spikeWindow.Hours()
	average := 1.0
	if total > 0 {
		average = float64(total) / hours
	}
	if float64(recent) <= average*r.spikeMultiplier {
		return nil
	}
	return &core.Notification{
		Kind:     KindQuerySpike,
		Title:    "Query Volume Spike Detected",
		Message:  fmt.Sprintf("Current hour has %d queries (avg: %.1f)", recent, average),
		Severity: core.SeverityWarning,
	}
}

func (r *Runner) checkErrorRate(queries, errs int) *core.Notification {
	if queries == 0 {
		return nil
	}
	rate := float64(errs) / float64(queries) * 100
	if rate <= r.errorRate {
		return nil
	}
	return &core.Notification{
		Kind:     KindErrorRate,
		Title:    "High Error Rate Detected",
		Message:  fmt.Sprintf("Error rate is %.1f%% (%d/%d)", rate, errs, queries),
		Severity: core.SeverityCritical,
	}
}

func (r *Runner) checkSatisfactionDrop(feedback []*core.Feedback) *core.Notification {
	if len(feedback) < r.minRatings {
		return nil
	}
	positive := 0
	for _, fb := range feedback {
		if fb.Rating >= core.PositiveRating {
			positive++
		}
	}
	rate := float64(positive) / float64(len(feedback)) * 100
	if rate >= r.satisfaction {
		return nil
	}
	return &core.Notification{
		Kind:     KindSatisfactionDrop,
		Title:    "Low User Satisfaction",
		Message:  fmt.Sprintf("Satisfaction rate is %.1f%% (threshold: %g%%)", rate, r.satisfaction),
		Severity: core.SeverityWarning,
	}
}

// CollectGarbage runs one garbage collection pass when a collector is set.
func (r *Runner) CollectGarbage(ctx context.Context) error {
	if r.collector == nil {
		return nil
	}
	if err := r.collector.CollectGarbage(DefaultGCDiscardRatio); err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}
	return nil
}
