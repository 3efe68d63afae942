package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const defaultPurgeInterval = 12 * time.Hour

// PurgeReport summarizes one purge run.
type PurgeReport struct {
	RanAt   time.Time `json:"ran_at"`
	Users   int64     `json:"users"`
	Chats   int64     `json:"chats"`
	Tags    int64     `json:"tags"`
	Objects int       `json:"objects"`
}

// PurgeService wipes everything owned by non-admin users once per interval. The
// watermark row decides which instance runs; the running flag keeps one run per process.
type PurgeService struct {
	purge    repository.PurgeRepository
	storage  storage.ObjectStorage
	flags    *featureflags.Manager
	interval time.Duration
	now      func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewPurgeService(db *gorm.DB, store storage.ObjectStorage, flags *featureflags.Manager, interval time.Duration) *PurgeService {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	return &PurgeService{
		purge:    repository.NewPurgeRepository(db),
		storage:  store,
		flags:    flags,
		interval: interval,
		now:      time.Now,
	}
}

// Interval is the minimum time between purges.
func (s *PurgeService) Interval() time.Duration {
	return s.interval
}

// Trigger starts RunIfDue in the background unless a run is already in flight in this
// process. It never blocks and never reports errors to the caller.
func (s *PurgeService) Trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				observability.PurgeRuns.WithLabelValues("error").Inc()
				middleware.Logger.ErrorContext(bg, "Purge panicked", slog.Any("panic", r))
			}
		}()
		if _, err := s.runIfDue(bg); err != nil {
			middleware.Logger.ErrorContext(bg, "Purge failed", slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until background runs started by Trigger have returned.
func (s *PurgeService) Wait() {
	s.wg.Wait()
}

// RunIfDue purges when the interval has elapsed since the watermark and this caller wins
// the claim. It returns nil when nothing ran.
func (s *PurgeService) RunIfDue(ctx context.Context) (*PurgeReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer s.running.Store(false)
	return s.runIfDue(ctx)
}

func (s *PurgeService) runIfDue(ctx context.Context) (*PurgeReport, error) {
	if !s.flags.Enabled(featureflags.Purge, 0) {
		observability.PurgeRuns.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	now := s.now().UTC()
	wm, err := s.purge.EnsureWatermark(ctx, now)
	if err != nil {
		observability.PurgeRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if now.Sub(wm.LastPurgedAt) < s.interval {
		return nil, nil
	}

	claimed, err := s.purge.Claim(ctx, wm.Version, now)
	if err != nil {
		observability.PurgeRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if !claimed {
		observability.PurgeRuns.WithLabelValues("lost_claim").Inc()
		return nil, nil
	}
	return s.execute(ctx, now)
}

// Force purges now regardless of the interval and the feature flag, and restarts the interval.
func (s *PurgeService) Force(ctx context.Context) (*PurgeReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, models.NewValidationError("A purge is already running")
	}
	defer s.running.Store(false)

	now := s.now().UTC()
	wm, err := s.purge.EnsureWatermark(ctx, now)
	if err != nil {
		return nil, err
	}
	claimed, err := s.purge.Claim(ctx, wm.Version, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		observability.PurgeRuns.WithLabelValues("lost_claim").Inc()
		return nil, models.NewValidationError("A purge is already running")
	}
	return s.execute(ctx, now)
}

func (s *PurgeService) execute(ctx context.Context, now time.Time) (report *PurgeReport, err error) {
	span, ctx := observability.NewSpan(ctx, "purge.execute")
	defer func() { span.End(err) }()
	defer func() {
		observability.PurgeRuns.WithLabelValues(observability.Outcome(err)).Inc()
	}()

	result, err := s.purge.PurgeNonAdmins(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range result.Paths {
		removeObject(ctx, s.storage, p)
	}

	observability.PurgedRows.WithLabelValues("users").Add(float64(result.Users))
	observability.PurgedRows.WithLabelValues("chats").Add(float64(result.Chats))
	observability.PurgedRows.WithLabelValues("tags").Add(float64(result.Tags))
	span.AddAttributes(
		attribute.Int64("purge.users", result.Users),
		attribute.Int("purge.objects", len(result.Paths)),
	)
	cache.InvalidateAll(ctx)

	report = &PurgeReport{
		RanAt:   now,
		Users:   result.Users,
		Chats:   result.Chats,
		Tags:    result.Tags,
		Objects: len(result.Paths),
	}
	middleware.Logger.InfoContext(ctx, "Purge completed",
		slog.Int64("users", report.Users),
		slog.Int64("chats", report.Chats),
		slog.Int64("tags", report.Tags),
		slog.Int("objects", report.Objects),
	)
	return report, nil
}

// Schedule returns the last purge time and when the next one becomes due. Both are nil
// before the watermark exists.
func (s *PurgeService) Schedule(ctx context.Context) (last, next *time.Time, err error) {
	wm, err := s.purge.Watermark(ctx)
	if err != nil || wm == nil {
		return nil, nil, err
	}
	l := wm.LastPurgedAt.UTC()
	n := l.Add(s.interval)
	return &l, &n, nil
}
