package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/pkg/batch"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
	"github.com/CyberwizD/sensor-notifier/pkg/retry"
)

// ErrCleanupRunning is returned when another cleanup run holds the guard.
var ErrCleanupRunning = errors.New("cleanup: a run is already in progress")

const cleanupLockKey = "cleanup:inactive-accounts"

// UserDirectory lists accounts page by page and deletes them by id.
type UserDirectory interface {
	ListUsers(ctx context.Context, pageSize int, pageToken string) (models.UserPage, error)
	DeleteUser(ctx context.Context, id string) error
}

// RunLock is a cross-process mutual exclusion for scheduled runs.
type RunLock interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// CleanupConfig tunes the inactive account cleanup.
type CleanupConfig struct {
	PageSize      int
	InactiveAfter time.Duration
	Concurrency   int
	DeleteRPS     int
	LockTTL       time.Duration
	Retry         retry.Config
}

// CleanupReport summarises one cleanup run.
type CleanupReport struct {
	RunID      string
	Scanned    int
	Candidates int
	Deleted    int
	Failed     int
}

// CleanupJob deletes accounts whose last activity is older than the
// configured threshold.
type CleanupJob struct {
	dir     UserDirectory
	lock    RunLock
	limiter *rate.Limiter
	cfg     CleanupConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	running atomic.Bool
	now     func() time.Time
}

// NewCleanupJob builds the job. lock may be nil, in which case only the
// in-process guard applies.
func NewCleanupJob(dir UserDirectory, lock RunLock, cfg CleanupConfig, metrics *metrics.Metrics, logger *slog.Logger) *CleanupJob {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.InactiveAfter <= 0 {
		cfg.InactiveAfter = 72 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}
	var limiter *rate.Limiter
	if cfg.DeleteRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DeleteRPS), cfg.DeleteRPS)
	}
	return &CleanupJob{
		dir:     dir,
		lock:    lock,
		limiter: limiter,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// IsInactive reports whether lastSeen is older than threshold at now.
func IsInactive(lastSeen, now time.Time, threshold time.Duration) bool {
	return lastSeen.Before(now.Add(-threshold))
}

// Run performs one cleanup pass. Listing failures abort the run; a failed
// deletion only affects its own account.
func (j *CleanupJob) Run(ctx context.Context) (CleanupReport, error) {
	report := CleanupReport{RunID: uuid.NewString()}
	log := j.logger.With(slog.String("run_id", report.RunID))

	if !j.running.CompareAndSwap(false, true) {
		return report, ErrCleanupRunning
	}
	defer j.running.Store(false)

	if j.lock != nil {
		ok, err := j.lock.AcquireLock(ctx, cleanupLockKey, report.RunID, j.cfg.LockTTL)
		if err != nil {
			return report, fmt.Errorf("cleanup: acquire lock: %w", err)
		}
		if !ok {
			return report, ErrCleanupRunning
		}
		defer func() {
			if err := j.lock.ReleaseLock(context.WithoutCancel(ctx), cleanupLockKey, report.RunID); err != nil {
				log.Warn("failed to release cleanup lock", slog.Any("error", err))
			}
		}()
	}

	started := j.now()
	candidates, scanned, err := j.collect(ctx, started)
	report.Scanned = scanned
	report.Candidates = len(candidates)
	if err != nil {
		j.metrics.IncCycleFailed(string(models.TriggerScheduledTick))
		return report, err
	}

	results := batch.Values(ctx, candidates, j.cfg.Concurrency, func(ctx context.Context, c models.CleanupCandidate) (struct{}, error) {
		if j.limiter != nil {
			// Queued deletes still run after cancellation; only pacing applies.
			if err := j.limiter.Wait(context.WithoutCancel(ctx)); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, j.dir.DeleteUser(ctx, c.UserID)
	})

	for _, res := range results {
		if res.Failed() {
			report.Failed++
			j.metrics.IncAccountDeleteFailed()
			log.Error("failed to delete inactive account", slog.String("user_id", res.Item.UserID), slog.Any("error", res.Err))
			continue
		}
		report.Deleted++
		j.metrics.IncAccountDeleted()
	}

	log.Info("cleanup finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("candidates", report.Candidates),
		slog.Int("deleted", report.Deleted),
		slog.Int("failed", report.Failed),
		slog.Duration("took", j.now().Sub(started)))
	return report, nil
}

func (j *CleanupJob) collect(ctx context.Context, now time.Time) ([]models.CleanupCandidate, int, error) {
	var (
		candidates []models.CleanupCandidate
		scanned    int
		pageToken  string
	)

	for {
		var page models.UserPage
		err := retry.Do(ctx, j.cfg.Retry, func(ctx context.Context) error {
			var err error
			page, err = j.dir.ListUsers(ctx, j.cfg.PageSize, pageToken)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return retry.Permanent(err)
			}
			return err
		}, retry.WithLogger(j.logger, "list users page"))
		if err != nil {
			return nil, scanned, fmt.Errorf("cleanup: list users: %w", err)
		}

		scanned += len(page.Users)
		for _, u := range page.Users {
			if IsInactive(u.LastSeenAt, now, j.cfg.InactiveAfter) {
				candidates = append(candidates, models.CleanupCandidate{UserID: u.ID, LastSeenAt: u.LastSeenAt})
			}
		}

		if page.NextPageToken == "" {
			return candidates, scanned, nil
		}
		pageToken = page.NextPageToken
	}
}
