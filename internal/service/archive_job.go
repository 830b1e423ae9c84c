// Package service holds the marketplace's background jobs that sit outside
// the listing engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const archiveLockKey = "archive:audit"

// ArchiveJob periodically moves audit history older than the retention
// window to object storage. With a LockManager only one replica archives at
// a time; the others skip the round.
type ArchiveJob struct {
	archiver  domain.Archiver
	locks     domain.LockManager
	alert     domain.Alerter
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewArchiveJob creates an ArchiveJob. locks and alert may be nil.
func NewArchiveJob(
	archiver domain.Archiver,
	locks domain.LockManager,
	alert domain.Alerter,
	interval, retention time.Duration,
	logger *slog.Logger,
) *ArchiveJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &ArchiveJob{
		archiver:  archiver,
		locks:     locks,
		alert:     alert,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archive_job")),
	}
}

// Run archives once at start and then every interval until ctx is done.
func (j *ArchiveJob) Run(ctx context.Context) error {
	j.logger.InfoContext(ctx, "archive job starting",
		slog.Duration("interval", j.interval),
		slog.Duration("retention", j.retention),
	)
	j.tick(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *ArchiveJob) tick(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
		j.logger.ErrorContext(ctx, "archive round failed", slog.String("error", err.Error()))
		if j.alert != nil {
			_ = j.alert.Notify(ctx, "archive.failed", "Audit archive failed", err.Error())
		}
	}
}

// RunOnce archives everything older than now minus the retention window.
func (j *ArchiveJob) RunOnce(ctx context.Context) (int64, error) {
	if j.locks != nil {
		unlock, err := j.locks.Acquire(ctx, archiveLockKey, j.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				j.logger.DebugContext(ctx, "archive lock held elsewhere, skipping round")
			}
			return 0, err
		}
		defer unlock()
	}

	cutoff := j.now().UTC().Add(-j.retention).Truncate(time.Hour)
	n, err := j.archiver.ArchiveSettlements(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("service: archive before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "archive round complete",
			slog.Int64("archived", n),
			slog.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
