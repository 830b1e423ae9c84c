package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

type fakeArchiver struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakeArchiver) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 3, f.err
}

type fakeLocks struct {
	held bool
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.held = true
	return func() { f.held = false }, nil
}

type fakeAlerter struct {
	events []string
}

func (f *fakeAlerter) Notify(ctx context.Context, event, title, message string) error {
	f.events = append(f.events, event)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestArchiveJobCutoff(t *testing.T) {
	arch := &fakeArchiver{}
	j := NewArchiveJob(arch, nil, nil, time.Hour, 48*time.Hour, discard())
	j.now = func() time.Time { return time.Date(2026, 4, 10, 15, 42, 0, 0, time.UTC) }

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, arch.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 4, 8, 15, 0, 0, 0, time.UTC), arch.cutoffs[0])
}

func TestArchiveJobSkipsWhenLocked(t *testing.T) {
	arch := &fakeArchiver{}
	locks := &fakeLocks{held: true}
	alerts := &fakeAlerter{}
	j := NewArchiveJob(arch, locks, alerts, time.Hour, time.Hour, discard())

	_, err := j.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	j.tick(context.Background())

	assert.Empty(t, arch.cutoffs)
	assert.Empty(t, alerts.events, "a held lock is not a failure")
}

func TestArchiveJobReleasesLockAndAlertsOnFailure(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("bucket gone")}
	locks := &fakeLocks{}
	alerts := &fakeAlerter{}
	j := NewArchiveJob(arch, locks, alerts, time.Hour, time.Hour, discard())

	j.tick(context.Background())

	assert.False(t, locks.held)
	assert.Equal(t, []string{"archive.failed"}, alerts.events)
}

func TestArchiveJobRunStopsOnCancel(t *testing.T) {
	arch := &fakeArchiver{}
	j := NewArchiveJob(arch, nil, nil, time.Hour, time.Hour, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	assert.Eventually(t, func() bool {
		arch.mu.Lock()
		defer arch.mu.Unlock()
		return len(arch.cutoffs) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
