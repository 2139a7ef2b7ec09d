package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/pkg/retry"
)

var cleanupNow = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// fakeDirectory pages users by offset encoded in the page token.
type fakeDirectory struct {
	users      []models.User
	listErrs   []error
	deleteErrs map[string]error
	delay      time.Duration
	onDelete   func(id string)

	mu       sync.Mutex
	pages    int
	deleted  map[string]int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newFakeDirectory(users []models.User) *fakeDirectory {
	return &fakeDirectory{users: users, deleteErrs: map[string]error{}, deleted: map[string]int{}}
}

func (d *fakeDirectory) ListUsers(_ context.Context, pageSize int, pageToken string) (models.UserPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.listErrs) > 0 {
		err := d.listErrs[0]
		d.listErrs = d.listErrs[1:]
		if err != nil {
			return models.UserPage{}, err
		}
	}
	d.pages++

	offset := 0
	if pageToken != "" {
		offset, _ = strconv.Atoi(pageToken)
	}
	end := min(offset+pageSize, len(d.users))
	page := models.UserPage{Users: append([]models.User(nil), d.users[offset:end]...)}
	if end < len(d.users) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (d *fakeDirectory) DeleteUser(_ context.Context, id string) error {
	cur := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if cur <= p || d.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.onDelete != nil {
		d.onDelete(id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.deleteErrs[id]; err != nil {
		return err
	}
	d.deleted[id]++
	return nil
}

type fakeLock struct {
	held     bool
	err      error
	released []string
}

func (l *fakeLock) AcquireLock(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *fakeLock) ReleaseLock(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

func makeUsers(n int, lastSeen time.Time) []models.User {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, models.User{ID: fmt.Sprintf("u%05d", i), LastSeenAt: lastSeen})
	}
	return users
}

func newTestCleanup(dir *fakeDirectory, lock RunLock, concurrency int) *CleanupJob {
	job := NewCleanupJob(dir, lock, CleanupConfig{
		PageSize:      1000,
		InactiveAfter: 72 * time.Hour,
		Concurrency:   concurrency,
		Retry:         retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, nil, discardLogger())
	job.now = func() time.Time { return cleanupNow }
	return job
}

func TestCleanupDeletesAllInactiveWithBoundedConcurrency(t *testing.T) {
	dir := newFakeDirectory(makeUsers(3500, cleanupNow.Add(-96*time.Hour)))
	dir.delay = 100 * time.Microsecond
	job := newTestCleanup(dir, nil, 3)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, dir.pages)
	assert.Equal(t, 3500, report.Scanned)
	assert.Equal(t, 3500, report.Candidates)
	assert.Equal(t, 3500, report.Deleted)
	assert.Zero(t, report.Failed)
	assert.Len(t, dir.deleted, 3500)
	assert.LessOrEqual(t, dir.peak.Load(), int64(3))
}

func TestCleanupKeepsRecentUsers(t *testing.T) {
	users := []models.User{
		{ID: "stale", LastSeenAt: cleanupNow.Add(-73 * time.Hour)},
		{ID: "edge", LastSeenAt: cleanupNow.Add(-72 * time.Hour)},
		{ID: "fresh", LastSeenAt: cleanupNow.Add(-time.Hour)},
	}
	dir := newFakeDirectory(users)
	report, err := newTestCleanup(dir, nil, 3).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, map[string]int{"stale": 1}, dir.deleted)
}

func TestCleanupIsolatesDeleteFailures(t *testing.T) {
	dir := newFakeDirectory(makeUsers(10, cleanupNow.Add(-100*time.Hour)))
	dir.deleteErrs["u00004"] = errors.New("permission denied")

	report, err := newTestCleanup(dir, nil, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, report.Deleted)
	assert.Equal(t, 1, report.Failed)
}

func TestCleanupRetriesPageReads(t *testing.T) {
	dir := newFakeDirectory(makeUsers(5, cleanupNow.Add(-100*time.Hour)))
	dir.listErrs = []error{errors.New("deadline exceeded")}

	report, err := newTestCleanup(dir, nil, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Deleted)
}

func TestCleanupListFailureFailsRun(t *testing.T) {
	listErr := errors.New("directory unavailable")
	dir := newFakeDirectory(makeUsers(5, cleanupNow.Add(-100*time.Hour)))
	dir.listErrs = []error{listErr, listErr}

	_, err := newTestCleanup(dir, nil, 3).Run(context.Background())
	assert.ErrorIs(t, err, listErr)
	assert.Empty(t, dir.deleted)
}

func TestCleanupSkipsWhenLockHeld(t *testing.T) {
	dir := newFakeDirectory(makeUsers(5, cleanupNow.Add(-100*time.Hour)))
	lock := &fakeLock{held: true}

	_, err := newTestCleanup(dir, lock, 3).Run(context.Background())
	assert.ErrorIs(t, err, ErrCleanupRunning)
	assert.Empty(t, dir.deleted)
	assert.Empty(t, lock.released)
}

func TestCleanupReleasesLock(t *testing.T) {
	dir := newFakeDirectory(makeUsers(2, cleanupNow.Add(-100*time.Hour)))
	lock := &fakeLock{}

	_, err := newTestCleanup(dir, lock, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{cleanupLockKey}, lock.released)
}

func TestCleanupRejectsOverlappingRun(t *testing.T) {
	dir := newFakeDirectory(nil)
	job := newTestCleanup(dir, nil, 3)
	job.running.Store(true)

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, ErrCleanupRunning)
	assert.Zero(t, dir.pages)
}

func TestIsInactive(t *testing.T) {
	assert.True(t, IsInactive(cleanupNow.Add(-73*time.Hour), cleanupNow, 72*time.Hour))
	assert.False(t, IsInactive(cleanupNow.Add(-72*time.Hour), cleanupNow, 72*time.Hour))
	assert.False(t, IsInactive(cleanupNow, cleanupNow, 72*time.Hour))
}

func TestCleanupDrainsRateLimitedDeletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := newFakeDirectory(makeUsers(20, cleanupNow.Add(-100*time.Hour)))
	var once sync.Once
	dir.onDelete = func(string) { once.Do(cancel) }

	job := NewCleanupJob(dir, nil, CleanupConfig{
		PageSize:      1000,
		InactiveAfter: 72 * time.Hour,
		Concurrency:   1,
		DeleteRPS:     10000,
	}, nil, discardLogger())
	job.now = func() time.Time { return cleanupNow }

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Deleted)
	assert.Zero(t, report.Failed)
	assert.Len(t, dir.deleted, 20)
}

func TestCleanupDoesNotRetryCancelledPageRead(t *testing.T) {
	dir := newFakeDirectory(makeUsers(5, cleanupNow.Add(-100*time.Hour)))
	dir.listErrs = []error{context.DeadlineExceeded}

	_, err := newTestCleanup(dir, nil, 3).Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, dir.pages)
	assert.Empty(t, dir.deleted)
}
