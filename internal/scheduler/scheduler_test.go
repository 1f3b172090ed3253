package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"kassabot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls int64
}

func (r *countingRunner) RunCycle(ctx context.Context, date time.Time) (*models.ExportCycle, error) {
	atomic.AddInt64(&r.calls, 1)
	return &models.ExportCycle{Date: date, Success: true}, nil
}

func (r *countingRunner) count() int64 {
	return atomic.LoadInt64(&r.calls)
}

func newTestScheduler(t *testing.T) (*Scheduler, *countingRunner) {
	t.Helper()
	runner := &countingRunner{}
	store := NewStore(filepath.Join(t.TempDir(), "schedule_time.txt"))
	sched, err := New(store, runner, nil)
	require.NoError(t, err)
	return sched, runner
}

func TestValidTime(t *testing.T) {
	valid := []string{"00:00", "09:05", "23:59", "12:30"}
	for _, v := range valid {
		assert.True(t, ValidTime(v), v)
	}

	invalid := []string{"25:99", "9:5", "", "noon", "24:00", "12:60", "1230", "12:30:00", " 12:30"}
	for _, v := range invalid {
		assert.False(t, ValidTime(v), v)
	}
}

func TestReconfigurePersists(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule_time.txt"))
	sched, err := New(store, &countingRunner{}, nil)
	require.NoError(t, err)

	require.NoError(t, sched.Reconfigure("07:45"))
	assert.Equal(t, "07:45", sched.Current())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "07:45", persisted)
}

func TestReconfigureRejectsMalformedTime(t *testing.T) {
	sched, _ := newTestScheduler(t)
	before := sched.Current()

	for _, raw := range []string{"25:99", "9:5", "", "noon"} {
		err := sched.Reconfigure(raw)
		assert.ErrorIs(t, err, ErrInvalidTime, raw)
		assert.Equal(t, before, sched.Current(), "state unchanged after %q", raw)
	}
}

func TestTickFiresOncePerMatchingMinute(t *testing.T) {
	sched, runner := newTestScheduler(t)
	require.NoError(t, sched.Reconfigure("23:00"))

	ctx := context.Background()
	at := time.Date(2026, 8, 31, 23, 0, 0, 0, time.Local)

	assert.True(t, sched.tick(ctx, at))
	// repeated ticks within the same minute do not re-trigger
	assert.False(t, sched.tick(ctx, at.Add(30*time.Second)))
	assert.False(t, sched.tick(ctx, at.Add(59*time.Second)))

	// the next minute does not match the schedule at all
	assert.False(t, sched.tick(ctx, at.Add(time.Minute)))

	// the same minute on the following day fires again
	assert.True(t, sched.tick(ctx, at.AddDate(0, 0, 1)))

	assert.Eventually(t, func() bool { return runner.count() == 2 },
		time.Second, 10*time.Millisecond)
}

func TestTickIgnoresNonMatchingMinute(t *testing.T) {
	sched, runner := newTestScheduler(t)
	require.NoError(t, sched.Reconfigure("23:00"))

	ctx := context.Background()
	assert.False(t, sched.tick(ctx, time.Date(2026, 8, 31, 22, 59, 59, 0, time.Local)))
	assert.False(t, sched.tick(ctx, time.Date(2026, 8, 31, 23, 1, 0, 0, time.Local)))

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, runner.count())
}
