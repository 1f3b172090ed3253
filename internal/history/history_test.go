package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kassabot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "kassabot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleCycle(started time.Time, success bool) *models.ExportCycle {
	return &models.ExportCycle{
		Date:       started.Truncate(24 * time.Hour),
		StartedAt:  started,
		FinishedAt: started.Add(40 * time.Second),
		Success:    success,
		Categories: []models.CategoryResult{
			{Category: models.CategorySales, Rows: 12},
			{Category: models.CategoryReturns, Rows: 2},
		},
	}
}

func TestSaveCycleAssignsID(t *testing.T) {
	store := newTestStore(t)
	cycle := sampleCycle(time.Now(), true)

	require.NoError(t, store.SaveCycle(context.Background(), cycle))
	assert.Positive(t, cycle.ID)
}

func TestRecentCyclesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		cycle := sampleCycle(started.AddDate(0, 0, i), i != 1)
		require.NoError(t, store.SaveCycle(ctx, cycle))
	}

	cycles, err := store.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cycles, 2)

	// newest first
	assert.True(t, cycles[0].StartedAt.After(cycles[1].StartedAt))
	assert.True(t, cycles[0].Success)
	assert.False(t, cycles[1].Success)

	require.Len(t, cycles[0].Categories, 2)
	assert.Equal(t, models.CategorySales, cycles[0].Categories[0].Category)
	assert.Equal(t, 12, cycles[0].Categories[0].Rows)
	assert.Equal(t, 14, cycles[0].TotalRows())
}

func TestRecentCyclesEmpty(t *testing.T) {
	store := newTestStore(t)

	cycles, err := store.RecentCycles(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestRecentCyclesDefaultLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		require.NoError(t, store.SaveCycle(ctx, sampleCycle(started.AddDate(0, 0, i), true)))
	}

	cycles, err := store.RecentCycles(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, cycles, 10)
}
