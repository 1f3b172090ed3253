package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycleWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	client := fullClient()
	sink := &fakeSink{}
	retry := RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}
	exporter := NewExporter(client, sink, nil, nil, nil, retry, dir, nil)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, cycle.Success)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "export_"))
	assert.Equal(t, ".xlsx", filepath.Ext(entries[0].Name()))
}

func TestSnapshotFailureDoesNotFailCycle(t *testing.T) {
	// point the snapshot at a path that cannot be a directory
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	client := fullClient()
	sink := &fakeSink{}
	retry := RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}
	exporter := NewExporter(client, sink, nil, nil, nil, retry, filepath.Join(blocker, "sub"), nil)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, cycle.Success, "snapshot problems are logged, not cycle-fatal")
}
