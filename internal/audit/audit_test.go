package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer log.Close()

	details := map[string]any{"count": 2, "results": []string{"a", "b"}}
	require.NoError(t, log.Record(ctx, "end_all_sessions", "admin_1", details))
	require.NoError(t, log.Record(ctx, "end_all_sessions", "admin_2", nil))

	entries, err := log.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	require.Equal(t, "admin_2", entries[0].PerformedBy)
	require.Equal(t, "admin_1", entries[1].PerformedBy)
	require.Equal(t, "end_all_sessions", entries[0].Action)
	require.JSONEq(t, `{"count":2,"results":["a","b"]}`, entries[1].Details)
	require.False(t, entries[0].CreatedAt.IsZero())
}

func TestListRespectsLimit(t *testing.T) {
	ctx := context.Background()
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(ctx, "end_all_sessions", "admin", nil))
	}

	entries, err := log.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	log, err := NewSQLiteLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Record(ctx, "end_all_sessions", "admin", nil))
	require.NoError(t, log.Close())

	reopened, err := NewSQLiteLog(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
