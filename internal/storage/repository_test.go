package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopdong/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
}

func TestLoginHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordLogin(ctx, LoginEvent{Username: "admin", Outcome: "rejected", ClientIP: "10.0.0.1", At: base}))
	require.NoError(t, repo.RecordLogin(ctx, LoginEvent{Username: "admin", Outcome: "authenticated", ClientIP: "10.0.0.1", UserAgent: "curl", At: base.Add(time.Minute)}))

	events, err := repo.RecentLogins(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "authenticated", events[0].Outcome)
	assert.Equal(t, "curl", events[0].UserAgent)
	assert.True(t, events[0].At.Equal(base.Add(time.Minute)))

	events, err = repo.RecentLogins(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestLoginHistoryRejectsUnknownOutcome(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.RecordLogin(context.Background(), LoginEvent{Username: "admin", Outcome: "pending"})
	assert.Error(t, err)
}

func TestSnapshotLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	firstID, err := repo.SaveSnapshot(ctx, []core.Row{{"contract_id": "1", "settled_value": 10.5}})
	require.NoError(t, err)
	secondID, err := repo.SaveSnapshot(ctx, []core.Row{{"contract_id": "1"}, {"contract_id": "2"}})
	require.NoError(t, err)

	pending, err := repo.PendingSnapshotIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{secondID, firstID}, pending)

	first, err := repo.GetSnapshot(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, SnapshotPending, first.Status)
	require.Len(t, first.Rows, 1)
	assert.Equal(t, 10.5, core.AmountFromValue(first.Rows[0]["settled_value"]))

	latest, err := repo.IsLatest(ctx, first)
	require.NoError(t, err)
	assert.False(t, latest)

	second, err := repo.GetSnapshot(ctx, secondID)
	require.NoError(t, err)
	latest, err = repo.IsLatest(ctx, second)
	require.NoError(t, err)
	assert.True(t, latest)

	require.NoError(t, repo.MarkSynced(ctx, second))

	first, err = repo.GetSnapshot(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, SnapshotSuperseded, first.Status)
	second, err = repo.GetSnapshot(ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, SnapshotSynced, second.Status)
	assert.Equal(t, 1, second.Attempts)

	pending, err = repo.PendingSnapshotIDs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSnapshotAttemptFailed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.SaveSnapshot(ctx, nil)
	require.NoError(t, err)

	status, err := repo.MarkAttemptFailed(ctx, id, errors.New("remote down"), 2)
	require.NoError(t, err)
	assert.Equal(t, SnapshotPending, status)

	status, err = repo.MarkAttemptFailed(ctx, id, errors.New("remote down"), 2)
	require.NoError(t, err)
	assert.Equal(t, SnapshotFailed, status)

	s, err := repo.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Attempts)
	assert.Equal(t, "remote down", s.LastError)
	assert.Empty(t, s.Rows)
}

func TestMarkSuperseded(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.SaveSnapshot(ctx, nil)
	require.NoError(t, err)
	s, err := repo.GetSnapshot(ctx, id)
	require.NoError(t, err)

	require.NoError(t, repo.MarkSuperseded(ctx, s))
	s, err = repo.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, SnapshotSuperseded, s.Status)
}

func TestGetSnapshotNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestLatestUnsyncedRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LatestUnsyncedRows(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty outbox")

	_, err = repo.SaveSnapshot(ctx, []core.Row{{"contract_id": "1"}})
	require.NoError(t, err)
	secondID, err := repo.SaveSnapshot(ctx, []core.Row{{"contract_id": "1"}, {"contract_id": "2"}})
	require.NoError(t, err)

	rows, ok, err := repo.LatestUnsyncedRows(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rows, 2, "newest snapshot wins")

	_, err = repo.MarkAttemptFailed(ctx, secondID, errors.New("remote down"), 1)
	require.NoError(t, err)
	rows, ok, err = repo.LatestUnsyncedRows(ctx)
	require.NoError(t, err)
	require.True(t, ok, "a failed push leaves the remote behind")
	assert.Len(t, rows, 2)

	second, err := repo.GetSnapshot(ctx, secondID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSynced(ctx, second))
	_, ok, err = repo.LatestUnsyncedRows(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
