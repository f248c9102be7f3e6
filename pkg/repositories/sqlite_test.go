package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteRepository(context.Background(), path, "migrations")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, repo.Close(context.Background()))
	})
	return repo
}

func TestSessionStateRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	record := NewSessionRecord("session-1")
	record.Timestamp = 123456
	record.SlotFills[5] = 2
	record.SlotSolvers[5] = []string{"alice", "bob"}
	record.SlotFills[7] = 1
	record.SlotSolvers[7] = []string{"carol"}
	record.Scores["home"] = 3
	record.Scores["away"] = 1
	record.Roster["alice"] = 4

	require.NoError(t, repo.SaveSessionState(ctx, record))

	loaded, err := repo.LoadSessionState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, record.Timestamp, loaded.Timestamp)
	assert.Equal(t, record.SlotFills, loaded.SlotFills)
	assert.Equal(t, record.SlotSolvers, loaded.SlotSolvers)
	assert.Equal(t, record.Scores, loaded.Scores)
	assert.Equal(t, record.Roster, loaded.Roster)
}

func TestSaveSessionStateOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	record := NewSessionRecord("session-1")
	record.SlotFills[5] = 1
	record.SlotSolvers[5] = []string{"alice"}
	require.NoError(t, repo.SaveSessionState(ctx, record))

	record.SlotFills[5] = 2
	record.SlotSolvers[5] = []string{"alice", "bob"}
	record.Timestamp = 999
	require.NoError(t, repo.SaveSessionState(ctx, record))

	loaded, err := repo.LoadSessionState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, int64(999), loaded.Timestamp)
	assert.Equal(t, 2, loaded.SlotFills[5])
	assert.Equal(t, []string{"alice", "bob"}, loaded.SlotSolvers[5])
}

func TestLoadMissingSessionReturnsNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.LoadSessionState(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRankings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.IncrementRanking(ctx, "alice", 1))
	require.NoError(t, repo.IncrementRanking(ctx, "alice", 1))
	require.NoError(t, repo.IncrementRanking(ctx, "bob", 1))
	require.NoError(t, repo.IncrementRanking(ctx, "carol", 5))

	entries, err := repo.TopRankings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, RankingEntry{Name: "carol", Goals: 5}, entries[0])
	assert.Equal(t, RankingEntry{Name: "alice", Goals: 2}, entries[1])
}
