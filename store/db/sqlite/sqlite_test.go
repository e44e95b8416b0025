package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentrouter/internal/profile"
	"github.com/hrygo/agentrouter/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	driver, err := NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "router.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver.(*DB)
}

func int32Ptr(v int32) *int32       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestNewDB_RequiresDSN(t *testing.T) {
	_, err := NewDB(&profile.Profile{})
	require.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := db.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.Migrate(ctx))

	var n int
	require.NoError(t, db.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migration").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestInteraction_UpsertLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &store.Interaction{
		MessageHash:       "h1",
		Message:           "где общежитие",
		SelectedAgent:     "uniroom",
		UserRating:        int32Ptr(5),
		ResponseRelevance: float64Ptr(0.9),
		Timestamp:         100,
		UserID:            "u1",
		SessionID:         "s1",
	}
	require.NoError(t, db.UpsertInteraction(ctx, first))

	second := &store.Interaction{
		MessageHash:   "h1",
		Message:       "где общежитие",
		SelectedAgent: "uninav",
		UserRating:    int32Ptr(1),
		Timestamp:     200,
		UserID:        "u2",
		SessionID:     "s2",
	}
	require.NoError(t, db.UpsertInteraction(ctx, second))

	got, err := db.GetInteraction(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "uninav", got.SelectedAgent)
	require.NotNil(t, got.UserRating)
	assert.Equal(t, int32(1), *got.UserRating)
	assert.Nil(t, got.ResponseRelevance)
	assert.Equal(t, int64(200), got.Timestamp)
	assert.Equal(t, "u2", got.UserID)

	count, err := db.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	missing, err := db.GetInteraction(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInteraction_Aggregates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rows := []*store.Interaction{
		{MessageHash: "a", Message: "a", SelectedAgent: "kadrai", UserRating: int32Ptr(5), UserID: "u1", Timestamp: 1},
		{MessageHash: "b", Message: "b", SelectedAgent: "kadrai", UserRating: int32Ptr(3), UserID: "u1", Timestamp: 2},
		{MessageHash: "c", Message: "c", SelectedAgent: "uniroom", UserRating: int32Ptr(4), UserID: "u1", Timestamp: 3},
		{MessageHash: "d", Message: "d", SelectedAgent: "uniroom", ResponseRelevance: float64Ptr(0.5), UserID: "u2", Timestamp: 4},
		{MessageHash: "e", Message: "e", SelectedAgent: "uninav", UserID: "u2", Timestamp: 5},
	}
	for _, r := range rows {
		require.NoError(t, db.UpsertInteraction(ctx, r))
	}

	stats, err := db.ListInteractionAgentStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "kadrai", stats[0].AgentName)
	assert.Equal(t, int64(2), stats[0].Interactions)
	require.NotNil(t, stats[0].AvgRating)
	assert.InDelta(t, 4.0, *stats[0].AvgRating, 1e-9)
	assert.Nil(t, stats[0].AvgRelevance)
	assert.Equal(t, "uniroom", stats[1].AgentName)
	assert.Equal(t, int64(2), stats[1].Interactions)

	counts, err := db.ListUserAgentCounts(ctx, &store.FindUserAgentCounts{UserID: "u1", MinRating: 4})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "kadrai", counts[0].AgentName)
	assert.Equal(t, int64(1), counts[0].Count)

	userID := "u2"
	list, err := db.ListInteractions(ctx, &store.FindInteraction{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e", list[0].MessageHash)

	require.NoError(t, db.DeleteAllInteractions(ctx))
	count, err := db.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAgentPerformance_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	perf := &store.AgentPerformance{
		AgentName:        "career_navigator",
		MessagePattern:   "найти работу",
		SuccessRate:      0.9,
		AvgRating:        1.0,
		InteractionCount: 1,
		LastUpdated:      10,
	}
	require.NoError(t, db.UpsertAgentPerformance(ctx, perf))

	perf.InteractionCount = 6
	perf.AvgRating = 0.92
	perf.LastUpdated = 20
	require.NoError(t, db.UpsertAgentPerformance(ctx, perf))
	require.NoError(t, db.UpsertAgentPerformance(ctx, &store.AgentPerformance{
		AgentName: "uniroom", MessagePattern: "общежитие", SuccessRate: 0.5, AvgRating: 0.5, InteractionCount: 2, LastUpdated: 30,
	}))

	got, err := db.GetAgentPerformance(ctx, "career_navigator", "найти работу")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int32(6), got.InteractionCount)
	assert.InDelta(t, 0.92, got.AvgRating, 1e-9)

	mature, err := db.ListAgentPerformance(ctx, &store.FindAgentPerformance{MinInteractionCount: 5})
	require.NoError(t, err)
	require.Len(t, mature, 1)
	assert.Equal(t, "career_navigator", mature[0].AgentName)

	all, err := db.ListAgentPerformance(ctx, &store.FindAgentPerformance{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := db.ListAgentPatternStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "career_navigator", stats[0].AgentName)
	assert.Equal(t, int64(1), stats[0].PatternCount)
	assert.Equal(t, int64(6), stats[0].TotalInteractions)
	assert.Equal(t, int64(20), stats[0].LastUpdated)

	require.NoError(t, db.DeleteAllAgentPerformance(ctx))
	missing, err := db.GetAgentPerformance(ctx, "career_navigator", "найти работу")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
