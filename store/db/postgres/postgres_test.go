package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentrouter/internal/profile"
	"github.com/hrygo/agentrouter/store"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

// Integration tests run only when AGENTROUTER_TEST_POSTGRES_DSN points at a disposable database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("AGENTROUTER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AGENTROUTER_TEST_POSTGRES_DSN not set")
	}
	driver, err := NewDB(&profile.Profile{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	ctx := context.Background()
	require.NoError(t, driver.Migrate(ctx))
	require.NoError(t, driver.DeleteAllInteractions(ctx))
	require.NoError(t, driver.DeleteAllAgentPerformance(ctx))
	return driver.(*DB)
}

func TestInteraction_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rating := int32(4)
	require.NoError(t, db.UpsertInteraction(ctx, &store.Interaction{
		MessageHash: "h", Message: "где общежитие", SelectedAgent: "uniroom",
		UserRating: &rating, Timestamp: 1, UserID: "u", SessionID: "s",
	}))
	require.NoError(t, db.UpsertInteraction(ctx, &store.Interaction{
		MessageHash: "h", Message: "где общежитие", SelectedAgent: "uninav",
		Timestamp: 2, UserID: "u", SessionID: "s",
	}))

	got, err := db.GetInteraction(ctx, "h")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "uninav", got.SelectedAgent)
	assert.Nil(t, got.UserRating)

	count, err := db.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAgentPerformance_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertAgentPerformance(ctx, &store.AgentPerformance{
		AgentName: "kadrai", MessagePattern: "отпуск заявление", SuccessRate: 0.9,
		AvgRating: 1, InteractionCount: 5, LastUpdated: 1,
	}))

	list, err := db.ListAgentPerformance(ctx, &store.FindAgentPerformance{MinInteractionCount: 5})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kadrai", list[0].AgentName)

	stats, err := db.ListAgentPatternStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(5), stats[0].TotalInteractions)
}
