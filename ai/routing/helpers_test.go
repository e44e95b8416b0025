package routing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentrouter/store"
)

func testProfile(t *testing.T) *RoutingProfile {
	t.Helper()
	p, err := DefaultRoutingProfile()
	require.NoError(t, err)
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoInit = false
	return cfg
}

// seedRow writes a performance row straight into storage.
func seedRow(t *testing.T, s LearningStorage, agent, pattern string, count int32, successRate, avgRating float64) {
	t.Helper()
	require.NoError(t, s.UpsertAgentPerformance(context.Background(), &store.AgentPerformance{
		AgentName:        agent,
		MessagePattern:   pattern,
		SuccessRate:      successRate,
		AvgRating:        avgRating,
		InteractionCount: count,
		LastUpdated:      time.Now().Unix(),
	}))
}

func ptrInt32(v int32) *int32       { return &v }
func ptrFloat64(v float64) *float64 { return &v }

var errStorage = errors.New("storage unavailable")

// failingStorage fails the selected writes.
type failingStorage struct {
	*InMemoryStorage
	failInteractions bool
	failPerformance  bool
}

func (s *failingStorage) UpsertInteraction(ctx context.Context, upsert *store.Interaction) error {
	if s.failInteractions {
		return errStorage
	}
	return s.InMemoryStorage.UpsertInteraction(ctx, upsert)
}

func (s *failingStorage) UpsertAgentPerformance(ctx context.Context, upsert *store.AgentPerformance) error {
	if s.failPerformance {
		return errStorage
	}
	return s.InMemoryStorage.UpsertAgentPerformance(ctx, upsert)
}

// countingStorage counts interaction and performance writes.
type countingStorage struct {
	*InMemoryStorage
	interactionWrites atomic.Int64
	performanceWrites atomic.Int64
}

func (s *countingStorage) UpsertInteraction(ctx context.Context, upsert *store.Interaction) error {
	s.interactionWrites.Add(1)
	return s.InMemoryStorage.UpsertInteraction(ctx, upsert)
}

func (s *countingStorage) UpsertAgentPerformance(ctx context.Context, upsert *store.AgentPerformance) error {
	s.performanceWrites.Add(1)
	return s.InMemoryStorage.UpsertAgentPerformance(ctx, upsert)
}

func (s *countingStorage) writes() int64 {
	return s.interactionWrites.Load() + s.performanceWrites.Load()
}

func (s *countingStorage) reset() {
	s.interactionWrites.Store(0)
	s.performanceWrites.Store(0)
}
