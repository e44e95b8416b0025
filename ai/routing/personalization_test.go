package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentrouter/store"
)

func recordRated(t *testing.T, s LearningStorage, userID, agent string, rating int32, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := rating
		require.NoError(t, s.UpsertInteraction(context.Background(), &store.Interaction{
			MessageHash:   MessageHash(fmt.Sprintf("%s-%s-%d-%d", userID, agent, rating, i)),
			Message:       "message",
			SelectedAgent: agent,
			UserRating:    &r,
			UserID:        userID,
		}))
	}
}

func TestHistoryRecommender(t *testing.T) {
	storage := NewInMemoryStorage()
	recordRated(t, storage, "u1", "career_navigator", 5, 3)
	recordRated(t, storage, "u1", "uninav", 4, 1)
	recordRated(t, storage, "u1", "kadrai", 2, 4)
	recordRated(t, storage, "u2", "uniroom", 5, 2)

	all := testProfile(t).AgentIDs()
	tests := []struct {
		name       string
		userID     string
		candidates []string
		wantAgent  string
		wantConf   float64
	}{
		{"most frequent well-rated agent", "u1", all, "career_navigator", 0.75},
		{"restricted candidates", "u1", []string{"uninav", "kadrai"}, "uninav", 0.25},
		{"too little history", "u2", all, "", 0},
		{"anonymous", "", all, "", 0},
		{"unknown user", "u3", all, "", 0},
	}

	h := NewHistoryRecommender(storage)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := h.Recommend(context.Background(), tt.userID, "работа", tt.candidates)
			require.NoError(t, err)
			if tt.wantAgent == "" {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantAgent, rec.Agent)
			assert.InDelta(t, tt.wantConf, rec.Confidence, 1e-9)
		})
	}
}
