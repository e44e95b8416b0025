package routing

import (
	"context"
	"fmt"
	"slices"

	"github.com/hrygo/agentrouter/store"
)

// Recommendation is a personalization hint: the agent a user tends to prefer.
type Recommendation struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Recommender suggests an agent for a user among candidates. A nil Recommendation means no opinion.
type Recommender interface {
	Recommend(ctx context.Context, userID, message string, candidates []string) (*Recommendation, error)
}

const (
	historyMinRating = 4
	historyMinTurns  = 3
)

// HistoryRecommender recommends the candidate a user has rated well most often.
type HistoryRecommender struct {
	storage LearningStorage
}

// NewHistoryRecommender creates a recommender over the interaction log.
func NewHistoryRecommender(storage LearningStorage) *HistoryRecommender {
	return &HistoryRecommender{storage: storage}
}

// Recommend needs at least three turns rated 4 or higher. Confidence is the
// recommended agent's share of those turns.
func (h *HistoryRecommender) Recommend(ctx context.Context, userID, _ string, candidates []string) (*Recommendation, error) {
	if userID == "" {
		return nil, nil
	}
	counts, err := h.storage.ListUserAgentCounts(ctx, &store.FindUserAgentCounts{
		UserID:    userID,
		MinRating: historyMinRating,
	})
	if err != nil {
		return nil, fmt.Errorf("list user agent counts: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}
	if total < historyMinTurns {
		return nil, nil
	}

	// counts are ordered by count desc, then agent name.
	for _, c := range counts {
		if slices.Contains(candidates, c.AgentName) {
			return &Recommendation{
				Agent:      c.AgentName,
				Confidence: float64(c.Count) / float64(total),
				Reason:     fmt.Sprintf("%d of %d well-rated turns", c.Count, total),
			}, nil
		}
	}
	return nil, nil
}
