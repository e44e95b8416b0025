package routing

import (
	"context"
	"sort"
	"sync"

	"github.com/hrygo/agentrouter/store"
)

// LearningStorage is the durable side of the self-learning router.
// *store.Store satisfies it; InMemoryStorage backs tests and ephemeral runs.
type LearningStorage interface {
	UpsertInteraction(ctx context.Context, upsert *store.Interaction) error
	CountInteractions(ctx context.Context) (int64, error)
	ListInteractionAgentStats(ctx context.Context) ([]*store.InteractionAgentStats, error)
	ListUserAgentCounts(ctx context.Context, find *store.FindUserAgentCounts) ([]*store.UserAgentCount, error)

	UpsertAgentPerformance(ctx context.Context, upsert *store.AgentPerformance) error
	GetAgentPerformance(ctx context.Context, agentName, messagePattern string) (*store.AgentPerformance, error)
	ListAgentPerformance(ctx context.Context, find *store.FindAgentPerformance) ([]*store.AgentPerformance, error)
	ListAgentPatternStats(ctx context.Context) ([]*store.AgentPatternStats, error)

	Reset(ctx context.Context) error
}

var _ LearningStorage = (*store.Store)(nil)
var _ LearningStorage = (*InMemoryStorage)(nil)

// InMemoryStorage implements LearningStorage in process memory.
type InMemoryStorage struct {
	mu           sync.RWMutex
	interactions map[string]store.Interaction
	performance  map[string]store.AgentPerformance
}

// NewInMemoryStorage creates an empty in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		interactions: make(map[string]store.Interaction),
		performance:  make(map[string]store.AgentPerformance),
	}
}

func (s *InMemoryStorage) UpsertInteraction(_ context.Context, upsert *store.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[upsert.MessageHash] = *upsert
	return nil
}

// GetInteraction returns a copy of the row keyed by messageHash, or nil.
func (s *InMemoryStorage) GetInteraction(_ context.Context, messageHash string) (*store.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.interactions[messageHash]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *InMemoryStorage) CountInteractions(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.interactions)), nil
}

func (s *InMemoryStorage) ListInteractionAgentStats(_ context.Context) ([]*store.InteractionAgentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		count                   int64
		ratingSum, relevanceSum float64
		ratingN, relevanceN     int
	}
	byAgent := make(map[string]*acc)
	for _, row := range s.interactions {
		if row.UserRating == nil && row.ResponseRelevance == nil {
			continue
		}
		a := byAgent[row.SelectedAgent]
		if a == nil {
			a = &acc{}
			byAgent[row.SelectedAgent] = a
		}
		a.count++
		if row.UserRating != nil {
			a.ratingSum += float64(*row.UserRating)
			a.ratingN++
		}
		if row.ResponseRelevance != nil {
			a.relevanceSum += *row.ResponseRelevance
			a.relevanceN++
		}
	}

	list := make([]*store.InteractionAgentStats, 0, len(byAgent))
	for agent, a := range byAgent {
		stats := &store.InteractionAgentStats{AgentName: agent, Interactions: a.count}
		if a.ratingN > 0 {
			avg := a.ratingSum / float64(a.ratingN)
			stats.AvgRating = &avg
		}
		if a.relevanceN > 0 {
			avg := a.relevanceSum / float64(a.relevanceN)
			stats.AvgRelevance = &avg
		}
		list = append(list, stats)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].AgentName < list[j].AgentName })
	return list, nil
}

func (s *InMemoryStorage) ListUserAgentCounts(_ context.Context, find *store.FindUserAgentCounts) ([]*store.UserAgentCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, row := range s.interactions {
		if row.UserID != find.UserID || row.UserRating == nil || *row.UserRating < find.MinRating {
			continue
		}
		counts[row.SelectedAgent]++
	}

	list := make([]*store.UserAgentCount, 0, len(counts))
	for agent, n := range counts {
		list = append(list, &store.UserAgentCount{AgentName: agent, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].AgentName < list[j].AgentName
	})
	return list, nil
}

func (s *InMemoryStorage) UpsertAgentPerformance(_ context.Context, upsert *store.AgentPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance[performanceKey(upsert.AgentName, upsert.MessagePattern)] = *upsert
	return nil
}

func (s *InMemoryStorage) GetAgentPerformance(_ context.Context, agentName, messagePattern string) (*store.AgentPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.performance[performanceKey(agentName, messagePattern)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *InMemoryStorage) ListAgentPerformance(_ context.Context, find *store.FindAgentPerformance) ([]*store.AgentPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*store.AgentPerformance, 0, len(s.performance))
	for _, row := range s.performance {
		if find.AgentName != nil && row.AgentName != *find.AgentName {
			continue
		}
		if row.InteractionCount < find.MinInteractionCount {
			continue
		}
		row := row
		list = append(list, &row)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AgentName != list[j].AgentName {
			return list[i].AgentName < list[j].AgentName
		}
		return list[i].MessagePattern < list[j].MessagePattern
	})
	return list, nil
}

func (s *InMemoryStorage) ListAgentPatternStats(_ context.Context) ([]*store.AgentPatternStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byAgent := make(map[string]*store.AgentPatternStats)
	for _, row := range s.performance {
		stats := byAgent[row.AgentName]
		if stats == nil {
			stats = &store.AgentPatternStats{AgentName: row.AgentName}
			byAgent[row.AgentName] = stats
		}
		stats.PatternCount++
		stats.TotalInteractions += int64(row.InteractionCount)
		if row.LastUpdated > stats.LastUpdated {
			stats.LastUpdated = row.LastUpdated
		}
	}

	list := make([]*store.AgentPatternStats, 0, len(byAgent))
	for _, stats := range byAgent {
		list = append(list, stats)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].AgentName < list[j].AgentName })
	return list, nil
}

func (s *InMemoryStorage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = make(map[string]store.Interaction)
	s.performance = make(map[string]store.AgentPerformance)
	return nil
}
