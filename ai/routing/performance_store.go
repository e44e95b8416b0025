package routing

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hrygo/agentrouter/store"
)

// PatternPerformance is the cached mirror of one agent_performance row.
// Values are immutable once published; updates swap in a new pointer.
type PatternPerformance struct {
	Agent            string    `json:"agent"`
	Pattern          string    `json:"pattern"`
	SuccessRate      float64   `json:"success_rate"`
	AvgRating        float64   `json:"avg_rating"`
	InteractionCount int       `json:"interaction_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

func performanceKey(agent, pattern string) string {
	return agent + ":" + pattern
}

// lockStripes bounds the per-key write locks. Keys that share a stripe serialise.
const lockStripes = 64

// PerformanceStore keeps every (agent, pattern) row in memory and writes through to storage.
// Only rows with at least maturity interactions take part in scoring.
type PerformanceStore struct {
	storage      LearningStorage
	learningRate float64
	maturity     int
	now          func() time.Time

	mu            sync.RWMutex
	cache         map[string]*PatternPerformance
	agentPatterns map[string][]string

	keyLocks  [lockStripes]sync.Mutex
	loadGroup singleflight.Group
}

// NewPerformanceStore creates an empty store. Call Load to hydrate it from storage.
func NewPerformanceStore(storage LearningStorage, learningRate float64, maturity int) *PerformanceStore {
	return &PerformanceStore{
		storage:       storage,
		learningRate:  learningRate,
		maturity:      maturity,
		now:           time.Now,
		cache:         make(map[string]*PatternPerformance),
		agentPatterns: make(map[string][]string),
	}
}

// Load replaces the cache with every row in storage. Concurrent calls share one read.
func (s *PerformanceStore) Load(ctx context.Context) (int, error) {
	v, err, _ := s.loadGroup.Do("load", func() (any, error) {
		rows, err := s.storage.ListAgentPerformance(ctx, &store.FindAgentPerformance{})
		if err != nil {
			return 0, err
		}

		cache := make(map[string]*PatternPerformance, len(rows))
		agentPatterns := make(map[string][]string)
		for _, row := range rows {
			perf := fromStoreRow(row)
			key := performanceKey(perf.Agent, perf.Pattern)
			if _, dup := cache[key]; !dup {
				agentPatterns[perf.Agent] = append(agentPatterns[perf.Agent], perf.Pattern)
			}
			cache[key] = perf
		}

		s.mu.Lock()
		s.cache = cache
		s.agentPatterns = agentPatterns
		s.mu.Unlock()

		slog.Info("loaded performance records", "records", len(cache), "mature", s.MatureLen())
		return len(cache), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Update applies one observation to the (agent, pattern) row with an exponential moving average.
// A rating (1-5) moves AvgRating toward rating/5; a relevance (0-1) moves SuccessRate toward it.
// New rows start at the observed values, or 0.5 when absent. The row is persisted before
// the cache is updated; on a storage error the cache is left unchanged.
func (s *PerformanceStore) Update(ctx context.Context, agent, pattern string, rating *int32, relevance *float64) (*PatternPerformance, error) {
	return s.apply(ctx, agent, pattern, rating, relevance, 0)
}

// Warm applies a curated warm-up observation. It behaves like Update but raises the
// interaction count to at least the maturity threshold, so the row is scored at once.
func (s *PerformanceStore) Warm(ctx context.Context, agent, pattern string, rating *int32, relevance *float64) (*PatternPerformance, error) {
	return s.apply(ctx, agent, pattern, rating, relevance, s.maturity)
}

func (s *PerformanceStore) apply(ctx context.Context, agent, pattern string, rating *int32, relevance *float64, minCount int) (*PatternPerformance, error) {
	key := performanceKey(agent, pattern)
	unlock := s.lockKey(key)
	defer unlock()

	current, err := s.lookup(ctx, agent, pattern)
	if err != nil {
		return nil, err
	}

	next := &PatternPerformance{
		Agent:       agent,
		Pattern:     pattern,
		LastUpdated: s.now(),
	}
	if current == nil {
		next.SuccessRate = 0.5
		if relevance != nil {
			next.SuccessRate = clamp01(*relevance)
		}
		next.AvgRating = 0.5
		if rating != nil {
			next.AvgRating = clamp01(float64(*rating) / 5.0)
		}
		next.InteractionCount = 1
	} else {
		alpha := s.learningRate
		next.SuccessRate = current.SuccessRate
		if relevance != nil {
			next.SuccessRate = current.SuccessRate*(1-alpha) + clamp01(*relevance)*alpha
		}
		next.AvgRating = current.AvgRating
		if rating != nil {
			next.AvgRating = current.AvgRating*(1-alpha) + clamp01(float64(*rating)/5.0)*alpha
		}
		next.InteractionCount = current.InteractionCount + 1
	}
	if next.InteractionCount < minCount {
		next.InteractionCount = minCount
	}

	if err := s.storage.UpsertAgentPerformance(ctx, toStoreRow(next)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.cache[key]; !exists {
		s.agentPatterns[agent] = append(s.agentPatterns[agent], pattern)
	}
	s.cache[key] = next
	s.mu.Unlock()

	copied := *next
	return &copied, nil
}

// lookup reads the cached row, falling back to storage for rows written elsewhere.
func (s *PerformanceStore) lookup(ctx context.Context, agent, pattern string) (*PatternPerformance, error) {
	s.mu.RLock()
	cached := s.cache[performanceKey(agent, pattern)]
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	row, err := s.storage.GetAgentPerformance(ctx, agent, pattern)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return fromStoreRow(row), nil
}

func (s *PerformanceStore) lockKey(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.keyLocks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// MatureByAgent returns the mature rows of every agent, agents sorted by id.
// Rows keep their insertion order.
func (s *PerformanceStore) MatureByAgent() ([]string, map[string][]*PatternPerformance) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]string, 0, len(s.agentPatterns))
	byAgent := make(map[string][]*PatternPerformance, len(s.agentPatterns))
	for agent, patterns := range s.agentPatterns {
		var rows []*PatternPerformance
		for _, pattern := range patterns {
			perf := s.cache[performanceKey(agent, pattern)]
			if perf != nil && perf.InteractionCount >= s.maturity {
				rows = append(rows, perf)
			}
		}
		if len(rows) > 0 {
			agents = append(agents, agent)
			byAgent[agent] = rows
		}
	}
	sort.Strings(agents)
	return agents, byAgent
}

// Get returns a copy of the cached row.
func (s *PerformanceStore) Get(agent, pattern string) (PatternPerformance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perf, ok := s.cache[performanceKey(agent, pattern)]
	if !ok {
		return PatternPerformance{}, false
	}
	return *perf, true
}

// Len returns the number of cached rows.
func (s *PerformanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// MatureLen returns the number of cached rows that participate in scoring.
func (s *PerformanceStore) MatureLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, perf := range s.cache {
		if perf.InteractionCount >= s.maturity {
			n++
		}
	}
	return n
}

// Clear drops every cached row. Storage is untouched.
func (s *PerformanceStore) Clear() {
	s.mu.Lock()
	s.cache = make(map[string]*PatternPerformance)
	s.agentPatterns = make(map[string][]string)
	s.mu.Unlock()
}

func fromStoreRow(row *store.AgentPerformance) *PatternPerformance {
	return &PatternPerformance{
		Agent:            row.AgentName,
		Pattern:          row.MessagePattern,
		SuccessRate:      row.SuccessRate,
		AvgRating:        row.AvgRating,
		InteractionCount: int(row.InteractionCount),
		LastUpdated:      time.Unix(row.LastUpdated, 0),
	}
}

func toStoreRow(perf *PatternPerformance) *store.AgentPerformance {
	return &store.AgentPerformance{
		AgentName:        perf.Agent,
		MessagePattern:   perf.Pattern,
		SuccessRate:      perf.SuccessRate,
		AvgRating:        perf.AvgRating,
		InteractionCount: int32(perf.InteractionCount),
		LastUpdated:      perf.LastUpdated.Unix(),
	}
}
