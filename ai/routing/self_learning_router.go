package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
	"github.com/hrygo/agentrouter/store"
)

// Prediction methods reported in Prediction.Method.
const (
	PredictionMethodHistory = "ml_history"
	PredictionMethodRules   = "fallback_rules"
	PredictionMethodDefault = "default_fallback"
)

// Seed users.
const (
	AutoInitUser    = "auto_init"
	autoInitSession = "auto_init_session"
	SeedUser        = "system_init"
	seedSession     = "pattern_init"
)

// Interaction is one routed turn reported back for learning.
// Rating (1-5) and Relevance (0-1) are optional.
type Interaction struct {
	Message   string
	Agent     string
	UserID    string
	SessionID string
	Rating    *int32
	Relevance *float64
}

// PatternMatch is one scored pattern in a prediction explanation.
type PatternMatch struct {
	Pattern          string  `json:"pattern"`
	Similarity       float64 `json:"similarity"`
	SuccessRate      float64 `json:"performance"`
	AvgRating        float64 `json:"rating"`
	InteractionCount int     `json:"count"`
	Score            float64 `json:"score"`
}

// Prediction is the SelfLearningRouter's answer with its explanation.
type Prediction struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`

	AllScores           map[string]float64 `json:"all_scores,omitempty"`
	BestMatches         []PatternMatch     `json:"best_matches,omitempty"`
	Features            MessageFeatures    `json:"features"`
	ConfidenceThreshold float64            `json:"confidence_threshold"`

	FallbackUsed    bool     `json:"fallback_used,omitempty"`
	FallbackReason  string   `json:"fallback_reason,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MatchRatio      float64  `json:"match_ratio,omitempty"`
	BaseConfidence  float64  `json:"base_confidence,omitempty"`
}

// SelfLearningRouter predicts agents from the historical performance of similar message patterns.
type SelfLearningRouter struct {
	cfg       Config
	storage   LearningStorage
	perf      *PerformanceStore
	extractor *PatternExtractor

	rules             []FallbackRule
	defaultAgent      string
	defaultConfidence float64
	bootstrap         []SeedPattern

	now func() time.Time
}

// NewSelfLearningRouter creates a router over storage. Call Init before predicting.
func NewSelfLearningRouter(storage LearningStorage, profile *RoutingProfile, cfg Config) *SelfLearningRouter {
	cfg = cfg.withDefaults()
	return &SelfLearningRouter{
		cfg:               cfg,
		storage:           storage,
		perf:              NewPerformanceStore(storage, cfg.LearningRate, cfg.MaturityThreshold),
		extractor:         NewPatternExtractor(profile.StopWords),
		rules:             profile.FallbackRules,
		defaultAgent:      profile.DefaultAgent,
		defaultConfidence: profile.DefaultConfidence,
		bootstrap:         profile.Bootstrap,
		now:               time.Now,
	}
}

// Init loads every performance row and, when storage is empty and AutoInit is set,
// records the bootstrap patterns.
func (r *SelfLearningRouter) Init(ctx context.Context) error {
	n, err := r.perf.Load(ctx)
	if err != nil {
		return fmt.Errorf("load performance records: %w", err)
	}
	if n == 0 && r.cfg.AutoInit {
		r.AutoInitialize(ctx)
	}
	slog.Info("self-learning router initialized",
		"patterns", r.perf.Len(),
		"mature_patterns", r.perf.MatureLen())
	return nil
}

// AutoInitialize records the bootstrap patterns and returns how many were stored.
func (r *SelfLearningRouter) AutoInitialize(ctx context.Context) int {
	n := r.Train(ctx, r.bootstrap, AutoInitUser, autoInitSession)
	slog.Info("auto-initialized basic patterns", "recorded", n, "total", len(r.bootstrap))
	return n
}

// Train records each pattern as a rated interaction and returns how many succeeded.
// Trained rows start at the maturity threshold so they are scored immediately.
func (r *SelfLearningRouter) Train(ctx context.Context, patterns []SeedPattern, userID, sessionID string) int {
	ok := 0
	for _, p := range patterns {
		rating := p.Rating
		relevance := p.Relevance
		if r.record(ctx, Interaction{
			Message:   p.Message,
			Agent:     p.Agent,
			UserID:    userID,
			SessionID: sessionID,
			Rating:    &rating,
			Relevance: &relevance,
		}, true) {
			ok++
		}
	}
	return ok
}

// PredictBestAgent scores every agent by the similarity-weighted performance of its
// mature patterns. Scores below MinPatternConfidence, or no match at all, defer to the
// keyword fallback rules. It reads only the in-memory cache.
func (r *SelfLearningRouter) PredictBestAgent(message, userID string) *Prediction {
	features := ExtractFeatures(message)
	agents, byAgent := r.perf.MatureByAgent()

	scores := make(map[string]float64)
	matches := make(map[string][]PatternMatch)
	for _, agent := range agents {
		rows := byAgent[agent]
		var score float64
		var matched []PatternMatch
		for _, perf := range rows {
			sim := Similarity(message, perf.Pattern)
			if sim <= r.cfg.MinPatternSimilarity {
				continue
			}
			ps := sim * patternWeight(perf)
			score += ps
			matched = append(matched, PatternMatch{
				Pattern:          perf.Pattern,
				Similarity:       sim,
				SuccessRate:      perf.SuccessRate,
				AvgRating:        perf.AvgRating,
				InteractionCount: perf.InteractionCount,
				Score:            ps,
			})
		}
		if len(matched) > 0 {
			scores[agent] = score / float64(len(rows))
			matches[agent] = matched
		}
	}

	if len(scores) == 0 {
		p := r.fallbackPrediction(message)
		p.Features = features
		p.ConfidenceThreshold = r.cfg.MinPatternConfidence
		slog.Debug("no mature pattern matched",
			"user_id", userID,
			"message", truncate(message, 50),
			"agent", p.Agent,
			"method", p.Method)
		return p
	}

	// agents is sorted, so strict > keeps the lexicographically smallest on ties.
	var best string
	bestScore := -1.0
	for _, agent := range agents {
		if s, ok := scores[agent]; ok && s > bestScore {
			best, bestScore = agent, s
		}
	}

	p := &Prediction{
		Agent:               best,
		Confidence:          bestScore,
		Method:              PredictionMethodHistory,
		AllScores:           scores,
		BestMatches:         matches[best],
		Features:            features,
		ConfidenceThreshold: r.cfg.MinPatternConfidence,
	}

	if bestScore < r.cfg.MinPatternConfidence {
		fb := r.fallbackPrediction(message)
		p.Agent = fb.Agent
		p.Confidence = fb.Confidence
		p.Method = fb.Method
		p.MatchedKeywords = fb.MatchedKeywords
		p.MatchRatio = fb.MatchRatio
		p.BaseConfidence = fb.BaseConfidence
		p.FallbackUsed = true
		p.FallbackReason = fmt.Sprintf("ML confidence %.3f below threshold %g", bestScore, r.cfg.MinPatternConfidence)
	}

	slog.Debug("self-learning prediction",
		"user_id", userID,
		"message", truncate(message, 50),
		"agent", p.Agent,
		"confidence", p.Confidence,
		"method", p.Method,
		"fallback", p.FallbackUsed)
	return p
}

// patternWeight blends historical success, rating and experience. All inputs are in [0,1].
func patternWeight(perf *PatternPerformance) float64 {
	experience := float64(perf.InteractionCount) / 100.0
	if experience > 1 {
		experience = 1
	}
	return perf.SuccessRate*0.4 + perf.AvgRating*0.3 + experience*0.3
}

// fallbackPrediction applies the first fallback rule with a keyword hit, else the default agent.
func (r *SelfLearningRouter) fallbackPrediction(message string) *Prediction {
	folded := strutil.Fold(message)
	for _, rule := range r.rules {
		var hits []string
		for _, kw := range rule.Keywords {
			if strings.Contains(folded, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		ratio := float64(len(hits)) / float64(len(rule.Keywords))
		conf := rule.Confidence * ratio
		if conf > 0.9 {
			conf = 0.9
		}
		return &Prediction{
			Agent:           rule.Agent,
			Confidence:      conf,
			Method:          PredictionMethodRules,
			MatchedKeywords: hits,
			MatchRatio:      ratio,
			BaseConfidence:  rule.Confidence,
		}
	}
	return &Prediction{
		Agent:          r.defaultAgent,
		Confidence:     r.defaultConfidence,
		Method:         PredictionMethodDefault,
		FallbackReason: "No specific patterns matched",
	}
}

// RecordInteraction stores the interaction and folds it into the (agent, pattern) statistics.
// Invalid input and storage errors are logged and reported as false.
func (r *SelfLearningRouter) RecordInteraction(ctx context.Context, in Interaction) bool {
	return r.record(ctx, in, false)
}

func (r *SelfLearningRouter) record(ctx context.Context, in Interaction, warm bool) bool {
	if in.Agent == "" || strings.TrimSpace(in.Message) == "" {
		slog.Warn("rejected interaction without agent or message", "agent", in.Agent)
		return false
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		slog.Warn("rejected interaction with rating out of range", "agent", in.Agent, "rating", *in.Rating)
		return false
	}
	if in.Relevance != nil && (*in.Relevance < 0 || *in.Relevance > 1) {
		slog.Warn("rejected interaction with relevance out of range", "agent", in.Agent, "relevance", *in.Relevance)
		return false
	}

	if err := r.storage.UpsertInteraction(ctx, &store.Interaction{
		MessageHash:       MessageHash(in.Message),
		Message:           in.Message,
		SelectedAgent:     in.Agent,
		UserRating:        in.Rating,
		ResponseRelevance: in.Relevance,
		Timestamp:         r.now().Unix(),
		UserID:            in.UserID,
		SessionID:         in.SessionID,
	}); err != nil {
		slog.Warn("failed to record interaction", "agent", in.Agent, "error", err)
		return false
	}

	pattern := r.extractor.Extract(in.Message)
	update := r.perf.Update
	if warm {
		update = r.perf.Warm
	}
	perf, err := update(ctx, in.Agent, pattern, in.Rating, in.Relevance)
	if err != nil {
		slog.Warn("failed to update pattern performance", "agent", in.Agent, "pattern", pattern, "error", err)
		return false
	}

	slog.Debug("interaction recorded",
		"agent", in.Agent,
		"pattern", pattern,
		"success_rate", perf.SuccessRate,
		"avg_rating", perf.AvgRating,
		"count", perf.InteractionCount)
	return true
}

// AgentInteractionStats aggregates rated interactions of one agent.
type AgentInteractionStats struct {
	Interactions int64   `json:"interactions"`
	AvgRating    float64 `json:"avg_rating"`
	AvgRelevance float64 `json:"avg_relevance"`
}

// AgentModelStats summarises the performance rows of one agent.
type AgentModelStats struct {
	PatternCount      int64     `json:"pattern_count"`
	TotalInteractions int64     `json:"total_interactions"`
	LastUpdate        time.Time `json:"last_update"`
}

// LearningStatistics is the router's learning state.
type LearningStatistics struct {
	TotalInteractions   int64                            `json:"total_interactions"`
	AgentStatistics     map[string]AgentInteractionStats `json:"agent_statistics"`
	ModelUpdates        map[string]AgentModelStats       `json:"model_updates"`
	CachedPatterns      int                              `json:"cached_patterns"`
	MaturePatterns      int                              `json:"mature_patterns"`
	ConfidenceThreshold float64                          `json:"confidence_threshold"`
	LearningRate        float64                          `json:"learning_rate"`
	MaturityThreshold   int                              `json:"maturity_threshold"`
	Classifier          *ClassifierStats                 `json:"classifier,omitempty"`
}

// Statistics reads the aggregate learning state from storage and the cache.
func (r *SelfLearningRouter) Statistics(ctx context.Context) (*LearningStatistics, error) {
	total, err := r.storage.CountInteractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	agentRows, err := r.storage.ListInteractionAgentStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interaction stats: %w", err)
	}
	patternRows, err := r.storage.ListAgentPatternStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pattern stats: %w", err)
	}

	stats := &LearningStatistics{
		TotalInteractions:   total,
		AgentStatistics:     make(map[string]AgentInteractionStats, len(agentRows)),
		ModelUpdates:        make(map[string]AgentModelStats, len(patternRows)),
		CachedPatterns:      r.perf.Len(),
		MaturePatterns:      r.perf.MatureLen(),
		ConfidenceThreshold: r.cfg.MinPatternConfidence,
		LearningRate:        r.cfg.LearningRate,
		MaturityThreshold:   r.cfg.MaturityThreshold,
	}
	for _, row := range agentRows {
		s := AgentInteractionStats{Interactions: row.Interactions}
		if row.AvgRating != nil {
			s.AvgRating = *row.AvgRating
		}
		if row.AvgRelevance != nil {
			s.AvgRelevance = *row.AvgRelevance
		}
		stats.AgentStatistics[row.AgentName] = s
	}
	for _, row := range patternRows {
		stats.ModelUpdates[row.AgentName] = AgentModelStats{
			PatternCount:      row.PatternCount,
			TotalInteractions: row.TotalInteractions,
			LastUpdate:        time.Unix(row.LastUpdated, 0),
		}
	}
	return stats, nil
}

// Reset deletes all interactions and performance rows, clears the cache and
// re-runs auto-initialization when enabled.
func (r *SelfLearningRouter) Reset(ctx context.Context) error {
	if err := r.storage.Reset(ctx); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	r.perf.Clear()
	if r.cfg.AutoInit {
		r.AutoInitialize(ctx)
	}
	return nil
}

// PatternCounts returns the cached and mature pattern counts.
func (r *SelfLearningRouter) PatternCounts() (cached, mature int) {
	return r.perf.Len(), r.perf.MatureLen()
}
