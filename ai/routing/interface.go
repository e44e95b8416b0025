package routing

import (
	"context"
	"time"
)

// ============================================================================
// ISP: Segregated interfaces for different consumer needs
// ============================================================================

// AgentRouter selects an agent for a message.
type AgentRouter interface {
	// Route runs the decision pipeline. It always returns a decision.
	Route(ctx context.Context, message, userID, language string) *Decision
}

// InteractionRecorder closes the learning loop with observed outcomes.
type InteractionRecorder interface {
	// RecordInteraction stores the interaction and updates pattern statistics.
	// Returns false when the interaction was rejected or could not be persisted.
	RecordInteraction(ctx context.Context, in Interaction) bool
}

// FeedbackLearner feeds normalised ratings to the classifier.
type FeedbackLearner interface {
	LearnFromFeedback(message, agent string, rating float64, language string) bool
}

// StatisticsProvider exposes the learning state.
type StatisticsProvider interface {
	GetLearningStatistics(ctx context.Context) (*LearningStatistics, error)
}

// EngineService is the aggregate of all routing capabilities.
// Prefer the narrower interfaces above where possible.
type EngineService interface {
	AgentRouter
	InteractionRecorder
	FeedbackLearner
	StatisticsProvider
	Reset(ctx context.Context) error
}

// Observer receives routing events, typically for metrics.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	ObserveDecision(method, agent string, confidence float64, latency time.Duration)
	ObserveAbstention(stage, reason string)
	ObserveFeedback(kind, status string)
	ObservePatterns(cached, mature int)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, string, float64, time.Duration) {}
func (nopObserver) ObserveAbstention(string, string)                        {}
func (nopObserver) ObserveFeedback(string, string)                          {}
func (nopObserver) ObservePatterns(int, int)                                {}

var (
	_ EngineService       = (*Engine)(nil)
	_ InteractionRecorder = (*SelfLearningRouter)(nil)
	_ FeedbackLearner     = (*FeatureClassifier)(nil)
	_ Recommender         = (*HistoryRecommender)(nil)
	_ Agent               = (*KeywordAgent)(nil)
)
