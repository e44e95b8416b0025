package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Engine is the cascading decision pipeline: self-learning router, then the feature
// classifier with personalization, then per-agent keyword heuristics.
type Engine struct {
	cfg         Config
	profile     *RoutingProfile
	router      *SelfLearningRouter
	classifier  *FeatureClassifier
	registry    *Registry
	recommender Recommender
	observer    Observer
}

// Option customises an Engine.
type Option func(*Engine)

// WithRegistry replaces the registry built from the profile.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithRecommender replaces the interaction-history recommender. Nil disables personalization.
func WithRecommender(r Recommender) Option {
	return func(e *Engine) { e.recommender = r }
}

// WithObserver installs an event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine builds the pipeline over storage and loads the performance cache.
func NewEngine(ctx context.Context, storage LearningStorage, profile *RoutingProfile, cfg Config, opts ...Option) (*Engine, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:         cfg,
		profile:     profile,
		router:      NewSelfLearningRouter(storage, profile, cfg),
		classifier:  NewFeatureClassifier(profile, cfg),
		registry:    NewRegistryFromProfile(profile),
		recommender: NewHistoryRecommender(storage),
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.router.Init(ctx); err != nil {
		return nil, fmt.Errorf("init self-learning router: %w", err)
	}
	e.observePatterns()
	return e, nil
}

// Route selects an agent for message. Failures inside the learned stages are
// abstentions; the keyword stage or a NoAgent decision always concludes.
// Route never writes to storage. Outcomes are learned after the response through
// RecordInteraction or the FeedbackCollector.
func (e *Engine) Route(ctx context.Context, message, userID, language string) *Decision {
	start := time.Now()
	d := &Decision{}

	if !e.routeSelfLearning(d, message, userID) &&
		!e.routeClassifier(ctx, d, message, userID, language) &&
		!e.routeTraditional(d, message, language) {
		d.Kind = NoAgent
		d.Method = MethodNone
		d.Confidence = noAgentConfidence
		d.Message = NoAgentMessage
	}

	d.Latency = time.Since(start)
	e.observer.ObserveDecision(d.Method, d.AgentID, d.Confidence, d.Latency)
	slog.Debug("message routed",
		"user_id", userID,
		"message", truncate(message, 50),
		"agent", d.AgentID,
		"method", d.Method,
		"confidence", d.Confidence,
		"abstentions", len(d.Abstentions),
		"latency_ms", d.Latency.Milliseconds())
	return d
}

func (e *Engine) abstain(d *Decision, stage, reason string) {
	d.abstain(stage, reason)
	e.observer.ObserveAbstention(stage, reason)
}

// guard converts a panic in fn into an abstention.
func (e *Engine) guard(d *Decision, stage string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("routing stage panicked", "stage", stage, "panic", r)
			e.abstain(d, stage, "panic")
			ok = false
		}
	}()
	return fn()
}

func (e *Engine) routeSelfLearning(d *Decision, message, userID string) bool {
	return e.guard(d, StageSelfLearning, func() bool {
		p := e.router.PredictBestAgent(message, userID)
		d.Prediction = p
		if p.Confidence < e.cfg.MLThreshold {
			e.abstain(d, StageSelfLearning, "below_threshold")
			return false
		}
		if !e.registry.Has(p.Agent) {
			e.abstain(d, StageSelfLearning, "unregistered_agent")
			return false
		}

		d.Kind = MLHit
		d.Method = MethodMLSelfLearning
		d.AgentID = p.Agent
		d.Confidence = p.Confidence
		return true
	})
}

func (e *Engine) routeClassifier(ctx context.Context, d *Decision, message, userID, language string) bool {
	return e.guard(d, StageClassifier, func() bool {
		scores := e.classifier.ClassifyIntent(message, language)
		if len(scores) == 0 {
			e.abstain(d, StageClassifier, "empty_message")
			return false
		}

		ids := e.classifier.AgentIDs()
		if rec := e.recommend(ctx, userID, message, ids); rec != nil {
			if s, ok := scores[rec.Agent]; ok {
				scores[rec.Agent] = math.Min(1, s+rec.Confidence*e.cfg.RecommendationWeight)
				d.Recommendation = rec
			}
		}
		d.ClassifierScores = scores

		best, bestScore := "", -1.0
		for _, id := range ids {
			if s := scores[id]; s > bestScore {
				best, bestScore = id, s
			}
		}
		if bestScore <= e.cfg.ClassifierMinConfidence {
			e.abstain(d, StageClassifier, "below_threshold")
			return false
		}
		if !e.registry.Has(best) {
			e.abstain(d, StageClassifier, "unregistered_agent")
			return false
		}

		d.Kind = ClassifierHit
		d.Method = MethodML
		d.AgentID = best
		d.Confidence = bestScore
		return true
	})
}

// recommend asks the recommender for a hint. Errors and panics yield no hint.
func (e *Engine) recommend(ctx context.Context, userID, message string, candidates []string) (rec *Recommendation) {
	if e.recommender == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("recommender panicked", "panic", r)
			rec = nil
		}
	}()
	rec, err := e.recommender.Recommend(ctx, userID, message, candidates)
	if err != nil {
		slog.Warn("recommendation failed", "user_id", userID, "error", err)
		return nil
	}
	return rec
}

func (e *Engine) routeTraditional(d *Decision, message, language string) bool {
	agents := e.registry.List()
	if len(agents) == 0 {
		e.abstain(d, StageTraditional, "empty_registry")
		return false
	}

	scores := make(map[string]float64, len(agents))
	var best Agent
	bestScore := 0.0
	for _, a := range agents {
		s := a.CanHandle(message, language)
		scores[a.ID()] = s
		if s > bestScore {
			best, bestScore = a, s
		}
	}
	d.AgentScores = scores
	if best == nil {
		e.abstain(d, StageTraditional, "no_agent_can_handle")
		return false
	}

	d.Kind = FallbackHit
	d.Method = MethodTraditional
	d.AgentID = best.ID()
	d.Confidence = bestScore
	return true
}

// RecordInteraction feeds an observed outcome to the self-learning router.
func (e *Engine) RecordInteraction(ctx context.Context, in Interaction) bool {
	ok := e.router.RecordInteraction(ctx, in)
	if ok {
		e.observePatterns()
	}
	return ok
}

// LearnFromFeedback feeds a normalised rating in [0,1] to the classifier.
func (e *Engine) LearnFromFeedback(message, agent string, rating float64, language string) bool {
	return e.classifier.LearnFromFeedback(message, agent, rating, language)
}

// GetLearningStatistics combines router and classifier learning state.
func (e *Engine) GetLearningStatistics(ctx context.Context) (*LearningStatistics, error) {
	stats, err := e.router.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	stats.Classifier = e.classifier.LearningStats()
	return stats, nil
}

// Explain returns the classifier's feature breakdown for message.
func (e *Engine) Explain(message, language string) *ClassificationExplanation {
	return e.classifier.Explain(message, language)
}

// PredictBestAgent exposes the self-learning stage alone.
func (e *Engine) PredictBestAgent(message, userID string) *Prediction {
	return e.router.PredictBestAgent(message, userID)
}

// Seed records the profile's training set and returns how many patterns were stored.
func (e *Engine) Seed(ctx context.Context) int {
	n := e.router.Train(ctx, e.profile.Seed, SeedUser, seedSession)
	e.observePatterns()
	slog.Info("seeded training patterns", "recorded", n, "total", len(e.profile.Seed))
	return n
}

// Probes returns the profile's probe messages.
func (e *Engine) Probes() []string {
	return append([]string(nil), e.profile.Probes...)
}

// Registry returns the agent registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Reset deletes all learned state and re-runs auto-initialization when enabled.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.router.Reset(ctx); err != nil {
		return err
	}
	e.classifier.Reset()
	e.observePatterns()
	slog.Info("routing engine reset")
	return nil
}

func (e *Engine) observePatterns() {
	cached, mature := e.router.PatternCounts()
	e.observer.ObservePatterns(cached, mature)
}
