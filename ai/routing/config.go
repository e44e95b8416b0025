package routing

import "time"

// Config contains the tunable constants of the routing engine.
type Config struct {
	// LearningRate is the EMA weight of a new observation.
	LearningRate float64
	// MaturityThreshold is the interaction count a pattern needs before it is scored.
	MaturityThreshold int
	// MinPatternSimilarity drops patterns whose similarity is at or below it.
	MinPatternSimilarity float64
	// MinPatternConfidence is the SelfLearningRouter score below which fallback rules decide.
	MinPatternConfidence float64

	// MLThreshold is the stage-1 confidence needed to accept the self-learning prediction.
	MLThreshold float64
	// ClassifierMinConfidence is the stage-2 confidence that must be exceeded.
	ClassifierMinConfidence float64
	// RecommendationWeight scales the personalization boost.
	RecommendationWeight float64

	// MaxLearnedExamples bounds the classifier examples kept per agent.
	MaxLearnedExamples int
	// LearnedExampleMinRating is the normalised rating needed to keep an example.
	LearnedExampleMinRating float64
	// ScoreCacheSize and ScoreCacheTTL bound classifier memoisation. Size 0 disables it.
	ScoreCacheSize int
	ScoreCacheTTL  time.Duration

	// AutoInit records the bootstrap patterns when storage holds no performance rows.
	AutoInit bool
}

// DefaultConfig returns a Config with the production constants.
func DefaultConfig() Config {
	return Config{
		LearningRate:            0.1,
		MaturityThreshold:       5,
		MinPatternSimilarity:    0.1,
		MinPatternConfidence:    0.3,
		MLThreshold:             0.6,
		ClassifierMinConfidence: 0.15,
		RecommendationWeight:    0.2,
		MaxLearnedExamples:      100,
		LearnedExampleMinRating: 0.8,
		ScoreCacheSize:          1024,
		ScoreCacheTTL:           10 * time.Minute,
		AutoInit:                true,
	}
}

// withDefaults fills zero fields from DefaultConfig. Booleans are taken as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.MaturityThreshold <= 0 {
		c.MaturityThreshold = d.MaturityThreshold
	}
	if c.MinPatternSimilarity <= 0 {
		c.MinPatternSimilarity = d.MinPatternSimilarity
	}
	if c.MinPatternConfidence <= 0 {
		c.MinPatternConfidence = d.MinPatternConfidence
	}
	if c.MLThreshold <= 0 {
		c.MLThreshold = d.MLThreshold
	}
	if c.ClassifierMinConfidence <= 0 {
		c.ClassifierMinConfidence = d.ClassifierMinConfidence
	}
	if c.RecommendationWeight <= 0 {
		c.RecommendationWeight = d.RecommendationWeight
	}
	if c.MaxLearnedExamples <= 0 {
		c.MaxLearnedExamples = d.MaxLearnedExamples
	}
	if c.LearnedExampleMinRating <= 0 {
		c.LearnedExampleMinRating = d.LearnedExampleMinRating
	}
	if c.ScoreCacheTTL <= 0 {
		c.ScoreCacheTTL = d.ScoreCacheTTL
	}
	return c
}
