package routing

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

// Feature weights of the classifier score.
const (
	weightKeywordExact = 0.35
	weightSemantic     = 0.25
	weightPatterns     = 0.20
	weightContext      = 0.15
	weightQuestion     = 0.05

	exclusionPenalty  = 0.5
	learnedBoost      = 1.1
	learnedMinConf    = 0.7
	learnedMinSim     = 0.6
	tieGap            = 0.05
	tieLeaderCap      = 0.6
	decisionFactorMin = 0.1
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// LearnedExample is a highly rated message remembered for an agent.
type LearnedExample struct {
	Message    string    `json:"message"`
	Agent      string    `json:"agent"`
	Confidence float64   `json:"confidence"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
	seq        uint64
}

type agentFeatures struct {
	id            string
	keywords      []string
	keywordTokens map[string]struct{}
	patterns      []*regexp.Regexp
	context       []string
	exclusions    []string
	questionBonus map[string]float64
}

type feedbackTally struct {
	count     int
	ratingSum float64
}

// FeatureClassifier scores every agent from keyword, regex, context and question-type
// features of a message, boosted by remembered high-confidence examples.
type FeatureClassifier struct {
	agents        []agentFeatures
	questionTypes []string
	questionWords map[string][]string
	maxExamples   int
	minRating     float64
	cache         *ScoreCache
	now           func() time.Time

	mu       sync.RWMutex
	learned  map[string][]LearnedExample
	feedback map[string]*feedbackTally
	seq      uint64
}

// NewFeatureClassifier builds a classifier from the profile tables. The profile must be valid.
func NewFeatureClassifier(profile *RoutingProfile, cfg Config) *FeatureClassifier {
	cfg = cfg.withDefaults()
	c := &FeatureClassifier{
		questionWords: make(map[string][]string, len(profile.QuestionWords)),
		maxExamples:   cfg.MaxLearnedExamples,
		minRating:     cfg.LearnedExampleMinRating,
		now:           time.Now,
		learned:       make(map[string][]LearnedExample),
		feedback:      make(map[string]*feedbackTally),
	}
	if cfg.ScoreCacheSize > 0 {
		c.cache = NewScoreCache(cfg.ScoreCacheSize, cfg.ScoreCacheTTL)
	}

	for q, words := range profile.QuestionWords {
		c.questionTypes = append(c.questionTypes, q)
		c.questionWords[q] = foldAll(words)
	}
	sort.Strings(c.questionTypes)

	for _, a := range profile.Agents {
		af := agentFeatures{
			id:            a.ID,
			keywords:      foldAll(a.Classifier.Keywords),
			keywordTokens: make(map[string]struct{}),
			context:       foldAll(a.Classifier.ContextIndicators),
			exclusions:    foldAll(a.Classifier.Exclusions),
			questionBonus: a.Classifier.QuestionBonus,
		}
		for _, kw := range af.keywords {
			for _, tok := range strings.Fields(kw) {
				af.keywordTokens[tok] = struct{}{}
			}
		}
		for _, p := range a.Classifier.Patterns {
			af.patterns = append(af.patterns, regexp.MustCompile(p))
		}
		c.agents = append(c.agents, af)
	}
	return c
}

func foldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strutil.Fold(w)
	}
	return out
}

// FeatureBreakdown is the raw feature values of one agent for one message.
type FeatureBreakdown struct {
	KeywordExact  float64 `json:"keyword_exact"`
	Semantic      float64 `json:"semantic"`
	Patterns      float64 `json:"patterns"`
	Context       float64 `json:"context"`
	QuestionBonus float64 `json:"question_bonus"`
}

func (f FeatureBreakdown) weighted() float64 {
	return f.KeywordExact*weightKeywordExact +
		f.Semantic*weightSemantic +
		f.Patterns*weightPatterns +
		f.Context*weightContext +
		f.QuestionBonus*weightQuestion
}

func (c *FeatureClassifier) features(folded string, words map[string]struct{}, questions map[string]bool, a *agentFeatures) FeatureBreakdown {
	var f FeatureBreakdown

	exact := float64(countContains(folded, a.keywords)) / float64(len(a.keywords))
	exact -= float64(countContains(folded, a.exclusions)) * exclusionPenalty
	f.KeywordExact = math.Max(0, exact)

	f.Semantic = jaccard(a.keywordTokens, words)

	hits := 0
	for _, re := range a.patterns {
		if re.MatchString(folded) {
			hits++
		}
	}
	f.Patterns = float64(hits) / float64(len(a.patterns))

	f.Context = float64(countContains(folded, a.context)) / float64(len(a.context))

	for q, w := range a.questionBonus {
		if questions[q] {
			f.QuestionBonus += w
		}
	}
	return f
}

// analyze returns the per-agent features and raw scores, in profile order.
func (c *FeatureClassifier) analyze(message string) ([]FeatureBreakdown, []float64) {
	folded := strutil.Fold(message)
	words := tokenSet(punctuation.ReplaceAllString(folded, " "))
	questions := make(map[string]bool, len(c.questionTypes))
	for _, q := range c.questionTypes {
		questions[q] = containsAny(folded, c.questionWords[q])
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	breakdowns := make([]FeatureBreakdown, len(c.agents))
	raw := make([]float64, len(c.agents))
	for i := range c.agents {
		a := &c.agents[i]
		breakdowns[i] = c.features(folded, words, questions, a)
		score := breakdowns[i].weighted()
		for _, ex := range c.learned[a.id] {
			if ex.Confidence > learnedMinConf && Similarity(message, ex.Message) > learnedMinSim {
				score *= learnedBoost
				break
			}
		}
		raw[i] = clamp01(score)
	}
	return breakdowns, raw
}

// ClassifyIntent returns a confidence per agent. Non-zero results sum to 1 after squaring
// and renormalising; a near tie doubles the leader (capped at 0.6) before renormalising again.
// An empty message yields an empty map.
func (c *FeatureClassifier) ClassifyIntent(message, language string) map[string]float64 {
	if strings.TrimSpace(message) == "" {
		return map[string]float64{}
	}
	if c.cache != nil {
		if scores, ok := c.cache.Get(message, language); ok {
			return scores
		}
	}

	_, raw := c.analyze(message)
	normalized := c.normalize(raw)

	scores := make(map[string]float64, len(c.agents))
	for i, a := range c.agents {
		scores[a.id] = normalized[i]
	}
	if c.cache != nil {
		c.cache.Set(message, language, scores)
	}
	return scores
}

func (c *FeatureClassifier) normalize(raw []float64) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)

	leader := argmax(out)
	if leader < 0 || out[leader] <= 0 {
		return out
	}

	var sum float64
	for i, v := range out {
		out[i] = v * v
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	if len(out) > 1 {
		sorted := make([]float64, len(out))
		copy(sorted, out)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		if sorted[0]-sorted[1] < tieGap {
			out[leader] = math.Min(tieLeaderCap, out[leader]*2)
			sum = 0
			for _, v := range out {
				sum += v
			}
			for i := range out {
				out[i] /= sum
			}
		}
	}
	return out
}

// argmax returns the first index holding the maximum, -1 for an empty slice.
func argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// GetBestAgent returns the top-scoring agent. ok is false when nothing scored or
// the best confidence is below minConfidence. Ties go to the agent listed first in the profile.
func (c *FeatureClassifier) GetBestAgent(message, language string, minConfidence float64) (string, float64, bool) {
	scores := c.ClassifyIntent(message, language)
	if len(scores) == 0 {
		return "", 0, false
	}
	best := ""
	bestScore := -1.0
	for _, a := range c.agents {
		if s := scores[a.id]; s > bestScore {
			best, bestScore = a.id, s
		}
	}
	if bestScore < minConfidence {
		return "", bestScore, false
	}
	return best, bestScore, true
}

// LearnFromFeedback records a normalised rating in [0,1] for agent. Ratings at or above the
// learning threshold keep the message as a LearnedExample; the per-agent list is trimmed to
// the highest-confidence, newest examples. Reports whether an example was kept.
func (c *FeatureClassifier) LearnFromFeedback(message, agent string, rating float64, language string) bool {
	rating = clamp01(rating)

	c.mu.Lock()
	tally := c.feedback[agent]
	if tally == nil {
		tally = &feedbackTally{}
		c.feedback[agent] = tally
	}
	tally.count++
	tally.ratingSum += rating

	learned := false
	if rating >= c.minRating && strings.TrimSpace(message) != "" {
		c.seq++
		examples := append(c.learned[agent], LearnedExample{
			Message:    message,
			Agent:      agent,
			Confidence: rating,
			Language:   language,
			CreatedAt:  c.now(),
			seq:        c.seq,
		})
		if len(examples) > c.maxExamples {
			sort.SliceStable(examples, func(i, j int) bool {
				if examples[i].Confidence != examples[j].Confidence {
					return examples[i].Confidence > examples[j].Confidence
				}
				return examples[i].seq > examples[j].seq
			})
			examples = examples[:c.maxExamples]
		}
		c.learned[agent] = examples
		learned = true
	}
	c.mu.Unlock()

	if learned && c.cache != nil {
		c.cache.Purge()
	}
	slog.Info("learned from feedback", "agent", agent, "rating", rating, "example_kept", learned)
	return learned
}

// LearnedExamples returns a copy of the examples kept for agent.
func (c *FeatureClassifier) LearnedExamples(agent string) []LearnedExample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]LearnedExample(nil), c.learned[agent]...)
}

// DecisionFactor names the strongest feature of an agent.
type DecisionFactor struct {
	Agent   string  `json:"agent"`
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// ClassificationExplanation breaks a classification down by feature.
type ClassificationExplanation struct {
	Message         string                      `json:"message"`
	AgentScores     map[string]float64          `json:"agent_scores"`
	FeatureAnalysis map[string]FeatureBreakdown `json:"feature_analysis"`
	DecisionFactors []DecisionFactor            `json:"decision_factors"`
}

// Explain reports the per-agent features of message and, for each agent, its strongest
// feature when that feature exceeds 0.1.
func (c *FeatureClassifier) Explain(message, language string) *ClassificationExplanation {
	exp := &ClassificationExplanation{
		Message:         message,
		AgentScores:     c.ClassifyIntent(message, language),
		FeatureAnalysis: make(map[string]FeatureBreakdown, len(c.agents)),
	}
	if strings.TrimSpace(message) == "" {
		return exp
	}

	breakdowns, _ := c.analyze(message)
	for i, a := range c.agents {
		f := breakdowns[i]
		exp.FeatureAnalysis[a.id] = f

		top := DecisionFactor{Agent: a.id}
		for _, cand := range []struct {
			name  string
			value float64
		}{
			{"keyword_exact", f.KeywordExact},
			{"semantic", f.Semantic},
			{"patterns", f.Patterns},
			{"context", f.Context},
		} {
			if cand.value > top.Score {
				top.Feature, top.Score = cand.name, cand.value
			}
		}
		if top.Score > decisionFactorMin {
			exp.DecisionFactors = append(exp.DecisionFactors, top)
		}
	}
	return exp
}

// ClassifierStats summarises received feedback and learned examples.
type ClassifierStats struct {
	TotalFeedback   int                `json:"total_feedback"`
	LearnedExamples int                `json:"learned_patterns"`
	AgentFeedback   map[string]int     `json:"agent_feedback"`
	AverageRatings  map[string]float64 `json:"average_ratings"`
	Cache           *CacheStats        `json:"cache,omitempty"`
}

// LearningStats returns feedback and example counts.
func (c *FeatureClassifier) LearningStats() *ClassifierStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &ClassifierStats{
		AgentFeedback:  make(map[string]int, len(c.feedback)),
		AverageRatings: make(map[string]float64, len(c.feedback)),
	}
	for agent, t := range c.feedback {
		stats.TotalFeedback += t.count
		stats.AgentFeedback[agent] = t.count
		if t.count > 0 {
			stats.AverageRatings[agent] = math.Round(t.ratingSum/float64(t.count)*1000) / 1000
		}
	}
	for _, examples := range c.learned {
		stats.LearnedExamples += len(examples)
	}
	if c.cache != nil {
		cs := c.cache.GetStats()
		stats.Cache = &cs
	}
	return stats
}

// Reset forgets all learned examples and feedback.
func (c *FeatureClassifier) Reset() {
	c.mu.Lock()
	c.learned = make(map[string][]LearnedExample)
	c.feedback = make(map[string]*feedbackTally)
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.Purge()
	}
}

// AgentIDs returns the classified agent ids in profile order.
func (c *FeatureClassifier) AgentIDs() []string {
	ids := make([]string, len(c.agents))
	for i, a := range c.agents {
		ids[i] = a.id
	}
	return ids
}
