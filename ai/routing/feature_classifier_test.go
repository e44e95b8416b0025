package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T, mutate func(*Config)) *FeatureClassifier {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewFeatureClassifier(testProfile(t), cfg)
}

func TestClassifyIntentEmptyMessage(t *testing.T) {
	c := newTestClassifier(t, nil)
	assert.Empty(t, c.ClassifyIntent("", "ru"))
	assert.Empty(t, c.ClassifyIntent("   ", "ru"))

	_, _, ok := c.GetBestAgent("", "ru", 0.15)
	assert.False(t, ok)
}

func TestClassifyIntentAllZero(t *testing.T) {
	c := newTestClassifier(t, nil)
	scores := c.ClassifyIntent("hello world", "en")
	require.Len(t, scores, 5)
	for agent, s := range scores {
		assert.Zero(t, s, agent)
	}

	agent, conf, ok := c.GetBestAgent("hello world", "en", 0.15)
	assert.False(t, ok)
	assert.Empty(t, agent)
	assert.Zero(t, conf)
}

func TestClassifyIntentBestAgent(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"как найти работу", "career_navigator"},
		{"как заселиться в общежитие, у меня проблемы в комнате", "uniroom"},
		{"хочу оформить отпуск, я сотрудник кафедры", "kadrai"},
		{"какие документы нужны для поступления, я выпускник школы", "ai_abitur"},
		{"когда экзамен по расписанию занятий", "uninav"},
	}

	c := newTestClassifier(t, nil)
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			agent, conf, ok := c.GetBestAgent(tt.message, "ru", 0.15)
			require.True(t, ok)
			assert.Equal(t, tt.want, agent)
			assert.Greater(t, conf, 0.15)
		})
	}
}

func TestClassifyIntentSumsToOne(t *testing.T) {
	c := newTestClassifier(t, nil)
	for _, message := range []string{"как найти работу", "где общежитие", "расписание"} {
		var sum float64
		for _, s := range c.ClassifyIntent(message, "ru") {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			sum += s
		}
		assert.InDelta(t, 1.0, sum, 1e-9, message)
	}
}

func TestNormalize(t *testing.T) {
	c := newTestClassifier(t, nil)

	tests := []struct {
		name string
		raw  []float64
		want []float64
	}{
		{"all zero", []float64{0, 0, 0}, []float64{0, 0, 0}},
		{"clear leader", []float64{0.3, 0.1, 0}, []float64{0.9, 0.1, 0}},
		{"near tie doubles leader", []float64{0.5, 0.5}, []float64{0.6 / 1.1, 0.5 / 1.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.normalize(tt.raw)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestLearnFromFeedback(t *testing.T) {
	c := newTestClassifier(t, nil)

	assert.False(t, c.LearnFromFeedback("где общежитие", "uniroom", 0.6, "ru"))
	assert.True(t, c.LearnFromFeedback("где общежитие", "uniroom", 1.0, "ru"))

	stats := c.LearningStats()
	assert.Equal(t, 2, stats.TotalFeedback)
	assert.Equal(t, 1, stats.LearnedExamples)
	assert.Equal(t, 2, stats.AgentFeedback["uniroom"])
	assert.InDelta(t, 0.8, stats.AverageRatings["uniroom"], 1e-9)

	c.Reset()
	assert.Equal(t, 0, c.LearningStats().TotalFeedback)
}

func TestLearnedExamplesBounded(t *testing.T) {
	c := newTestClassifier(t, func(cfg *Config) { cfg.MaxLearnedExamples = 3 })

	for _, ex := range []struct {
		message string
		rating  float64
	}{
		{"первый", 0.8},
		{"второй", 0.9},
		{"третий", 1.0},
		{"четвертый", 0.9},
		{"пятый", 0.8},
	} {
		c.LearnFromFeedback(ex.message, "uninav", ex.rating, "ru")
	}

	examples := c.LearnedExamples("uninav")
	require.Len(t, examples, 3)
	assert.Equal(t, "третий", examples[0].Message)
	assert.Equal(t, "четвертый", examples[1].Message)
	assert.Equal(t, "второй", examples[2].Message)
}

func TestLearnedExampleBoost(t *testing.T) {
	c := newTestClassifier(t, nil)
	message := "как найти работу"
	careerIdx := 3

	_, before := c.analyze(message)
	c.LearnFromFeedback(message, "career_navigator", 1.0, "ru")
	_, after := c.analyze(message)

	assert.InDelta(t, before[careerIdx]*1.1, after[careerIdx], 1e-9)
	for i := range before {
		if i != careerIdx {
			assert.Equal(t, before[i], after[i])
		}
	}
}

func TestScoreCachePurgedOnLearning(t *testing.T) {
	c := newTestClassifier(t, nil)
	require.NotNil(t, c.cache)

	first := c.ClassifyIntent("как найти работу", "ru")
	second := c.ClassifyIntent("Как найти работу", "ru")
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, c.cache.GetStats().Hits)
	assert.Equal(t, 1, c.cache.GetStats().Size)

	c.LearnFromFeedback("как найти работу", "career_navigator", 1.0, "ru")
	assert.Equal(t, 0, c.cache.GetStats().Size)
}

func TestExplain(t *testing.T) {
	c := newTestClassifier(t, nil)
	exp := c.Explain("как найти работу", "ru")

	assert.Len(t, exp.FeatureAnalysis, 5)
	career := exp.FeatureAnalysis["career_navigator"]
	assert.InDelta(t, 1.0/9.0, career.Patterns, 1e-9)
	assert.InDelta(t, 3.0/29.0, career.Semantic, 1e-9)
	assert.Zero(t, exp.FeatureAnalysis["uninav"].KeywordExact)

	require.Len(t, exp.DecisionFactors, 1)
	assert.Equal(t, DecisionFactor{Agent: "career_navigator", Feature: "patterns", Score: 1.0 / 9.0}, exp.DecisionFactors[0])
}
