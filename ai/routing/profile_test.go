package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentrouter/ai/configloader"
)

func TestDefaultRoutingProfile(t *testing.T) {
	p := testProfile(t)
	assert.Equal(t, []string{"ai_abitur", "kadrai", "uninav", "career_navigator", "uniroom"}, p.AgentIDs())
	assert.Equal(t, "uninav", p.DefaultAgent)
	assert.Equal(t, 0.4, p.DefaultConfidence)
	assert.Len(t, p.FallbackRules, 5)
	assert.Len(t, p.Bootstrap, 5)
	assert.Len(t, p.Seed, 37)
	assert.Len(t, p.Probes, 5)
}

func TestRoutingProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *RoutingProfile)
		wantErr string
	}{
		{"valid", func(*RoutingProfile) {}, ""},
		{"no agents", func(p *RoutingProfile) { p.Agents = nil }, "no agents"},
		{"duplicate agent", func(p *RoutingProfile) { p.Agents = append(p.Agents, p.Agents[0]) }, "duplicate agent"},
		{"bad regex", func(p *RoutingProfile) { p.Agents[0].Classifier.Patterns = []string{"("} }, "pattern"},
		{"empty context", func(p *RoutingProfile) { p.Agents[1].Classifier.ContextIndicators = nil }, "context indicators"},
		{"unknown question type", func(p *RoutingProfile) {
			p.Agents[0].Classifier.QuestionBonus = map[string]float64{"which": 0.1}
		}, "unknown question type"},
		{"unknown fallback agent", func(p *RoutingProfile) { p.FallbackRules[0].Agent = "nobody" }, "fallback rule"},
		{"missing default agent", func(p *RoutingProfile) { p.DefaultAgent = "nobody" }, "default agent"},
		{"unknown seed agent", func(p *RoutingProfile) { p.Seed[0].Agent = "nobody" }, "seed pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile(t)
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRoutingProfileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: helpdesk
    classifier:
      keywords: [помощь]
      patterns: [нужна помощь]
      context_indicators: [студент]
    heuristics:
      match_weight: 0.5
      keywords: [помощь]
default_agent: helpdesk
default_confidence: 0.5
`), 0o600))

	p, err := LoadRoutingProfile(configloader.NewLoader(dir), "profile.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"helpdesk"}, p.AgentIDs())

	a := NewKeywordAgent(p.Agents[0])
	assert.Equal(t, "helpdesk", a.Name())
	assert.InDelta(t, 0.5, a.CanHandle("нужна помощь", "ru"), 1e-9)
}

func TestLoadRoutingProfileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agentz: []\n"), 0o600))

	_, err := LoadRoutingProfile(configloader.NewLoader(dir), "profile.yaml")
	assert.Error(t, err)
}
