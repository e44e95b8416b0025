package routing

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/hrygo/agentrouter/ai/configloader"
)

//go:embed profiles/default.yaml
var defaultProfileYAML []byte

// RoutingProfile is the data half of the router: per-agent keyword tables,
// fallback rules and the bootstrap/seed pattern sets.
type RoutingProfile struct {
	Agents            []AgentProfile      `yaml:"agents"`
	QuestionWords     map[string][]string `yaml:"question_words"`
	StopWords         []string            `yaml:"stop_words"`
	FallbackRules     []FallbackRule      `yaml:"fallback_rules"`
	DefaultAgent      string              `yaml:"default_agent"`
	DefaultConfidence float64             `yaml:"default_confidence"`
	Bootstrap         []SeedPattern       `yaml:"bootstrap"`
	Seed              []SeedPattern       `yaml:"seed"`
	Probes            []string            `yaml:"probes"`
}

// AgentProfile describes one agent.
type AgentProfile struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Classifier ClassifierProfile `yaml:"classifier"`
	Heuristics HeuristicProfile  `yaml:"heuristics"`
}

// ClassifierProfile holds the feature tables used by FeatureClassifier.
type ClassifierProfile struct {
	Keywords          []string           `yaml:"keywords"`
	Patterns          []string           `yaml:"patterns"`
	ContextIndicators []string           `yaml:"context_indicators"`
	Exclusions        []string           `yaml:"exclusions"`
	QuestionBonus     map[string]float64 `yaml:"question_bonus"`
}

// HeuristicProfile holds the CanHandle tables of a KeywordAgent.
type HeuristicProfile struct {
	Keywords         []string `yaml:"keywords"`
	MatchWeight      float64  `yaml:"match_weight"`
	Phrases          []string `yaml:"phrases"`
	QualifiedPhrases []string `yaml:"qualified_phrases"`
	Qualifiers       []string `yaml:"qualifiers"`
	UnqualifiedScore float64  `yaml:"unqualified_score"`
	Exclusions       []string `yaml:"exclusions"`
}

// FallbackRule maps a keyword set to an agent with a base confidence.
type FallbackRule struct {
	Agent      string   `yaml:"agent"`
	Keywords   []string `yaml:"keywords"`
	Confidence float64  `yaml:"confidence"`
}

// SeedPattern is a synthetic interaction used to warm up the performance store.
type SeedPattern struct {
	Message   string  `yaml:"message"`
	Agent     string  `yaml:"agent"`
	Rating    int32   `yaml:"rating"`
	Relevance float64 `yaml:"relevance"`
}

// DefaultRoutingProfile returns the embedded profile.
func DefaultRoutingProfile() (*RoutingProfile, error) {
	return LoadRoutingProfile(configloader.NewLoader(""), "")
}

// LoadRoutingProfile loads the profile at path, or the embedded default when path is empty.
func LoadRoutingProfile(loader *configloader.Loader, path string) (*RoutingProfile, error) {
	var p RoutingProfile
	if err := loader.LoadWithDefault(path, defaultProfileYAML, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the invariants the scorers rely on (non-empty denominators, compilable patterns).
func (p *RoutingProfile) Validate() error {
	if len(p.Agents) == 0 {
		return fmt.Errorf("routing profile: no agents")
	}
	seen := make(map[string]bool, len(p.Agents))
	for _, a := range p.Agents {
		if a.ID == "" {
			return fmt.Errorf("routing profile: agent without id")
		}
		if seen[a.ID] {
			return fmt.Errorf("routing profile: duplicate agent %q", a.ID)
		}
		seen[a.ID] = true

		c := a.Classifier
		if len(c.Keywords) == 0 || len(c.Patterns) == 0 || len(c.ContextIndicators) == 0 {
			return fmt.Errorf("routing profile: agent %q needs keywords, patterns and context indicators", a.ID)
		}
		for _, pat := range c.Patterns {
			if _, err := regexp.Compile(pat); err != nil {
				return fmt.Errorf("routing profile: agent %q pattern %q: %w", a.ID, pat, err)
			}
		}
		for q := range c.QuestionBonus {
			if _, ok := p.QuestionWords[q]; !ok {
				return fmt.Errorf("routing profile: agent %q bonus for unknown question type %q", a.ID, q)
			}
		}
	}
	for _, r := range p.FallbackRules {
		if len(r.Keywords) == 0 {
			return fmt.Errorf("routing profile: fallback rule for %q has no keywords", r.Agent)
		}
		if !seen[r.Agent] {
			return fmt.Errorf("routing profile: fallback rule for unknown agent %q", r.Agent)
		}
	}
	if p.DefaultAgent == "" || !seen[p.DefaultAgent] {
		return fmt.Errorf("routing profile: default agent %q is not defined", p.DefaultAgent)
	}
	for _, s := range append(append([]SeedPattern{}, p.Bootstrap...), p.Seed...) {
		if !seen[s.Agent] {
			return fmt.Errorf("routing profile: seed pattern %q for unknown agent %q", s.Message, s.Agent)
		}
	}
	return nil
}

// AgentIDs returns agent ids in profile order.
func (p *RoutingProfile) AgentIDs() []string {
	ids := make([]string, 0, len(p.Agents))
	for _, a := range p.Agents {
		ids = append(ids, a.ID)
	}
	return ids
}
