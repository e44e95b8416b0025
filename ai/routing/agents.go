package routing

import (
	"sync"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

// Agent is a routable specialist. CanHandle returns a self-assessed fitness in [0,1].
type Agent interface {
	ID() string
	Name() string
	CanHandle(message, language string) float64
}

const (
	canHandleMiss      = 0.1
	canHandleExclusion = 0.1
	canHandlePhrase    = 1.0
)

// KeywordAgent implements Agent with the heuristic tables of a profile entry.
type KeywordAgent struct {
	id   string
	name string
	h    HeuristicProfile
}

// NewKeywordAgent creates an agent from its profile. Table entries are case-folded.
func NewKeywordAgent(p AgentProfile) *KeywordAgent {
	h := p.Heuristics
	h.Keywords = foldAll(h.Keywords)
	h.Phrases = foldAll(h.Phrases)
	h.QualifiedPhrases = foldAll(h.QualifiedPhrases)
	h.Qualifiers = foldAll(h.Qualifiers)
	h.Exclusions = foldAll(h.Exclusions)
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return &KeywordAgent{id: p.ID, name: name, h: h}
}

func (a *KeywordAgent) ID() string   { return a.id }
func (a *KeywordAgent) Name() string { return a.name }

// CanHandle checks, in order: exclusions (0.1), phrases (1.0), qualified phrases
// (1.0 with a qualifier, UnqualifiedScore without), then keyword hits times MatchWeight.
func (a *KeywordAgent) CanHandle(message, _ string) float64 {
	folded := strutil.Fold(message)

	if containsAny(folded, a.h.Exclusions) {
		return canHandleExclusion
	}
	if containsAny(folded, a.h.Phrases) {
		return canHandlePhrase
	}
	if containsAny(folded, a.h.QualifiedPhrases) {
		if containsAny(folded, a.h.Qualifiers) {
			return canHandlePhrase
		}
		return a.h.UnqualifiedScore
	}

	matches := countContains(folded, a.h.Keywords)
	if matches == 0 {
		return canHandleMiss
	}
	return clamp01(float64(matches) * a.h.MatchWeight)
}

// Registry is the set of agents the pipeline may select, kept in registration order.
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
	byID   map[string]Agent
}

// NewRegistry creates a registry holding agents.
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{byID: make(map[string]Agent)}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// NewRegistryFromProfile registers a KeywordAgent for every profile agent.
func NewRegistryFromProfile(p *RoutingProfile) *Registry {
	r := NewRegistry()
	for _, ap := range p.Agents {
		r.Register(NewKeywordAgent(ap))
	}
	return r
}

// Register adds an agent, replacing any agent with the same id in place.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID()]; exists {
		for i, cur := range r.agents {
			if cur.ID() == a.ID() {
				r.agents[i] = a
			}
		}
	} else {
		r.agents = append(r.agents, a)
	}
	r.byID[a.ID()] = a
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns the agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Agent(nil), r.agents...)
}

// IDs returns agent ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.agents))
	for i, a := range r.agents {
		ids[i] = a.ID()
	}
	return ids
}
