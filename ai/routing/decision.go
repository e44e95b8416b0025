package routing

import (
	"fmt"
	"time"
)

// DecisionKind tells which pipeline stage produced a decision.
type DecisionKind int

const (
	// NoAgent means every stage abstained.
	NoAgent DecisionKind = iota
	// MLHit is a confident SelfLearningRouter prediction.
	MLHit
	// ClassifierHit is a FeatureClassifier winner, possibly boosted by personalization.
	ClassifierHit
	// FallbackHit is the best CanHandle self-assessment.
	FallbackHit
)

// Decision methods.
const (
	MethodMLSelfLearning = "ml_self_learning"
	MethodML             = "ml"
	MethodTraditional    = "traditional"
	MethodNone           = "none"
)

// Pipeline stages reported in abstentions.
const (
	StageSelfLearning = "self_learning"
	StageClassifier   = "classifier"
	StageTraditional  = "traditional"
)

// NoAgentMessage is the reply text of a NoAgent decision.
const NoAgentMessage = "Извините, я не смог определить подходящего специалиста для вашего вопроса. " +
	"Обратитесь в общую информационную службу университета."

const noAgentConfidence = 0.1

func (k DecisionKind) String() string {
	switch k {
	case MLHit:
		return "ml_hit"
	case ClassifierHit:
		return "classifier_hit"
	case FallbackHit:
		return "fallback_hit"
	default:
		return "no_agent"
	}
}

// MarshalText encodes the kind by name.
func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Abstention records why a stage declined to decide.
type Abstention struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Decision is the outcome of Engine.Route. A decision is always produced.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	AgentID    string       `json:"agent_id,omitempty"`
	Confidence float64      `json:"confidence"`
	Method     string       `json:"method"`
	// Message carries the reply text of a NoAgent decision.
	Message string `json:"message,omitempty"`

	Prediction       *Prediction        `json:"prediction,omitempty"`
	ClassifierScores map[string]float64 `json:"classifier_scores,omitempty"`
	Recommendation   *Recommendation    `json:"recommendation,omitempty"`
	AgentScores      map[string]float64 `json:"agent_scores,omitempty"`
	Abstentions      []Abstention       `json:"abstentions,omitempty"`

	Latency time.Duration `json:"latency_ns"`
}

// Decided reports whether an agent was selected.
func (d *Decision) Decided() bool {
	return d.Kind != NoAgent
}

// Explanation is a one-line, human-readable account of the decision.
func (d *Decision) Explanation() string {
	switch d.Kind {
	case MLHit:
		return fmt.Sprintf("self-learning router selected %s with confidence %.3f", d.AgentID, d.Confidence)
	case ClassifierHit:
		if d.Recommendation != nil && d.Recommendation.Agent == d.AgentID {
			return fmt.Sprintf("classifier selected %s with confidence %.3f (personalized)", d.AgentID, d.Confidence)
		}
		return fmt.Sprintf("classifier selected %s with confidence %.3f", d.AgentID, d.Confidence)
	case FallbackHit:
		return fmt.Sprintf("keyword heuristics selected %s with score %.3f", d.AgentID, d.Confidence)
	default:
		return "no agent could handle the message"
	}
}

func (d *Decision) abstain(stage, reason string) {
	d.Abstentions = append(d.Abstentions, Abstention{Stage: stage, Reason: reason})
}
