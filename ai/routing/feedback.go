package routing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

var (
	// ErrUnknownInteraction is returned for a message id that was never registered,
	// has expired, or already received feedback.
	ErrUnknownInteraction = errors.New("unknown or already rated interaction")
	// ErrInvalidRating is returned for a rating outside 1-5 or a negative follow-up count.
	ErrInvalidRating = errors.New("invalid rating")
	// ErrRecordFailed is returned when the interaction could not be stored.
	ErrRecordFailed = errors.New("failed to record interaction")
)

// Reaction is a one-click user reaction to a reply.
type Reaction string

const (
	ReactionLike       Reaction = "like"
	ReactionDislike    Reaction = "dislike"
	ReactionWrongAgent Reaction = "wrong_agent"
)

// Feedback kinds reported to the Observer.
const (
	FeedbackExplicit = "explicit"
	FeedbackImplicit = "implicit"
	FeedbackReaction = "reaction"
)

const (
	helpfulRelevance   = 1.0
	unhelpfulRelevance = 0.2
	followUpPenalty    = 0.2
	minImplicit        = 0.1
	continuationBonus  = 0.2
	neutralRating      = 3
	defaultPendingTTL  = 24 * time.Hour
)

// PendingInteraction is a routed turn awaiting feedback.
type PendingInteraction struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Agent     string    `json:"agent"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackCollector turns user feedback on routed turns into learning signals.
// Each registered turn accepts feedback once.
type FeedbackCollector struct {
	recorder InteractionRecorder
	learner  FeedbackLearner
	observer Observer
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*PendingInteraction
}

// NewFeedbackCollector creates a collector. A non-positive ttl selects 24 hours.
func NewFeedbackCollector(recorder InteractionRecorder, learner FeedbackLearner, ttl time.Duration) *FeedbackCollector {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &FeedbackCollector{
		recorder: recorder,
		learner:  learner,
		observer: nopObserver{},
		ttl:      ttl,
		now:      time.Now,
		pending:  make(map[string]*PendingInteraction),
	}
}

// SetObserver installs an event observer.
func (c *FeedbackCollector) SetObserver(o Observer) {
	if o != nil {
		c.observer = o
	}
}

// RegisterInteraction remembers a routed turn and returns its message id.
func (c *FeedbackCollector) RegisterInteraction(message, agent, userID, sessionID, language string) string {
	id := shortuuid.New()
	c.mu.Lock()
	c.pending[id] = &PendingInteraction{
		ID:        id,
		Message:   message,
		Agent:     agent,
		UserID:    userID,
		SessionID: sessionID,
		Language:  language,
		CreatedAt: c.now(),
	}
	c.mu.Unlock()
	return id
}

// take removes and returns a live pending entry.
func (c *FeedbackCollector) take(id string) (*PendingInteraction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil, false
	}
	delete(c.pending, id)
	if c.now().Sub(p.CreatedAt) > c.ttl {
		return nil, false
	}
	return p, true
}

// restore puts back an entry whose feedback could not be stored.
func (c *FeedbackCollector) restore(p *PendingInteraction) {
	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
}

// CollectExplicit records a 1-5 rating with a helpful flag. High ratings also
// teach the classifier.
func (c *FeedbackCollector) CollectExplicit(ctx context.Context, id string, rating int32, helpful bool) error {
	if rating < 1 || rating > 5 {
		c.observer.ObserveFeedback(FeedbackExplicit, "invalid")
		return ErrInvalidRating
	}
	relevance := unhelpfulRelevance
	if helpful {
		relevance = helpfulRelevance
	}
	return c.collect(ctx, FeedbackExplicit, id, &rating, &relevance, true)
}

// CollectImplicit derives relevance from conversation behaviour: each follow-up
// question costs 0.2 (floor 0.1) and a continued conversation adds 0.2 (cap 1).
func (c *FeedbackCollector) CollectImplicit(ctx context.Context, id string, followUps int, continued bool) error {
	if followUps < 0 {
		c.observer.ObserveFeedback(FeedbackImplicit, "invalid")
		return ErrInvalidRating
	}
	relevance := ImplicitRelevance(followUps, continued)
	return c.collect(ctx, FeedbackImplicit, id, nil, &relevance, false)
}

// CollectReaction maps like, dislike and wrong_agent to ratings 5, 1 and 2.
// Other reactions count as a neutral, helpful 3.
func (c *FeedbackCollector) CollectReaction(ctx context.Context, id string, reaction Reaction) error {
	rating, helpful := ReactionRating(reaction)
	relevance := unhelpfulRelevance
	if helpful {
		relevance = helpfulRelevance
	}
	return c.collect(ctx, FeedbackReaction, id, &rating, &relevance, true)
}

func (c *FeedbackCollector) collect(ctx context.Context, kind, id string, rating *int32, relevance *float64, learn bool) error {
	p, ok := c.take(id)
	if !ok {
		c.observer.ObserveFeedback(kind, "unknown")
		return ErrUnknownInteraction
	}

	if !c.recorder.RecordInteraction(ctx, Interaction{
		Message:   p.Message,
		Agent:     p.Agent,
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Rating:    rating,
		Relevance: relevance,
	}) {
		c.restore(p)
		c.observer.ObserveFeedback(kind, "error")
		return ErrRecordFailed
	}
	if learn && rating != nil && c.learner != nil {
		c.learner.LearnFromFeedback(p.Message, p.Agent, float64(*rating)/5.0, p.Language)
	}

	c.observer.ObserveFeedback(kind, "ok")
	slog.Info("feedback collected", "kind", kind, "id", id, "agent", p.Agent)
	return nil
}

// ImplicitRelevance is max(0.1, 1 - 0.2*followUps), plus 0.2 capped at 1 when continued.
func ImplicitRelevance(followUps int, continued bool) float64 {
	r := math.Max(minImplicit, 1-followUpPenalty*float64(followUps))
	if continued {
		r = math.Min(1, r+continuationBonus)
	}
	return r
}

// ReactionRating maps a reaction to a rating and a helpful flag.
func ReactionRating(reaction Reaction) (int32, bool) {
	switch reaction {
	case ReactionLike:
		return 5, true
	case ReactionDislike:
		return 1, false
	case ReactionWrongAgent:
		return 2, false
	default:
		return neutralRating, true
	}
}

// Pending returns the number of turns awaiting feedback.
func (c *FeedbackCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Sweep drops expired entries and returns how many were removed.
func (c *FeedbackCollector) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, p := range c.pending {
		if now.Sub(p.CreatedAt) > c.ttl {
			delete(c.pending, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (c *FeedbackCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("expired pending feedback", "removed", n)
			}
		}
	}
}
