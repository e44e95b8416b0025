package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/agentrouter/ai/observability/logging"
	"github.com/hrygo/agentrouter/ai/routing"
)

// RoutingService exposes the routing engine and feedback ingress over JSON.
type RoutingService struct {
	Engine   *routing.Engine
	Feedback *routing.FeedbackCollector

	// limiter throttles feedback ingress; nil disables throttling.
	limiter *rate.Limiter
}

// NewRoutingService creates the service. A non-positive rps disables feedback throttling.
func NewRoutingService(engine *routing.Engine, feedback *routing.FeedbackCollector, rps float64, burst int) *RoutingService {
	s := &RoutingService{Engine: engine, Feedback: feedback}
	if rps > 0 {
		if burst <= 0 {
			burst = int(rps)
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
	return s
}

// RegisterRoutes mounts the API under g, which is expected to be /api/v1.
func (s *RoutingService) RegisterRoutes(g *echo.Group) {
	g.POST("/route", s.Route)
	g.GET("/explain", s.Explain)
	g.GET("/stats", s.GetStats)

	feedback := g.Group("/feedback", s.throttle)
	feedback.POST("/explicit", s.CollectExplicit)
	feedback.POST("/implicit", s.CollectImplicit)
	feedback.POST("/reaction", s.CollectReaction)
}

type RouteRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type RouteResponse struct {
	// MessageID is the handle for feedback on this turn. Empty when no agent was selected.
	MessageID string `json:"message_id,omitempty"`
	// SessionID echoes the request session, or a fresh one when the request had none.
	SessionID   string            `json:"session_id"`
	Explanation string            `json:"explanation"`
	Decision    *routing.Decision `json:"decision"`
}

// Route runs the decision pipeline for one message.
func (s *RoutingService) Route(c echo.Context) error {
	var req RouteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := c.Request().Context()
	decision := s.Engine.Route(ctx, req.Message, req.UserID, req.Language)

	resp := &RouteResponse{SessionID: req.SessionID, Explanation: decision.Explanation(), Decision: decision}
	if decision.Decided() && s.Feedback != nil {
		resp.MessageID = s.Feedback.RegisterInteraction(req.Message, decision.AgentID, req.UserID, req.SessionID, req.Language)
	}
	logging.FromContext(ctx).Debug("routed message",
		"agent", decision.AgentID,
		"method", decision.Method,
		"confidence", decision.Confidence,
		"message_id", resp.MessageID,
	)
	return c.JSON(http.StatusOK, resp)
}

// Explain returns the classifier feature breakdown for ?message=.
func (s *RoutingService) Explain(c echo.Context) error {
	message := c.QueryParam("message")
	if strings.TrimSpace(message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	return c.JSON(http.StatusOK, s.Engine.Explain(message, c.QueryParam("language")))
}

// GetStats returns the learning statistics.
func (s *RoutingService) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.Engine.GetLearningStatistics(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("failed to get learning statistics", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get learning statistics")
	}
	return c.JSON(http.StatusOK, stats)
}

type ExplicitFeedbackRequest struct {
	MessageID string `json:"message_id"`
	Rating    int32  `json:"rating"`
	Helpful   bool   `json:"helpful"`
}

type ImplicitFeedbackRequest struct {
	MessageID string `json:"message_id"`
	FollowUps int    `json:"follow_ups"`
	Continued bool   `json:"continued"`
}

type ReactionRequest struct {
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type FeedbackResponse struct {
	Status string `json:"status"`
}

func (s *RoutingService) CollectExplicit(c echo.Context) error {
	var req ExplicitFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.feedbackResult(c, s.Feedback.CollectExplicit(c.Request().Context(), req.MessageID, req.Rating, req.Helpful))
}

func (s *RoutingService) CollectImplicit(c echo.Context) error {
	var req ImplicitFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.feedbackResult(c, s.Feedback.CollectImplicit(c.Request().Context(), req.MessageID, req.FollowUps, req.Continued))
}

func (s *RoutingService) CollectReaction(c echo.Context) error {
	var req ReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reaction == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reaction is required")
	}
	return s.feedbackResult(c, s.Feedback.CollectReaction(c.Request().Context(), req.MessageID, routing.Reaction(req.Reaction)))
}

func (*RoutingService) feedbackResult(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, &FeedbackResponse{Status: "recorded"})
	case errors.Is(err, routing.ErrUnknownInteraction):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, routing.ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		logging.FromContext(c.Request().Context()).Warn("feedback not recorded", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
}

// throttle rejects feedback requests over the configured rate.
func (s *RoutingService) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "feedback rate limit exceeded")
		}
		return next(c)
	}
}
