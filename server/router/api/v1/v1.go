package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/agentrouter/ai/routing"
	"github.com/hrygo/agentrouter/internal/profile"
)

type APIV1Service struct {
	// Domain Services
	RoutingService *RoutingService

	// Shared Infra
	Profile *profile.Profile
}

func NewAPIV1Service(profile *profile.Profile, engine *routing.Engine, feedback *routing.FeedbackCollector) *APIV1Service {
	return &APIV1Service{
		Profile:        profile,
		RoutingService: NewRoutingService(engine, feedback, profile.FeedbackRPS, profile.FeedbackBurst),
	}
}

func (s *APIV1Service) RegisterGateway(_ context.Context, echoServer *echo.Echo) error {
	corsHandler := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	})

	apiGroup := echoServer.Group("/api/v1", corsHandler)
	s.RoutingService.RegisterRoutes(apiGroup)
	return nil
}
