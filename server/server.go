// Package server hosts the HTTP surface of the routing engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/agentrouter/ai/metrics"
	"github.com/hrygo/agentrouter/ai/observability/logging"
	"github.com/hrygo/agentrouter/ai/routing"
	"github.com/hrygo/agentrouter/internal/profile"
	apiv1 "github.com/hrygo/agentrouter/server/router/api/v1"
	"github.com/hrygo/agentrouter/store"
)

const (
	feedbackSweepInterval = 10 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

var _ routing.Observer = (*metrics.PrometheusExporter)(nil)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Engine   *routing.Engine
	Feedback *routing.FeedbackCollector
	Metrics  *metrics.PrometheusExporter

	echoServer *echo.Echo
	runner     *errgroup.Group
	cancel     context.CancelFunc
}

// NewServer wires the HTTP routes. storeInstance may be nil when the engine runs on
// in-memory storage.
func NewServer(ctx context.Context, profile *profile.Profile, storeInstance *store.Store, engine *routing.Engine, feedback *routing.FeedbackCollector, exporter *metrics.PrometheusExporter) (*Server, error) {
	s := &Server{
		Profile:  profile,
		Store:    storeInstance,
		Engine:   engine,
		Feedback: feedback,
		Metrics:  exporter,
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(s.observeRequest)
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": profile.Version,
		})
	})
	if exporter != nil {
		echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiV1Service := apiv1.NewAPIV1Service(profile, engine, feedback)
	if err := apiV1Service.RegisterGateway(ctx, echoServer); err != nil {
		return nil, errors.Wrap(err, "failed to register gateway")
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// observeRequest attaches a request-scoped logger and records HTTP metrics.
func (s *Server) observeRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

		if err := next(c); err != nil {
			c.Error(err)
		}

		if s.Metrics != nil {
			s.Metrics.RecordHTTPRequest(c.Path(), c.Response().Status, time.Since(start))
		}
		return nil
	}
}

// Start begins serving and the pending-feedback sweeper. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.runner = g

	if s.Feedback != nil {
		g.Go(func() error {
			s.Feedback.Run(gctx, feedbackSweepInterval)
			return nil
		})
	}
	g.Go(func() error {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
			return err
		}
		return nil
	})
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.runner != nil {
		if err := s.runner.Wait(); err != nil {
			slog.Error("server runner exited with error", "error", err)
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			slog.Error("failed to close database", slog.String("error", err.Error()))
		}
	}

	slog.Info("server stopped properly")
}
