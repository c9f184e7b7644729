// Package server exposes the fixd HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/fixd/internal/auth"
	"github.com/fyrsmithlabs/fixd/internal/reputation"
	"github.com/fyrsmithlabs/fixd/internal/search"
	"github.com/fyrsmithlabs/fixd/internal/store"
	"github.com/fyrsmithlabs/fixd/internal/verify"
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64

	// MinVerifiedAttempts marks solutions with fewer attempts as
	// low-confidence in search responses; 0 disables the annotation.
	MinVerifiedAttempts int
}

// Deps are the collaborators behind the API.
type Deps struct {
	Store      store.Store
	Search     *search.Engine
	Verify     *verify.Pipeline
	Reputation *reputation.Engine
	Auth       *auth.Resolver
}

// Server is the fixd HTTP API server.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	config Config
	logger *zap.Logger
}

// NewServer creates an HTTP server with routes and middleware registered.
func NewServer(deps Deps, cfg Config, logger *zap.Logger) (*Server, error) {
	if deps.Store == nil || deps.Search == nil || deps.Verify == nil || deps.Reputation == nil || deps.Auth == nil {
		return nil, fmt.Errorf("all dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(metricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}

	s := &Server{
		echo:   e,
		deps:   deps,
		config: cfg,
		logger: logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/agents/register", s.handleRegisterAgent)
	v1.GET("/agents", s.handleListAgents)
	v1.GET("/agents/:id", s.handleGetAgent)
	v1.GET("/agents/:id/stats", s.handleAgentStats)

	v1.POST("/search", s.handleSearch)
	v1.POST("/contribute", s.handleContribute, s.requireKey)
	v1.POST("/verify", s.handleVerify, s.requireKey)

	v1.GET("/dashboard/stats", s.handleDashboardStats)
	v1.GET("/dashboard/leaderboard", s.handleLeaderboard)
	v1.GET("/dashboard/trending", s.handleTrending)
	v1.GET("/dashboard/analytics", s.handleAnalytics)
	v1.POST("/dashboard/maintenance/decay", s.handleMaintenanceDecay)
	v1.POST("/dashboard/maintenance/reputations", s.handleMaintenanceReputations)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
