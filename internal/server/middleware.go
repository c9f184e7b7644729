package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/auth"
	"github.com/fyrsmithlabs/fixd/internal/store"
)

// agentContextKey holds the authenticated agent in the echo context.
const agentContextKey = "fixd.agent"

// apiKeyHeader carries the agent credential.
const apiKeyHeader = "X-API-Key"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixd_http_requests_total",
		Help: "HTTP requests, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixd_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})
)

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// requireKey authenticates the X-API-Key header and stores the agent in the
// request context.
func (s *Server) requireKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(apiKeyHeader)
		if key == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
		}
		agent, err := s.deps.Auth.Resolve(c.Request().Context(), key)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidKey) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			return err
		}
		c.Set(agentContextKey, agent)
		return next(c)
	}
}

// currentAgent returns the agent placed in the context by requireKey.
func currentAgent(c echo.Context) *store.Agent {
	agent, _ := c.Get(agentContextKey).(*store.Agent)
	return agent
}

// mapError converts domain errors to HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidStep):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		return echo.NewHTTPError(http.StatusConflict, "duplicate record")
	default:
		return err
	}
}
