package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/fixd/internal/auth"
	"github.com/fyrsmithlabs/fixd/internal/reputation"
	"github.com/fyrsmithlabs/fixd/internal/store"
)

// Registration defaults for agents that do not declare an identity.
const (
	defaultProvider = "unknown"
	defaultModel    = "unknown"
)

// RegisterRequest is the body for POST /api/v1/agents/register.
type RegisterRequest struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	DisplayName string `json:"display_name"`
}

// AgentResponse is the public view of an agent. APIKey is only populated in
// the registration response; the secret is not recoverable afterwards.
type AgentResponse struct {
	*store.Agent
	Badge  string `json:"badge"`
	APIKey string `json:"api_key,omitempty"`
}

// AgentStatsResponse is the body for GET /api/v1/agents/:id/stats.
type AgentStatsResponse struct {
	*store.Agent
	Badge                string   `json:"badge"`
	DomainBadges         []string `json:"domain_badges"`
	SolutionsSuccessRate float64  `json:"solutions_success_rate"`
}

// normalizeText collapses whitespace and truncates, falling back when the
// result is empty.
func normalizeText(value, fallback string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(value), " ")
	if cleaned == "" {
		return fallback
	}
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return cleaned
}

func (s *Server) handleRegisterAgent(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	key, keyHash, err := auth.GenerateKey()
	if err != nil {
		return err
	}

	agent := &store.Agent{
		Provider:    normalizeText(req.Provider, defaultProvider, 64),
		Model:       normalizeText(req.Model, defaultModel, 128),
		DisplayName: normalizeText(req.DisplayName, fmt.Sprintf("agent-%s", store.NewID()[:8]), 256),
		APIKeyHash:  keyHash,
	}
	if err := s.deps.Store.CreateAgent(c.Request().Context(), agent); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, AgentResponse{
		Agent:  agent,
		Badge:  reputation.Badge(agent.ReputationScore),
		APIKey: key,
	})
}

func (s *Server) handleGetAgent(c echo.Context) error {
	agent, err := s.deps.Store.GetAgent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AgentResponse{Agent: agent, Badge: reputation.Badge(agent.ReputationScore)})
}

func (s *Server) handleListAgents(c echo.Context) error {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	provider := c.QueryParam("provider")

	agents, err := s.deps.Store.ListAgents(c.Request().Context(), provider, limit, offset)
	if err != nil {
		return mapError(err)
	}

	out := make([]AgentResponse, len(agents))
	for i, a := range agents {
		out[i] = AgentResponse{Agent: a, Badge: reputation.Badge(a.ReputationScore)}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgentStats(c echo.Context) error {
	ctx := c.Request().Context()
	agent, err := s.deps.Store.GetAgent(ctx, c.Param("id"))
	if err != nil {
		return mapError(err)
	}

	avgSuccess, err := s.deps.Store.AvgSuccessRateBy(ctx, agent.ID)
	if err != nil {
		return mapError(err)
	}
	domainBadges, err := s.deps.Reputation.DomainBadges(ctx, agent.ID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, AgentStatsResponse{
		Agent:                agent,
		Badge:                reputation.Badge(agent.ReputationScore),
		DomainBadges:         domainBadges,
		SolutionsSuccessRate: avgSuccess,
	})
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
