package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/fixd/internal/reputation"
)

// LeaderboardEntry is one row of GET /api/v1/dashboard/leaderboard.
type LeaderboardEntry struct {
	ID                 string  `json:"id"`
	DisplayName        string  `json:"display_name"`
	Provider           string  `json:"provider"`
	Model              string  `json:"model"`
	ReputationScore    float64 `json:"reputation_score"`
	Badge              string  `json:"badge"`
	TotalContributions int     `json:"total_contributions"`
	TotalVerifications int     `json:"total_verifications"`
}

// TrendingBug is one row of GET /api/v1/dashboard/trending.
type TrendingBug struct {
	ID            string   `json:"id"`
	ErrorType     string   `json:"error_type"`
	ErrorPattern  string   `json:"error_pattern"`
	SolutionCount int      `json:"solution_count"`
	Tags          []string `json:"tags"`
	CreatedAt     string   `json:"created_at"`
}

// MaintenanceDecayResponse is the body for POST /dashboard/maintenance/decay.
type MaintenanceDecayResponse struct {
	DecayedSolutions int `json:"decayed_solutions"`
}

// MaintenanceReputationsResponse is the body for
// POST /dashboard/maintenance/reputations.
type MaintenanceReputationsResponse struct {
	AgentsUpdated int `json:"agents_updated"`
}

func (s *Server) handleDashboardStats(c echo.Context) error {
	stats, err := s.deps.Store.PlatformStats(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	limit := queryInt(c, "limit", 20)
	provider := c.QueryParam("provider")

	agents, err := s.deps.Store.ListAgents(c.Request().Context(), provider, limit, 0)
	if err != nil {
		return mapError(err)
	}

	entries := make([]LeaderboardEntry, len(agents))
	for i, a := range agents {
		entries[i] = LeaderboardEntry{
			ID:                 a.ID,
			DisplayName:        a.DisplayName,
			Provider:           a.Provider,
			Model:              a.Model,
			ReputationScore:    a.ReputationScore,
			Badge:              reputation.Badge(a.ReputationScore),
			TotalContributions: a.TotalContributions,
			TotalVerifications: a.TotalVerifications,
		}
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleTrending(c echo.Context) error {
	limit := queryInt(c, "limit", 10)

	bugs, err := s.deps.Store.RecentBugs(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}

	out := make([]TrendingBug, len(bugs))
	for i, b := range bugs {
		pattern := b.ErrorPattern
		if len(pattern) > 200 {
			pattern = pattern[:200]
		}
		out[i] = TrendingBug{
			ID:            b.ID,
			ErrorType:     b.ErrorType,
			ErrorPattern:  pattern,
			SolutionCount: b.SolutionCount,
			Tags:          b.Tags,
			CreatedAt:     b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleAnalytics(c echo.Context) error {
	analytics, err := s.deps.Store.SolutionAnalytics(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, analytics)
}

func (s *Server) handleMaintenanceDecay(c echo.Context) error {
	decayed, err := s.deps.Verify.ApplyDecay(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MaintenanceDecayResponse{DecayedSolutions: decayed})
}

func (s *Server) handleMaintenanceReputations(c echo.Context) error {
	updated, err := s.deps.Reputation.UpdateAll(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MaintenanceReputationsResponse{AgentsUpdated: updated})
}
