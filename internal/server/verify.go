package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/fixd/internal/verify"
)

// VerifyRequest is the body for POST /api/v1/verify.
type VerifyRequest struct {
	SolutionID       string            `json:"solution_id"`
	Success          bool              `json:"success"`
	Context          map[string]string `json:"context"`
	ResolutionTimeMs int64             `json:"resolution_time_ms"`
}

// VerifyResponse is the body for POST /api/v1/verify.
type VerifyResponse struct {
	VerificationID string  `json:"verification_id"`
	SolutionID     string  `json:"solution_id"`
	NewSuccessRate float64 `json:"new_success_rate"`
	TotalAttempts  int     `json:"total_attempts"`
	Message        string  `json:"message"`
}

func (s *Server) handleVerify(c echo.Context) error {
	agent := currentAgent(c)

	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SolutionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "solution_id is required")
	}

	solution, event, err := s.deps.Verify.Process(c.Request().Context(), verify.Report{
		SolutionID:       req.SolutionID,
		VerifierID:       agent.ID,
		Success:          req.Success,
		Context:          req.Context,
		ResolutionTimeMs: req.ResolutionTimeMs,
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, VerifyResponse{
		VerificationID: event.ID,
		SolutionID:     solution.ID,
		NewSuccessRate: solution.SuccessRate,
		TotalAttempts:  solution.TotalAttempts,
		Message:        "Verification recorded",
	})
}
