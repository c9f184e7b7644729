package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

// BugCreate describes the bug a contribution attaches to.
type BugCreate struct {
	ErrorPattern string            `json:"error_pattern"`
	ErrorType    string            `json:"error_type"`
	Environment  store.Environment `json:"environment"`
	Tags         []string          `json:"tags"`
}

// SolutionCreate describes the contributed fix.
type SolutionCreate struct {
	ApproachName       string            `json:"approach_name"`
	Steps              []store.Step      `json:"steps"`
	DiffPatch          string            `json:"diff_patch"`
	VersionConstraints map[string]string `json:"version_constraints"`
	Warnings           []string          `json:"warnings"`
}

// FailedApproachCreate describes a known dead end.
type FailedApproachCreate struct {
	ApproachName        string  `json:"approach_name"`
	CommandOrAction     string  `json:"command_or_action"`
	FailureRate         float64 `json:"failure_rate"`
	CommonFollowupError string  `json:"common_followup_error"`
	Reason              string  `json:"reason"`
}

// ContributeRequest is the body for POST /api/v1/contribute.
type ContributeRequest struct {
	Bug              BugCreate              `json:"bug"`
	Solution         SolutionCreate         `json:"solution"`
	FailedApproaches []FailedApproachCreate `json:"failed_approaches"`
}

// ContributeResponse is the body for POST /api/v1/contribute.
type ContributeResponse struct {
	BugID      string `json:"bug_id"`
	SolutionID string `json:"solution_id"`
	IsNewBug   bool   `json:"is_new_bug"`
	Message    string `json:"message"`
}

func (s *Server) handleContribute(c echo.Context) error {
	agent := currentAgent(c)

	var req ContributeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Bug.ErrorPattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bug.error_pattern is required")
	}
	if req.Solution.ApproachName == "" || len(req.Solution.Steps) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "solution needs an approach name and at least one step")
	}
	if err := store.ValidateSteps(req.Solution.Steps); err != nil {
		return mapError(err)
	}

	ctx := c.Request().Context()
	bug, created, err := s.deps.Search.EnsureBug(ctx, req.Bug.ErrorPattern, req.Bug.ErrorType, req.Bug.Tags, req.Bug.Environment)
	if err != nil {
		return mapError(err)
	}

	solution := &store.Solution{
		BugID:              bug.ID,
		ContributedBy:      agent.ID,
		ApproachName:       req.Solution.ApproachName,
		Steps:              req.Solution.Steps,
		DiffPatch:          req.Solution.DiffPatch,
		VersionConstraints: req.Solution.VersionConstraints,
		Warnings:           req.Solution.Warnings,
		Source:             store.SourceAgentVerified,
	}

	failed := make([]*store.FailedApproach, len(req.FailedApproaches))
	for i, fa := range req.FailedApproaches {
		failed[i] = &store.FailedApproach{
			BugID:               bug.ID,
			ApproachName:        fa.ApproachName,
			CommandOrAction:     fa.CommandOrAction,
			FailureRate:         fa.FailureRate,
			CommonFollowupError: fa.CommonFollowupError,
			Reason:              fa.Reason,
		}
	}

	if err := s.deps.Store.AddSolution(ctx, solution, failed); err != nil {
		return mapError(err)
	}

	// The index filters on solution count, so refresh the entry now that
	// the bug is (or stays) solvable.
	bug, err = s.deps.Store.GetBug(ctx, bug.ID)
	if err != nil {
		return mapError(err)
	}
	if err := s.deps.Search.ReindexBug(ctx, bug); err != nil {
		s.logger.Warn("reindexing bug failed", zap.String("bug_id", bug.ID), zap.Error(err))
	}

	return c.JSON(http.StatusCreated, ContributeResponse{
		BugID:      bug.ID,
		SolutionID: solution.ID,
		IsNewBug:   created,
		Message:    "Solution contributed successfully",
	})
}
