package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/search"
	"github.com/fyrsmithlabs/fixd/internal/store"
)

// SearchRequest is the body for POST /api/v1/search.
type SearchRequest struct {
	ErrorPattern  string            `json:"error_pattern"`
	ErrorType     string            `json:"error_type"`
	Environment   store.Environment `json:"environment"`
	AgentProvider string            `json:"agent_provider"`
	AgentModel    string            `json:"agent_model"`
	MaxResults    int               `json:"max_results"`
}

// SearchResult is one match in the response.
type SearchResult struct {
	*search.Match
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// SearchResponse is the body for POST /api/v1/search.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalFound   int            `json:"total_found"`
	SearchTimeMs int64          `json:"search_time_ms"`

	// AutoCreatedBugID is set when the search missed and a new bug record
	// was created for the fingerprint, so a follow-up contribution can
	// attach to it.
	AutoCreatedBugID string `json:"auto_created_bug_id,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	start := time.Now()

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ErrorPattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "error_pattern is required")
	}

	ctx := c.Request().Context()
	matches, err := s.deps.Search.Search(ctx, search.Query{
		ErrorPattern:  req.ErrorPattern,
		ErrorType:     req.ErrorType,
		AgentProvider: req.AgentProvider,
		AgentModel:    req.AgentModel,
		Environment:   req.Environment.Map(),
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		return mapError(err)
	}

	resp := SearchResponse{Results: make([]SearchResult, len(matches))}
	for i, m := range matches {
		resp.Results[i] = SearchResult{
			Match:         m,
			LowConfidence: s.lowConfidence(m),
		}
	}
	resp.TotalFound = len(matches)

	// A miss still pays forward: record the fingerprint so the next
	// identical error is an exact hit instead of another embedding query.
	if len(matches) == 0 {
		bug, created, err := s.deps.Search.EnsureBug(ctx, req.ErrorPattern, req.ErrorType, nil, req.Environment)
		if err != nil {
			s.logger.Warn("auto-creating bug failed", zap.Error(err))
		} else if created {
			resp.AutoCreatedBugID = bug.ID
		}
	}

	resp.SearchTimeMs = time.Since(start).Milliseconds()
	return c.JSON(http.StatusOK, resp)
}

// lowConfidence reports whether every solution of the match is below the
// configured verified-attempts threshold.
func (s *Server) lowConfidence(m *search.Match) bool {
	if s.config.MinVerifiedAttempts <= 0 {
		return false
	}
	for _, sol := range m.Solutions {
		if sol.TotalAttempts >= s.config.MinVerifiedAttempts {
			return false
		}
	}
	return true
}
