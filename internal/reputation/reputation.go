// Package reputation computes agent trust scores from contribution history.
//
// Reputation is a weighted sum of contribution accuracy, contribution volume,
// verification engagement and domain breadth, on a 0-100 scale. Scores are
// recomputed from the record store, never set directly by a caller.
package reputation

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

// Component weights. Volume and engagement use log2 scaling so early activity
// matters disproportionately more than later activity.
const (
	weightAccuracy   = 40.0
	weightVolume     = 25.0
	weightEngagement = 15.0
	weightBreadth    = 20.0

	volumeSaturation     = 6.0  // log2(n+1)/6 caps at 63 contributions
	engagementSaturation = 5.0  // log2(n+1)/5 caps at 31 verifications
	breadthSaturation    = 10.0 // distinct error types
)

// Domain badge policy: an agent is an expert in an error type once it has
// at least expertMinSolutions solutions with totalAttempts >= 3 averaging
// better than expertMinSuccessRate.
const (
	expertMinSolutions   = 3
	expertMinSuccessRate = 0.8
)

// badgeLadder maps reputation thresholds to badge names, evaluated in
// descending order; the highest qualifying threshold wins.
var badgeLadder = []struct {
	threshold float64
	name      string
}{
	{90, "Top 1% Contributor"},
	{75, "Top 10% Contributor"},
	{60, "Trusted Solver"},
	{30, "Rising Star"},
	{0, "Newcomer"},
}

// Engine computes and persists reputation scores.
type Engine struct {
	store  store.Store
	logger *zap.Logger
}

// NewEngine creates a reputation engine over the given store.
func NewEngine(st store.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, logger: logger.Named("reputation")}
}

// Compute returns an agent's reputation score in [0, 100].
func (e *Engine) Compute(ctx context.Context, agentID string) (float64, error) {
	solutions, err := e.store.SolutionsByContributor(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("loading solutions: %w", err)
	}
	verificationCount, err := e.store.CountVerificationsBy(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("counting verifications: %w", err)
	}

	if len(solutions) == 0 && verificationCount == 0 {
		return 0, nil
	}

	accuracy := 0.0
	rated := 0
	for _, sol := range solutions {
		if sol.TotalAttempts > 0 {
			accuracy += sol.SuccessRate
			rated++
		}
	}
	if rated > 0 {
		accuracy /= float64(rated)
	}

	volume := math.Min(math.Log2(float64(len(solutions))+1)/volumeSaturation, 1.0)
	engagement := math.Min(math.Log2(float64(verificationCount)+1)/engagementSaturation, 1.0)

	distinctTypes, err := e.store.DistinctErrorTypesSolved(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("counting error types: %w", err)
	}
	breadth := math.Min(float64(distinctTypes)/breadthSaturation, 1.0)

	score := accuracy*weightAccuracy +
		volume*weightVolume +
		engagement*weightEngagement +
		breadth*weightBreadth

	return round2(math.Min(score, 100)), nil
}

// Recompute computes an agent's score and persists it.
func (e *Engine) Recompute(ctx context.Context, agentID string) (float64, error) {
	score, err := e.Compute(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if err := e.store.SetAgentReputation(ctx, agentID, score); err != nil {
		return 0, fmt.Errorf("persisting reputation: %w", err)
	}
	return score, nil
}

// UpdateAll recomputes every agent's score and persists only the ones that
// changed, returning the count changed.
func (e *Engine) UpdateAll(ctx context.Context) (int, error) {
	ids, err := e.store.ListAgentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing agents: %w", err)
	}

	updated := 0
	for _, id := range ids {
		agent, err := e.store.GetAgent(ctx, id)
		if err != nil {
			return updated, err
		}
		score, err := e.Compute(ctx, id)
		if err != nil {
			return updated, err
		}
		if score == agent.ReputationScore {
			continue
		}
		if err := e.store.SetAgentReputation(ctx, id, score); err != nil {
			return updated, err
		}
		updated++
	}

	if updated > 0 {
		e.logger.Info("recomputed reputations", zap.Int("updated", updated), zap.Int("total", len(ids)))
	}
	return updated, nil
}

// Badge maps a reputation score to its display badge.
func Badge(score float64) string {
	for _, b := range badgeLadder {
		if score >= b.threshold {
			return b.name
		}
	}
	return "Newcomer"
}

// DomainBadges returns the error types where the agent qualifies as an
// expert, formatted as display badges.
func (e *Engine) DomainBadges(ctx context.Context, agentID string) ([]string, error) {
	stats, err := e.store.DomainExpertise(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading domain expertise: %w", err)
	}

	var badges []string
	for _, ds := range stats {
		if ds.SolutionCount >= expertMinSolutions && ds.AvgSuccessRate > expertMinSuccessRate {
			badges = append(badges, ds.ErrorType+" Expert")
		}
	}
	return badges, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
