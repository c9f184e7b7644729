// Package verify turns verification reports into solution statistics.
//
// It is the only writer of the solution stat block: real-time updates on each
// verification event, and a periodic decay sweep that erodes the confidence
// of solutions nobody has re-verified recently.
package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/reputation"
	"github.com/fyrsmithlabs/fixd/internal/store"
)

// Decay and flagging policy.
const (
	// decayAfterDays is how long a solution may go unverified before its
	// success rate starts to erode.
	decayAfterDays = 90

	// decayFloor is the lowest decay multiplier; decay never halves a rate
	// more than once no matter how stale.
	decayFloor = 0.5

	// Low-performer flagging: enough attempts to mean it, failing most of
	// the time.
	lowSuccessThreshold = 0.3
	minAttemptsForFlag  = 5

	// avgResolutionAlpha is the EWMA weight of a new resolution-time sample.
	avgResolutionAlpha = 0.2
)

// Report is one verification outcome.
type Report struct {
	SolutionID       string
	VerifierID       string
	Success          bool
	ResolutionTimeMs int64
	Context          map[string]string
}

// Pipeline applies verification reports and decay sweeps.
type Pipeline struct {
	store      store.Store
	reputation *reputation.Engine
	logger     *zap.Logger
}

// NewPipeline creates a verification pipeline.
func NewPipeline(st store.Store, rep *reputation.Engine, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: st, reputation: rep, logger: logger.Named("verify")}
}

// Process records one verification: stat block update, immutable event,
// verifier counter and contributor reputation recompute. Returns the updated
// solution and the recorded event.
func (p *Pipeline) Process(ctx context.Context, r Report) (*store.Solution, *store.Verification, error) {
	sol, err := p.store.GetSolution(ctx, r.SolutionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading solution: %w", err)
	}

	if r.Success {
		sol.SuccessCount++
	} else {
		sol.FailureCount++
	}
	sol.TotalAttempts = sol.SuccessCount + sol.FailureCount
	sol.SuccessRate = float64(sol.SuccessCount) / float64(sol.TotalAttempts)

	if r.ResolutionTimeMs > 0 {
		if sol.AvgResolutionMs == 0 {
			sol.AvgResolutionMs = r.ResolutionTimeMs
		} else {
			sol.AvgResolutionMs = int64(float64(sol.AvgResolutionMs)*(1-avgResolutionAlpha) +
				float64(r.ResolutionTimeMs)*avgResolutionAlpha)
		}
	}
	sol.LastVerified = time.Now().UTC()

	verification := &store.Verification{
		SolutionID:       sol.ID,
		AgentID:          r.VerifierID,
		Success:          r.Success,
		Context:          r.Context,
		ResolutionTimeMs: r.ResolutionTimeMs,
	}
	if err := p.store.RecordVerification(ctx, verification, sol); err != nil {
		return nil, nil, fmt.Errorf("recording verification: %w", err)
	}

	if _, err := p.reputation.Recompute(ctx, sol.ContributedBy); err != nil {
		return nil, nil, fmt.Errorf("recomputing contributor reputation: %w", err)
	}

	if sol.TotalAttempts >= minAttemptsForFlag && sol.SuccessRate < lowSuccessThreshold {
		p.logger.Warn("low-performing solution flagged",
			zap.String("solution_id", sol.ID),
			zap.Float64("success_rate", sol.SuccessRate),
			zap.Int("attempts", sol.TotalAttempts),
		)
	}

	return sol, verification, nil
}

// ApplyDecay erodes the success rate of solutions with at least one attempt
// whose last verification is older than the decay window, and returns how
// many were decayed. Decay only ever lowers a rate.
func (p *Pipeline) ApplyDecay(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -decayAfterDays)

	stale, err := p.store.StaleSolutions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("loading stale solutions: %w", err)
	}

	decayed := 0
	for _, sol := range stale {
		daysStale := int(now.Sub(sol.LastVerified).Hours() / 24)
		factor := DecayFactor(daysStale)

		sol.SuccessRate = round4(sol.SuccessRate * factor)
		if err := p.store.UpdateSolutionStats(ctx, sol); err != nil {
			return decayed, fmt.Errorf("persisting decay for %s: %w", sol.ID, err)
		}
		decayed++
	}

	if decayed > 0 {
		p.logger.Info("applied confidence decay", zap.Int("solutions", decayed))
	}
	observeDecay(decayed)
	return decayed, nil
}

// DecayFactor returns the multiplier applied to a solution's success rate
// after daysStale days without reverification. Linear erosion past the decay
// window, floored at 0.5.
func DecayFactor(daysStale int) float64 {
	return math.Max(decayFloor, 1.0-float64(daysStale-decayAfterDays)/365.0)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
