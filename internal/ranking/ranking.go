// Package ranking orders candidate solutions best-first.
//
// The score is a fixed-weight composite of competing trust signals: observed
// success rate, evidence volume, verification recency, environment match and
// provider affinity. It is a pure function over its inputs; no I/O.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

// Fixed policy weights. Not learned, not configurable.
const (
	weightSuccess    = 0.40
	weightConfidence = 0.20
	weightRecency    = 0.20
	weightEnvMatch   = 0.10
	weightProvider   = 0.10
)

// recencyScaleDays is the characteristic scale of the exponential recency
// decay; neverVerifiedDays is the assumed age of a solution with no
// verification history.
const (
	recencyScaleDays  = 90.0
	neverVerifiedDays = 365.0
)

// Context carries the caller's identity and runtime environment, all optional.
type Context struct {
	AgentProvider string
	AgentModel    string
	Environment   map[string]string
}

// Rank returns the solutions ordered by composite score, best first. The sort
// is stable: ties keep their input order. The input slice is not modified.
func Rank(solutions []*store.Solution, rctx Context) []*store.Solution {
	ranked := make([]*store.Solution, len(solutions))
	copy(ranked, solutions)

	now := time.Now().UTC()
	scores := make(map[string]float64, len(ranked))
	for _, sol := range ranked {
		scores[sol.ID] = Score(sol, rctx, now)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return ranked
}

// Score computes the composite trust score for one solution at the given time.
func Score(sol *store.Solution, rctx Context, now time.Time) float64 {
	// Unverified solutions get a neutral prior: neither trusted nor
	// distrusted.
	successScore := 0.5
	if sol.TotalAttempts > 0 {
		successScore = sol.SuccessRate
	}

	// Saturates toward 1 as attempts grow, independent of the outcome.
	confidence := 1 - 1/(1+float64(sol.TotalAttempts)*0.1)

	daysOld := neverVerifiedDays
	if !sol.LastVerified.IsZero() {
		daysOld = now.Sub(sol.LastVerified).Hours() / 24
		if daysOld < 0 {
			daysOld = 0
		}
	}
	recency := math.Exp(-daysOld / recencyScaleDays)

	envMatch := 0.5
	if len(rctx.Environment) > 0 && len(sol.VersionConstraints) > 0 {
		matches := 0
		for key, want := range sol.VersionConstraints {
			if got, ok := rctx.Environment[key]; ok && got == want {
				matches++
			}
		}
		fraction := float64(matches) / float64(len(sol.VersionConstraints))
		// Zero overlap still scores above zero: the constraints may simply
		// not apply to the caller's stack.
		envMatch = 0.3 + 0.7*fraction
	}

	providerBonus := 0.0
	if sol.Contributor != nil && rctx.AgentProvider != "" {
		if sol.Contributor.Provider == rctx.AgentProvider {
			providerBonus = 0.1
		}
		if rctx.AgentModel != "" && sol.Contributor.Model == rctx.AgentModel {
			providerBonus = 0.2
		}
	}

	return successScore*weightSuccess +
		confidence*weightConfidence +
		recency*weightRecency +
		envMatch*weightEnvMatch +
		providerBonus*weightProvider
}
