package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

func sol(id string, attempts int, rate float64, lastVerified time.Time) *store.Solution {
	successes := int(rate * float64(attempts))
	return &store.Solution{
		ID:            id,
		SuccessRate:   rate,
		TotalAttempts: attempts,
		SuccessCount:  successes,
		FailureCount:  attempts - successes,
		LastVerified:  lastVerified,
	}
}

func TestRankPrefersEvidenceAndRecency(t *testing.T) {
	now := time.Now().UTC()
	strong := sol("strong", 20, 0.9, now)
	weak := sol("weak", 1, 0.9, now.AddDate(0, 0, -200))

	ranked := Rank([]*store.Solution{weak, strong}, Context{})
	assert.Equal(t, "strong", ranked[0].ID)
	assert.Equal(t, "weak", ranked[1].ID)
}

func TestRankNeutralPriorForUnverified(t *testing.T) {
	unverified := sol("unverified", 0, 0, time.Time{})
	failed := sol("failed", 1, 0, time.Time{})

	// At equal recency, a never-tried solution (0.5 prior) outranks one whose
	// single attempt failed.
	ranked := Rank([]*store.Solution{failed, unverified}, Context{})
	assert.Equal(t, "unverified", ranked[0].ID)
}

func TestRankStableOnTies(t *testing.T) {
	now := time.Now().UTC()
	a := sol("a", 5, 0.8, now)
	b := sol("b", 5, 0.8, now)
	c := sol("c", 5, 0.8, now)

	ranked := Rank([]*store.Solution{a, b, c}, Context{})
	assert.Equal(t, []string{"a", "b", "c"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestScoreEnvironmentMatch(t *testing.T) {
	now := time.Now().UTC()
	base := sol("s", 10, 0.8, now)
	base.VersionConstraints = map[string]string{"language": "python", "language_version": "3.12"}

	full := Score(base, Context{Environment: map[string]string{
		"language": "python", "language_version": "3.12",
	}}, now)
	half := Score(base, Context{Environment: map[string]string{
		"language": "python", "language_version": "3.9",
	}}, now)
	none := Score(base, Context{Environment: map[string]string{
		"language": "go",
	}}, now)
	absent := Score(base, Context{}, now)

	assert.Greater(t, full, half)
	assert.Greater(t, half, none)
	// Full match adds 0.10·1.0, neutral default adds 0.10·0.5.
	assert.InDelta(t, 0.05, full-absent, 1e-9)
	// Zero overlap maps to 0.3, not 0: constraints may simply not apply.
	assert.InDelta(t, 0.03-0.05, none-absent, 1e-9)
}

func TestScoreProviderBonusLadder(t *testing.T) {
	now := time.Now().UTC()
	s := sol("s", 10, 0.8, now)
	s.Contributor = &store.Agent{Provider: "anthropic", Model: "claude-sonnet-4"}

	none := Score(s, Context{AgentProvider: "openai"}, now)
	provider := Score(s, Context{AgentProvider: "anthropic"}, now)
	model := Score(s, Context{AgentProvider: "anthropic", AgentModel: "claude-sonnet-4"}, now)

	assert.InDelta(t, 0.01, provider-none, 1e-9)
	assert.InDelta(t, 0.02, model-none, 1e-9)

	// No declared provider means no bonus at all.
	anonymous := Score(s, Context{}, now)
	assert.Equal(t, none, anonymous)
}

func TestScoreConfidenceSaturates(t *testing.T) {
	now := time.Now().UTC()
	few := Score(sol("few", 1, 1.0, now), Context{}, now)
	some := Score(sol("some", 10, 1.0, now), Context{}, now)
	many := Score(sol("many", 1000, 1.0, now), Context{}, now)

	assert.Less(t, few, some)
	assert.Less(t, some, many)
	// Confidence contributes at most its 0.20 weight.
	assert.Less(t, many-few, 0.20)
}
