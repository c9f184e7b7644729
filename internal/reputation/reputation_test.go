package reputation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

func setup(t *testing.T) (*store.SQLite, *Engine) {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, NewEngine(st, nil)
}

func addAgent(t *testing.T, st *store.SQLite, model string) *store.Agent {
	t.Helper()
	a := &store.Agent{Provider: "anthropic", Model: model, DisplayName: model, APIKeyHash: "h-" + store.NewID()}
	require.NoError(t, st.CreateAgent(context.Background(), a))
	return a
}

func addBug(t *testing.T, st *store.SQLite, hash, errorType string) *store.Bug {
	t.Helper()
	b, _, err := st.EnsureBug(context.Background(), &store.Bug{
		StructuralHash: hash, ErrorPattern: "boom", ErrorType: errorType,
	})
	require.NoError(t, err)
	return b
}

func addSolution(t *testing.T, st *store.SQLite, bugID, agentID string, attempts int, rate float64) *store.Solution {
	t.Helper()
	sol := &store.Solution{
		BugID: bugID, ContributedBy: agentID, ApproachName: "fix",
		Steps:         []store.Step{store.DescriptionStep("apply the fix")},
		TotalAttempts: attempts, SuccessCount: int(rate * float64(attempts)), SuccessRate: rate,
	}
	require.NoError(t, st.AddSolution(context.Background(), sol, nil))
	return sol
}

func TestComputeInactiveAgentIsZero(t *testing.T) {
	st, eng := setup(t)
	a := addAgent(t, st, "m")

	score, err := eng.Compute(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestComputeBounded(t *testing.T) {
	ctx := context.Background()
	st, eng := setup(t)
	a := addAgent(t, st, "m")

	// Saturate every component: many perfect solutions across many types,
	// plus heavy verification activity.
	verifier := addAgent(t, st, "v")
	for i := 0; i < 12; i++ {
		b := addBug(t, st, store.NewID(), "Type"+string(rune('A'+i)))
		for j := 0; j < 6; j++ {
			sol := addSolution(t, st, b.ID, a.ID, 10, 1.0)
			require.NoError(t, st.RecordVerification(ctx, &store.Verification{
				SolutionID: sol.ID, AgentID: a.ID, Success: true,
			}, sol))
			_ = verifier
		}
	}

	score, err := eng.Compute(ctx, a.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
	assert.Equal(t, 100.0, score, "fully saturated agent should hit the cap")
}

func TestComputeComponents(t *testing.T) {
	ctx := context.Background()
	st, eng := setup(t)
	a := addAgent(t, st, "m")
	b := addBug(t, st, "h1", "TypeError")

	// One solution, rated 1.0, one error type, no verifications performed.
	addSolution(t, st, b.ID, a.ID, 4, 1.0)

	// accuracy=1.0 -> 40; volume=log2(2)/6 -> 25/6; breadth=1/10 -> 2;
	// engagement=0.
	score, err := eng.Compute(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 40+25.0/6+2, score, 0.01)
}

func TestComputeIgnoresUnratedSolutionsForAccuracy(t *testing.T) {
	ctx := context.Background()
	st, eng := setup(t)
	a := addAgent(t, st, "m")
	b := addBug(t, st, "h1", "TypeError")

	addSolution(t, st, b.ID, a.ID, 0, 0) // unrated: contributes to volume, not accuracy

	score, err := eng.Compute(ctx, a.ID)
	require.NoError(t, err)
	// accuracy 0, volume log2(2)/6*25, breadth 2.
	assert.InDelta(t, 25.0/6+2, score, 0.01)
}

func TestUpdateAllPersistsOnlyChanges(t *testing.T) {
	ctx := context.Background()
	st, eng := setup(t)
	active := addAgent(t, st, "m1")
	idle := addAgent(t, st, "m2")
	b := addBug(t, st, "h1", "TypeError")
	addSolution(t, st, b.ID, active.ID, 5, 0.8)

	updated, err := eng.UpdateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	got, err := st.GetAgent(ctx, active.ID)
	require.NoError(t, err)
	assert.Greater(t, got.ReputationScore, 0.0)

	gotIdle, err := st.GetAgent(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, gotIdle.ReputationScore)

	// Second run: nothing changed.
	updated, err = eng.UpdateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestBadgeLadder(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "Top 1% Contributor"},
		{90, "Top 1% Contributor"},
		{80, "Top 10% Contributor"},
		{60, "Trusted Solver"},
		{45, "Rising Star"},
		{10, "Newcomer"},
		{0, "Newcomer"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Badge(tt.score), "score %.0f", tt.score)
	}
}

func TestDomainBadges(t *testing.T) {
	ctx := context.Background()
	st, eng := setup(t)
	a := addAgent(t, st, "m")
	typeErr := addBug(t, st, "h1", "TypeError")
	importErr := addBug(t, st, "h2", "ImportError")

	// TypeError: three well-attempted solutions averaging 0.9 -> expert.
	for i := 0; i < 3; i++ {
		addSolution(t, st, typeErr.ID, a.ID, 5, 0.9)
	}
	// ImportError: only two qualifying solutions -> no badge.
	addSolution(t, st, importErr.ID, a.ID, 5, 1.0)
	addSolution(t, st, importErr.ID, a.ID, 5, 1.0)

	badges, err := eng.DomainBadges(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"TypeError Expert"}, badges)
}
