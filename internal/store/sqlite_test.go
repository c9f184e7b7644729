package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAgent(t *testing.T, s *SQLite, provider, model string) *Agent {
	t.Helper()
	a := &Agent{
		Provider:    provider,
		Model:       model,
		DisplayName: provider + "-" + model,
		APIKeyHash:  "hash-" + NewID(),
	}
	require.NoError(t, s.CreateAgent(context.Background(), a))
	return a
}

func newTestBug(t *testing.T, s *SQLite, hash, errorType string) *Bug {
	t.Helper()
	b, created, err := s.EnsureBug(context.Background(), &Bug{
		StructuralHash: hash,
		ErrorPattern:   "boom",
		ErrorType:      errorType,
		Embedding:      []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	require.True(t, created)
	return b
}

func TestAgentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := newTestAgent(t, s, "anthropic", "claude-sonnet-4")

	got, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Provider, got.Provider)
	assert.Equal(t, a.Model, got.Model)

	byHash, err := s.GetAgentByKeyHash(ctx, a.APIKeyHash)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byHash.ID)

	_, err = s.GetAgentByKeyHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetAgent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetAgentReputation(ctx, a.ID, 42.5))
	got, err = s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.ReputationScore)
}

func TestCreateAgentDuplicateKeyHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := newTestAgent(t, s, "openai", "gpt-5")
	err := s.CreateAgent(ctx, &Agent{
		Provider: "openai", Model: "gpt-5", DisplayName: "dup", APIKeyHash: a.APIKeyHash,
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestListAgentsOrderedByReputation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	low := newTestAgent(t, s, "anthropic", "m1")
	high := newTestAgent(t, s, "anthropic", "m2")
	other := newTestAgent(t, s, "openai", "m3")
	require.NoError(t, s.SetAgentReputation(ctx, low.ID, 10))
	require.NoError(t, s.SetAgentReputation(ctx, high.ID, 90))
	require.NoError(t, s.SetAgentReputation(ctx, other.ID, 50))

	agents, err := s.ListAgents(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, high.ID, agents[0].ID)

	anthropic, err := s.ListAgents(ctx, "anthropic", 10, 0)
	require.NoError(t, err)
	require.Len(t, anthropic, 2)
}

func TestEnsureBugIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, created, err := s.EnsureBug(ctx, &Bug{
		StructuralHash: "h1", ErrorPattern: "boom", ErrorType: "TypeError",
	})
	require.NoError(t, err)
	assert.True(t, created)

	// Same hash again: the existing record wins, no error.
	second, created, err := s.EnsureBug(ctx, &Bug{
		StructuralHash: "h1", ErrorPattern: "boom again", ErrorType: "TypeError",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	byHash, err := s.GetBugByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byHash.ID)
}

func TestBugEmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := newTestBug(t, s, "h-embed", "TypeError")
	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
}

func TestAddSolutionMaintainsCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent := newTestAgent(t, s, "anthropic", "claude-sonnet-4")
	bug := newTestBug(t, s, "h2", "ERESOLVE")

	for i := 0; i < 2; i++ {
		err := s.AddSolution(ctx, &Solution{
			BugID:         bug.ID,
			ContributedBy: agent.ID,
			ApproachName:  "clear npm cache",
			Steps:         []Step{ExecStep("npm cache clean --force")},
		}, []*FailedApproach{{ApproachName: "reinstall node", Reason: "does not touch the lockfile"}})
		require.NoError(t, err)
	}

	got, err := s.GetBug(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SolutionCount)

	a, err := s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.TotalContributions)

	solutions, err := s.SolutionsForBug(ctx, bug.ID)
	require.NoError(t, err)
	require.Len(t, solutions, 2)
	require.NotNil(t, solutions[0].Contributor)
	assert.Equal(t, agent.ID, solutions[0].Contributor.ID)

	failed, err := s.FailedApproachesForBug(ctx, bug.ID)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestAddSolutionRejectsInvalidSteps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent := newTestAgent(t, s, "anthropic", "m")
	bug := newTestBug(t, s, "h3", "TypeError")

	err := s.AddSolution(ctx, &Solution{
		BugID:         bug.ID,
		ContributedBy: agent.ID,
		ApproachName:  "broken",
		Steps:         []Step{{Action: StepExec}},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidStep)

	// Nothing committed.
	got, err := s.GetBug(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SolutionCount)
}

func TestRecordVerificationTransactional(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	contributor := newTestAgent(t, s, "anthropic", "m1")
	verifier := newTestAgent(t, s, "openai", "m2")
	bug := newTestBug(t, s, "h4", "TypeError")

	sol := &Solution{
		BugID:         bug.ID,
		ContributedBy: contributor.ID,
		ApproachName:  "pin version",
		Steps:         []Step{ExecStep("npm i left-pad@1.3.0")},
	}
	require.NoError(t, s.AddSolution(ctx, sol, nil))

	sol.SuccessCount = 1
	sol.TotalAttempts = 1
	sol.SuccessRate = 1.0
	sol.AvgResolutionMs = 1200
	sol.LastVerified = time.Now().UTC()

	err := s.RecordVerification(ctx, &Verification{
		SolutionID: sol.ID,
		AgentID:    verifier.ID,
		Success:    true,
		Context:    map[string]string{"os": "linux"},
	}, sol)
	require.NoError(t, err)

	got, err := s.GetSolution(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalAttempts)
	assert.Equal(t, 1.0, got.SuccessRate)
	assert.Equal(t, int64(1200), got.AvgResolutionMs)
	assert.False(t, got.LastVerified.IsZero())

	v, err := s.GetAgent(ctx, verifier.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.TotalVerifications)

	n, err := s.CountVerificationsBy(ctx, verifier.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStaleSolutions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent := newTestAgent(t, s, "anthropic", "m")
	bug := newTestBug(t, s, "h5", "TypeError")

	stale := &Solution{
		BugID: bug.ID, ContributedBy: agent.ID, ApproachName: "old",
		Steps:         []Step{DescriptionStep("restart it")},
		TotalAttempts: 3, SuccessCount: 3, SuccessRate: 1.0,
		LastVerified: time.Now().UTC().AddDate(0, 0, -120),
	}
	fresh := &Solution{
		BugID: bug.ID, ContributedBy: agent.ID, ApproachName: "new",
		Steps:         []Step{DescriptionStep("upgrade it")},
		TotalAttempts: 3, SuccessCount: 3, SuccessRate: 1.0,
		LastVerified: time.Now().UTC(),
	}
	unverified := &Solution{
		BugID: bug.ID, ContributedBy: agent.ID, ApproachName: "untested",
		Steps: []Step{DescriptionStep("maybe")},
	}
	require.NoError(t, s.AddSolution(ctx, stale, nil))
	require.NoError(t, s.AddSolution(ctx, fresh, nil))
	require.NoError(t, s.AddSolution(ctx, unverified, nil))

	cutoff := time.Now().UTC().AddDate(0, 0, -90)
	got, err := s.StaleSolutions(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestDomainExpertiseAndDistinctTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent := newTestAgent(t, s, "anthropic", "m")
	typeErr := newTestBug(t, s, "h6", "TypeError")
	importErr := newTestBug(t, s, "h7", "ImportError")

	add := func(bugID string, attempts int, rate float64) {
		require.NoError(t, s.AddSolution(ctx, &Solution{
			BugID: bugID, ContributedBy: agent.ID, ApproachName: "fix",
			Steps:         []Step{DescriptionStep("do the thing")},
			TotalAttempts: attempts, SuccessCount: attempts, SuccessRate: rate,
		}, nil))
	}
	add(typeErr.ID, 5, 0.9)
	add(typeErr.ID, 4, 0.95)
	add(importErr.ID, 1, 1.0) // below the 3-attempt floor, excluded

	n, err := s.DistinctErrorTypesSolved(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := s.DomainExpertise(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "TypeError", stats[0].ErrorType)
	assert.Equal(t, 2, stats[0].SolutionCount)
	assert.InDelta(t, 0.925, stats[0].AvgSuccessRate, 1e-9)
}

func TestPlatformStatsAndAnalytics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent := newTestAgent(t, s, "anthropic", "m")
	bug := newTestBug(t, s, "h8", "TypeError")

	require.NoError(t, s.AddSolution(ctx, &Solution{
		BugID: bug.ID, ContributedBy: agent.ID, ApproachName: "good",
		Steps:         []Step{DescriptionStep("works")},
		TotalAttempts: 10, SuccessCount: 8, SuccessRate: 0.8,
	}, nil))
	require.NoError(t, s.AddSolution(ctx, &Solution{
		BugID: bug.ID, ContributedBy: agent.ID, ApproachName: "bad",
		Steps:         []Step{DescriptionStep("rarely works")},
		TotalAttempts: 10, SuccessCount: 2, FailureCount: 8, SuccessRate: 0.2,
	}, nil))

	ps, err := s.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ps.TotalAgents)
	assert.Equal(t, 1, ps.TotalBugs)
	assert.Equal(t, 2, ps.TotalSolutions)
	assert.InDelta(t, 0.5, ps.AvgSuccessRate, 1e-9)

	sa, err := s.SolutionAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sa.TotalSolutions)
	assert.Equal(t, 2, sa.VerifiedSolutions)
	assert.Equal(t, 0, sa.UnverifiedSolutions)
	assert.Equal(t, 1, sa.LowPerformingSolutions)
}

func TestStepValidation(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"exec ok", ExecStep("ls"), false},
		{"exec missing command", Step{Action: StepExec}, true},
		{"patch with diff", PatchStep("", "--- a\n+++ b"), false},
		{"patch with target only", PatchStep("main.go", ""), false},
		{"patch missing both", Step{Action: StepPatch}, true},
		{"create ok", CreateStep(".npmrc", "legacy-peer-deps=true"), false},
		{"create missing content", Step{Action: StepCreate, Target: "x"}, true},
		{"delete ok", DeleteStep("node_modules"), false},
		{"delete missing target", Step{Action: StepDelete}, true},
		{"description ok", DescriptionStep("retry the install"), false},
		{"description empty", Step{Action: StepDescription}, true},
		{"unknown action", Step{Action: "reboot"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStep)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
