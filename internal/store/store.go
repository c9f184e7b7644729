// Package store persists agents, bugs, solutions and verification events.
//
// The rest of the system talks to the Store interface; the SQLite
// implementation below is the default backing. Nearest-neighbor search over
// bug embeddings is not part of this package; see internal/vectorindex.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a unique key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidStep is returned when a solution step fails validation.
	ErrInvalidStep = errors.New("invalid solution step")
)

// Store is the record store consumed by the search, reputation and
// verification components.
//
// Implementations must provide per-operation atomicity: a returned error
// means no partial mutation was committed.
type Store interface {
	// CreateAgent inserts a new agent. The APIKeyHash must be unique.
	CreateAgent(ctx context.Context, a *Agent) error

	// GetAgent returns an agent by ID, or ErrNotFound.
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// GetAgentByKeyHash resolves an agent by the derived key of its API key.
	// This is an indexed point lookup, never a scan.
	GetAgentByKeyHash(ctx context.Context, keyHash string) (*Agent, error)

	// ListAgents returns agents ordered by reputation descending, optionally
	// filtered by provider.
	ListAgents(ctx context.Context, provider string, limit, offset int) ([]*Agent, error)

	// ListAgentIDs returns the IDs of all agents.
	ListAgentIDs(ctx context.Context) ([]string, error)

	// SetAgentReputation persists a recomputed reputation score.
	SetAgentReputation(ctx context.Context, id string, score float64) error

	// EnsureBug inserts a bug keyed by its structural hash. If a bug with the
	// same hash already exists, including one inserted concurrently, the
	// existing record is returned with created=false.
	EnsureBug(ctx context.Context, b *Bug) (bug *Bug, created bool, err error)

	// GetBug returns a bug by ID, or ErrNotFound.
	GetBug(ctx context.Context, id string) (*Bug, error)

	// GetBugByHash returns the bug with the given structural hash, or
	// ErrNotFound.
	GetBugByHash(ctx context.Context, structuralHash string) (*Bug, error)

	// GetBugs returns the bugs with the given IDs, in no particular order.
	GetBugs(ctx context.Context, ids []string) ([]*Bug, error)

	// RecentBugs returns the newest bugs, for the trending view.
	RecentBugs(ctx context.Context, limit int) ([]*Bug, error)

	// AddSolution appends a solution (and any failed approaches) to a bug in
	// one transaction, incrementing the bug's solution count and the
	// contributor's contribution total.
	AddSolution(ctx context.Context, s *Solution, failed []*FailedApproach) error

	// GetSolution returns a solution by ID with its contributor loaded, or
	// ErrNotFound.
	GetSolution(ctx context.Context, id string) (*Solution, error)

	// SolutionsForBug returns a bug's solutions with contributors loaded,
	// oldest first.
	SolutionsForBug(ctx context.Context, bugID string) ([]*Solution, error)

	// SolutionsByContributor returns all solutions contributed by an agent.
	SolutionsByContributor(ctx context.Context, agentID string) ([]*Solution, error)

	// StaleSolutions returns solutions with at least one attempt whose last
	// verification is older than the given time.
	StaleSolutions(ctx context.Context, verifiedBefore time.Time) ([]*Solution, error)

	// UpdateSolutionStats persists a solution's stat block (counters, rate,
	// average resolution, last verified).
	UpdateSolutionStats(ctx context.Context, s *Solution) error

	// FailedApproachesForBug returns the known dead ends for a bug.
	FailedApproachesForBug(ctx context.Context, bugID string) ([]*FailedApproach, error)

	// RecordVerification appends the verification event, persists the
	// solution's updated stat block and increments the verifier's total, all
	// in one transaction.
	RecordVerification(ctx context.Context, v *Verification, s *Solution) error

	// CountVerificationsBy returns how many verifications an agent has
	// performed as a verifier.
	CountVerificationsBy(ctx context.Context, agentID string) (int, error)

	// DistinctErrorTypesSolved counts the distinct bug error types an agent
	// has contributed solutions for.
	DistinctErrorTypesSolved(ctx context.Context, agentID string) (int, error)

	// DomainExpertise aggregates an agent's per-error-type track record over
	// solutions with at least three attempts.
	DomainExpertise(ctx context.Context, agentID string) ([]DomainStat, error)

	// AvgSuccessRateBy returns the mean success rate of an agent's rated
	// solutions, or 0 if none are rated.
	AvgSuccessRateBy(ctx context.Context, agentID string) (float64, error)

	// PlatformStats returns the dashboard aggregates.
	PlatformStats(ctx context.Context) (*PlatformStats, error)

	// SolutionAnalytics returns aggregate solution quality metrics.
	SolutionAnalytics(ctx context.Context) (*SolutionAnalytics, error)

	// Close releases the underlying connection.
	Close() error
}
