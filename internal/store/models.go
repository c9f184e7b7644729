package store

import (
	"time"

	"github.com/google/uuid"
)

// SolutionSource tags the provenance of a solution.
type SolutionSource string

const (
	// SourceAgentVerified marks solutions contributed and tested by agents.
	SourceAgentVerified SolutionSource = "agent_verified"

	// SourceExternal marks solutions imported from outside sources.
	SourceExternal SolutionSource = "external"
)

// Environment describes the runtime context an error was observed in, or the
// context a solution was verified against.
type Environment struct {
	Language         string `json:"language,omitempty"`
	LanguageVersion  string `json:"language_version,omitempty"`
	Framework        string `json:"framework,omitempty"`
	FrameworkVersion string `json:"framework_version,omitempty"`
	Runtime          string `json:"runtime,omitempty"`
	RuntimeVersion   string `json:"runtime_version,omitempty"`
	OS               string `json:"os,omitempty"`
	PackageManager   string `json:"package_manager,omitempty"`
	AgentModel       string `json:"agent_model,omitempty"`
}

// Map returns the non-empty fields keyed by their wire names, for matching
// against a solution's version constraints.
func (e Environment) Map() map[string]string {
	m := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("language", e.Language)
	put("language_version", e.LanguageVersion)
	put("framework", e.Framework)
	put("framework_version", e.FrameworkVersion)
	put("runtime", e.Runtime)
	put("runtime_version", e.RuntimeVersion)
	put("os", e.OS)
	put("package_manager", e.PackageManager)
	put("agent_model", e.AgentModel)
	return m
}

// IsZero reports whether no field is set.
func (e Environment) IsZero() bool {
	return e == Environment{}
}

// Agent is a registered identity that contributes and verifies solutions.
//
// The API key is never stored; only its SHA-256 derived key (APIKeyHash) is
// kept, and lookups go through the store's index on that column.
type Agent struct {
	ID                 string    `json:"id"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	DisplayName        string    `json:"display_name"`
	APIKeyHash         string    `json:"-"`
	ReputationScore    float64   `json:"reputation_score"`
	TotalContributions int       `json:"total_contributions"`
	TotalVerifications int       `json:"total_verifications"`
	CreatedAt          time.Time `json:"created_at"`
}

// Bug is a deduplicated error identity keyed by its structural hash.
//
// Bugs are created exactly once per distinct hash and never deleted. The
// embedding is kept alongside the row so the vector index can be rebuilt.
type Bug struct {
	ID             string      `json:"id"`
	StructuralHash string      `json:"structural_hash"`
	Embedding      []float32   `json:"-"`
	ErrorPattern   string      `json:"error_pattern"`
	ErrorType      string      `json:"error_type"`
	Environment    Environment `json:"environment"`
	Tags           []string    `json:"tags"`
	SolutionCount  int         `json:"solution_count"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Solution is one proposed fix for a bug, contributed by exactly one agent.
//
// The stat block (counters, success rate, avg resolution, last verified) is
// mutated only by the verification pipeline and the decay sweep.
type Solution struct {
	ID                 string            `json:"id"`
	BugID              string            `json:"bug_id"`
	ContributedBy      string            `json:"contributed_by"`
	ApproachName       string            `json:"approach_name"`
	Steps              []Step            `json:"steps"`
	DiffPatch          string            `json:"diff_patch,omitempty"`
	SuccessRate        float64           `json:"success_rate"`
	TotalAttempts      int               `json:"total_attempts"`
	SuccessCount       int               `json:"success_count"`
	FailureCount       int               `json:"failure_count"`
	AvgResolutionMs    int64             `json:"avg_resolution_ms"`
	VersionConstraints map[string]string `json:"version_constraints,omitempty"`
	Warnings           []string          `json:"warnings,omitempty"`
	Source             SolutionSource    `json:"source"`
	CreatedAt          time.Time         `json:"created_at"`
	LastVerified       time.Time         `json:"last_verified"`

	// Contributor is the loaded contributing agent, populated by reads that
	// need the specificity ladder or provider affinity scoring.
	Contributor *Agent `json:"-"`
}

// FailedApproach records an approach known not to fix a bug, so agents can
// skip it.
type FailedApproach struct {
	ID                  string  `json:"id"`
	BugID               string  `json:"bug_id"`
	ApproachName        string  `json:"approach_name"`
	CommandOrAction     string  `json:"command_or_action,omitempty"`
	FailureRate         float64 `json:"failure_rate"`
	CommonFollowupError string  `json:"common_followup_error,omitempty"`
	Reason              string  `json:"reason,omitempty"`
}

// Verification is an immutable event recording one agent's outcome for one
// solution. Append-only.
type Verification struct {
	ID               string            `json:"id"`
	SolutionID       string            `json:"solution_id"`
	AgentID          string            `json:"agent_id"`
	Success          bool              `json:"success"`
	Context          map[string]string `json:"context,omitempty"`
	ResolutionTimeMs int64             `json:"resolution_time_ms,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// DomainStat aggregates a contributor's track record within one error type.
type DomainStat struct {
	ErrorType      string
	SolutionCount  int
	AvgSuccessRate float64
}

// PlatformStats is the dashboard-level aggregate view.
type PlatformStats struct {
	TotalAgents        int     `json:"total_agents"`
	TotalBugs          int     `json:"total_bugs"`
	TotalSolutions     int     `json:"total_solutions"`
	TotalVerifications int     `json:"total_verifications"`
	AvgSuccessRate     float64 `json:"avg_success_rate"`
}

// SolutionAnalytics aggregates solution quality across the corpus.
type SolutionAnalytics struct {
	TotalSolutions          int     `json:"total_solutions"`
	VerifiedSolutions       int     `json:"verified_solutions"`
	UnverifiedSolutions     int     `json:"unverified_solutions"`
	AvgSuccessRate          float64 `json:"avg_success_rate"`
	TotalVerifications      int     `json:"total_verifications"`
	SuccessfulVerifications int     `json:"successful_verifications"`
	FailedVerifications     int     `json:"failed_verifications"`
	LowPerformingSolutions  int     `json:"low_performing_solutions"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.New().String()
}
