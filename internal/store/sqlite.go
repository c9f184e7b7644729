package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLite implements Store on a single SQLite database file.
//
// Thread-safe: sql.DB handles connection pooling and concurrent access.
// Single-row increments rely on SQLite's per-statement atomicity; multi-row
// mutations (contribute, verification) run inside explicit transactions.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path, creating parent
// directories as needed.
func Open(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// OpenInMemory creates an in-memory store, used by tests.
func OpenInMemory() (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// A shared-cache in-memory database disappears when the last connection
	// closes; keep exactly one open.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			display_name TEXT NOT NULL,
			api_key_hash TEXT NOT NULL UNIQUE,
			reputation_score REAL NOT NULL DEFAULT 0,
			total_contributions INTEGER NOT NULL DEFAULT 0,
			total_verifications INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_provider ON agents(provider);
		CREATE INDEX IF NOT EXISTS idx_agents_reputation ON agents(reputation_score DESC);

		CREATE TABLE IF NOT EXISTS bugs (
			id TEXT PRIMARY KEY,
			structural_hash TEXT NOT NULL UNIQUE,
			embedding BLOB,
			error_pattern TEXT NOT NULL,
			error_type TEXT NOT NULL,
			environment TEXT NOT NULL DEFAULT '{}',
			tags TEXT NOT NULL DEFAULT '[]',
			solution_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_bugs_error_type ON bugs(error_type);

		CREATE TABLE IF NOT EXISTS solutions (
			id TEXT PRIMARY KEY,
			bug_id TEXT NOT NULL REFERENCES bugs(id),
			contributed_by TEXT NOT NULL REFERENCES agents(id),
			approach_name TEXT NOT NULL,
			steps TEXT NOT NULL,
			diff_patch TEXT NOT NULL DEFAULT '',
			success_rate REAL NOT NULL DEFAULT 0,
			total_attempts INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			avg_resolution_ms INTEGER NOT NULL DEFAULT 0,
			version_constraints TEXT NOT NULL DEFAULT '{}',
			warnings TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL DEFAULT 'agent_verified',
			created_at INTEGER NOT NULL,
			last_verified INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_solutions_bug ON solutions(bug_id);
		CREATE INDEX IF NOT EXISTS idx_solutions_contributor ON solutions(contributed_by);
		CREATE INDEX IF NOT EXISTS idx_solutions_last_verified ON solutions(last_verified);

		CREATE TABLE IF NOT EXISTS failed_approaches (
			id TEXT PRIMARY KEY,
			bug_id TEXT NOT NULL REFERENCES bugs(id),
			approach_name TEXT NOT NULL,
			command_or_action TEXT NOT NULL DEFAULT '',
			failure_rate REAL NOT NULL DEFAULT 0,
			common_followup_error TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_failed_bug ON failed_approaches(bug_id);

		CREATE TABLE IF NOT EXISTS verifications (
			id TEXT PRIMARY KEY,
			solution_id TEXT NOT NULL REFERENCES solutions(id),
			agent_id TEXT NOT NULL REFERENCES agents(id),
			success INTEGER NOT NULL,
			context TEXT NOT NULL DEFAULT '{}',
			resolution_time_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_verifications_solution ON verifications(solution_id);
		CREATE INDEX IF NOT EXISTS idx_verifications_agent ON verifications(agent_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- agents ---

func (s *SQLite) CreateAgent(ctx context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, provider, model, display_name, api_key_hash,
			reputation_score, total_contributions, total_verifications, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Provider, a.Model, a.DisplayName, a.APIKeyHash,
		a.ReputationScore, a.TotalContributions, a.TotalVerifications, a.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return fmt.Errorf("agent %s: %w", a.ID, ErrDuplicateKey)
	}
	return err
}

const agentColumns = `id, provider, model, display_name, api_key_hash,
	reputation_score, total_contributions, total_verifications, created_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var createdAt int64
	err := row.Scan(&a.ID, &a.Provider, &a.Model, &a.DisplayName, &a.APIKeyHash,
		&a.ReputationScore, &a.TotalContributions, &a.TotalVerifications, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}

func (s *SQLite) GetAgent(ctx context.Context, id string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLite) GetAgentByKeyHash(ctx context.Context, keyHash string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE api_key_hash = ?`, keyHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *SQLite) ListAgents(ctx context.Context, provider string, limit, offset int) ([]*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	args := []any{}
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY reputation_score DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *SQLite) ListAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM agents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) SetAgentReputation(ctx context.Context, id string, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET reputation_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- bugs ---

func (s *SQLite) EnsureBug(ctx context.Context, b *Bug) (*Bug, bool, error) {
	if b.ID == "" {
		b.ID = NewID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	env, err := json.Marshal(b.Environment)
	if err != nil {
		return nil, false, err
	}
	tags, err := encodeList(b.Tags)
	if err != nil {
		return nil, false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bugs (id, structural_hash, embedding, error_pattern, error_type,
			environment, tags, solution_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StructuralHash, encodeVector(b.Embedding), b.ErrorPattern, b.ErrorType,
		string(env), tags, b.SolutionCount, b.CreatedAt.Unix())
	if isUniqueViolation(err) {
		// Lost the creation race (or the hash already existed): the bug with
		// this hash is the one the caller wants.
		existing, gerr := s.GetBugByHash(ctx, b.StructuralHash)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

const bugColumns = `id, structural_hash, embedding, error_pattern, error_type,
	environment, tags, solution_count, created_at`

func scanBug(row interface{ Scan(...any) error }) (*Bug, error) {
	var b Bug
	var embedding []byte
	var env, tags string
	var createdAt int64
	err := row.Scan(&b.ID, &b.StructuralHash, &embedding, &b.ErrorPattern, &b.ErrorType,
		&env, &tags, &b.SolutionCount, &createdAt)
	if err != nil {
		return nil, err
	}
	b.Embedding = decodeVector(embedding)
	if err := json.Unmarshal([]byte(env), &b.Environment); err != nil {
		return nil, fmt.Errorf("decoding bug environment: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
		return nil, fmt.Errorf("decoding bug tags: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}

func (s *SQLite) GetBug(ctx context.Context, id string) (*Bug, error) {
	b, err := scanBug(s.db.QueryRowContext(ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	return b, err
}

func (s *SQLite) GetBugByHash(ctx context.Context, structuralHash string) (*Bug, error) {
	b, err := scanBug(s.db.QueryRowContext(ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE structural_hash = ?`, structuralHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *SQLite) GetBugs(ctx context.Context, ids []string) ([]*Bug, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE id IN (?` +
		repeatPlaceholder(len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bugs []*Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

func (s *SQLite) RecentBugs(ctx context.Context, limit int) ([]*Bug, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bugColumns+` FROM bugs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bugs []*Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

// --- solutions ---

func (s *SQLite) AddSolution(ctx context.Context, sol *Solution, failed []*FailedApproach) error {
	if err := ValidateSteps(sol.Steps); err != nil {
		return err
	}
	if sol.ID == "" {
		sol.ID = NewID()
	}
	if sol.CreatedAt.IsZero() {
		sol.CreatedAt = time.Now().UTC()
	}
	if sol.Source == "" {
		sol.Source = SourceAgentVerified
	}
	steps, err := json.Marshal(sol.Steps)
	if err != nil {
		return err
	}
	constraints, err := encodeMap(sol.VersionConstraints)
	if err != nil {
		return err
	}
	warnings, err := encodeList(sol.Warnings)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO solutions (id, bug_id, contributed_by, approach_name, steps,
			diff_patch, success_rate, total_attempts, success_count, failure_count,
			avg_resolution_ms, version_constraints, warnings, source, created_at, last_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sol.ID, sol.BugID, sol.ContributedBy, sol.ApproachName, string(steps),
		sol.DiffPatch, sol.SuccessRate, sol.TotalAttempts, sol.SuccessCount, sol.FailureCount,
		sol.AvgResolutionMs, constraints, warnings, string(sol.Source),
		sol.CreatedAt.Unix(), unixOrZero(sol.LastVerified))
	if err != nil {
		return err
	}

	for _, fa := range failed {
		if fa.ID == "" {
			fa.ID = NewID()
		}
		fa.BugID = sol.BugID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO failed_approaches (id, bug_id, approach_name, command_or_action,
				failure_rate, common_followup_error, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fa.ID, fa.BugID, fa.ApproachName, fa.CommandOrAction,
			fa.FailureRate, fa.CommonFollowupError, fa.Reason)
		if err != nil {
			return err
		}
	}

	// Denormalized counters, maintained incrementally on insert.
	if _, err = tx.ExecContext(ctx,
		`UPDATE bugs SET solution_count = solution_count + 1 WHERE id = ?`, sol.BugID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE agents SET total_contributions = total_contributions + 1 WHERE id = ?`, sol.ContributedBy); err != nil {
		return err
	}

	return tx.Commit()
}

const solutionColumns = `s.id, s.bug_id, s.contributed_by, s.approach_name, s.steps,
	s.diff_patch, s.success_rate, s.total_attempts, s.success_count, s.failure_count,
	s.avg_resolution_ms, s.version_constraints, s.warnings, s.source, s.created_at, s.last_verified,
	a.id, a.provider, a.model, a.display_name, a.api_key_hash,
	a.reputation_score, a.total_contributions, a.total_verifications, a.created_at`

const solutionFrom = ` FROM solutions s JOIN agents a ON a.id = s.contributed_by`

func scanSolution(row interface{ Scan(...any) error }) (*Solution, error) {
	var sol Solution
	var contributor Agent
	var steps, constraints, warnings, source string
	var createdAt, lastVerified, agentCreatedAt int64
	err := row.Scan(&sol.ID, &sol.BugID, &sol.ContributedBy, &sol.ApproachName, &steps,
		&sol.DiffPatch, &sol.SuccessRate, &sol.TotalAttempts, &sol.SuccessCount, &sol.FailureCount,
		&sol.AvgResolutionMs, &constraints, &warnings, &source, &createdAt, &lastVerified,
		&contributor.ID, &contributor.Provider, &contributor.Model, &contributor.DisplayName,
		&contributor.APIKeyHash, &contributor.ReputationScore, &contributor.TotalContributions,
		&contributor.TotalVerifications, &agentCreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &sol.Steps); err != nil {
		return nil, fmt.Errorf("decoding solution steps: %w", err)
	}
	if err := json.Unmarshal([]byte(constraints), &sol.VersionConstraints); err != nil {
		return nil, fmt.Errorf("decoding version constraints: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &sol.Warnings); err != nil {
		return nil, fmt.Errorf("decoding warnings: %w", err)
	}
	sol.Source = SolutionSource(source)
	sol.CreatedAt = time.Unix(createdAt, 0).UTC()
	sol.LastVerified = timeOrZero(lastVerified)
	contributor.CreatedAt = time.Unix(agentCreatedAt, 0).UTC()
	sol.Contributor = &contributor
	return &sol, nil
}

func (s *SQLite) GetSolution(ctx context.Context, id string) (*Solution, error) {
	sol, err := scanSolution(s.db.QueryRowContext(ctx,
		`SELECT `+solutionColumns+solutionFrom+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("solution %s: %w", id, ErrNotFound)
	}
	return sol, err
}

func (s *SQLite) querySolutions(ctx context.Context, where string, args ...any) ([]*Solution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+solutionColumns+solutionFrom+` `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []*Solution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		solutions = append(solutions, sol)
	}
	return solutions, rows.Err()
}

func (s *SQLite) SolutionsForBug(ctx context.Context, bugID string) ([]*Solution, error) {
	return s.querySolutions(ctx, `WHERE s.bug_id = ? ORDER BY s.created_at, s.id`, bugID)
}

func (s *SQLite) SolutionsByContributor(ctx context.Context, agentID string) ([]*Solution, error) {
	return s.querySolutions(ctx, `WHERE s.contributed_by = ? ORDER BY s.created_at, s.id`, agentID)
}

func (s *SQLite) StaleSolutions(ctx context.Context, verifiedBefore time.Time) ([]*Solution, error) {
	return s.querySolutions(ctx,
		`WHERE s.total_attempts > 0 AND s.last_verified > 0 AND s.last_verified < ?`,
		verifiedBefore.Unix())
}

func (s *SQLite) UpdateSolutionStats(ctx context.Context, sol *Solution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE solutions SET success_rate = ?, total_attempts = ?, success_count = ?,
			failure_count = ?, avg_resolution_ms = ?, last_verified = ?
		WHERE id = ?`,
		sol.SuccessRate, sol.TotalAttempts, sol.SuccessCount,
		sol.FailureCount, sol.AvgResolutionMs, unixOrZero(sol.LastVerified), sol.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("solution %s: %w", sol.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) FailedApproachesForBug(ctx context.Context, bugID string) ([]*FailedApproach, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bug_id, approach_name, command_or_action, failure_rate,
			common_followup_error, reason
		FROM failed_approaches WHERE bug_id = ? ORDER BY id`, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approaches []*FailedApproach
	for rows.Next() {
		var fa FailedApproach
		err := rows.Scan(&fa.ID, &fa.BugID, &fa.ApproachName, &fa.CommandOrAction,
			&fa.FailureRate, &fa.CommonFollowupError, &fa.Reason)
		if err != nil {
			return nil, err
		}
		approaches = append(approaches, &fa)
	}
	return approaches, rows.Err()
}

// --- verifications ---

func (s *SQLite) RecordVerification(ctx context.Context, v *Verification, sol *Solution) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	contextJSON, err := encodeMap(v.Context)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verifications (id, solution_id, agent_id, success, context,
			resolution_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SolutionID, v.AgentID, v.Success, contextJSON,
		v.ResolutionTimeMs, v.CreatedAt.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE solutions SET success_rate = ?, total_attempts = ?, success_count = ?,
			failure_count = ?, avg_resolution_ms = ?, last_verified = ?
		WHERE id = ?`,
		sol.SuccessRate, sol.TotalAttempts, sol.SuccessCount,
		sol.FailureCount, sol.AvgResolutionMs, unixOrZero(sol.LastVerified), sol.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE agents SET total_verifications = total_verifications + 1 WHERE id = ?`, v.AgentID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) CountVerificationsBy(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifications WHERE agent_id = ?`, agentID).Scan(&n)
	return n, err
}

// --- aggregates ---

func (s *SQLite) DistinctErrorTypesSolved(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT b.error_type)
		FROM solutions s JOIN bugs b ON b.id = s.bug_id
		WHERE s.contributed_by = ?`, agentID).Scan(&n)
	return n, err
}

func (s *SQLite) DomainExpertise(ctx context.Context, agentID string) ([]DomainStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.error_type, COUNT(s.id), AVG(s.success_rate)
		FROM solutions s JOIN bugs b ON b.id = s.bug_id
		WHERE s.contributed_by = ? AND s.total_attempts >= 3
		GROUP BY b.error_type
		ORDER BY b.error_type`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DomainStat
	for rows.Next() {
		var ds DomainStat
		if err := rows.Scan(&ds.ErrorType, &ds.SolutionCount, &ds.AvgSuccessRate); err != nil {
			return nil, err
		}
		stats = append(stats, ds)
	}
	return stats, rows.Err()
}

func (s *SQLite) AvgSuccessRateBy(ctx context.Context, agentID string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(success_rate) FROM solutions
		WHERE contributed_by = ? AND total_attempts > 0`, agentID).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

func (s *SQLite) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	var ps PlatformStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM agents),
			(SELECT COUNT(*) FROM bugs),
			(SELECT COUNT(*) FROM solutions),
			(SELECT COUNT(*) FROM verifications),
			(SELECT AVG(success_rate) FROM solutions WHERE total_attempts > 0)
	`).Scan(&ps.TotalAgents, &ps.TotalBugs, &ps.TotalSolutions, &ps.TotalVerifications, &avg)
	if err != nil {
		return nil, err
	}
	ps.AvgSuccessRate = round4(avg.Float64)
	return &ps, nil
}

func (s *SQLite) SolutionAnalytics(ctx context.Context) (*SolutionAnalytics, error) {
	var sa SolutionAnalytics
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM solutions),
			(SELECT COUNT(*) FROM solutions WHERE total_attempts > 0),
			(SELECT AVG(success_rate) FROM solutions WHERE total_attempts > 0),
			(SELECT COUNT(*) FROM verifications),
			(SELECT COUNT(*) FROM verifications WHERE success = 1),
			(SELECT COUNT(*) FROM solutions WHERE total_attempts >= 5 AND success_rate < 0.3)
	`).Scan(&sa.TotalSolutions, &sa.VerifiedSolutions, &avg,
		&sa.TotalVerifications, &sa.SuccessfulVerifications, &sa.LowPerformingSolutions)
	if err != nil {
		return nil, err
	}
	sa.UnverifiedSolutions = sa.TotalSolutions - sa.VerifiedSolutions
	sa.FailedVerifications = sa.TotalVerifications - sa.SuccessfulVerifications
	sa.AvgSuccessRate = round4(avg.Float64)
	return &sa, nil
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func encodeMap(v map[string]string) (string, error) {
	if v == nil {
		v = map[string]string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := new(bytes.Buffer)
	buf.Grow(4 * len(v))
	for _, f := range v {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

func repeatPlaceholder(n int) string {
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, ",?"...)
	}
	return string(out)
}
