// Package search answers "has anyone fixed this error before?".
//
// Retrieval is tiered: an exact structural-hash match short-circuits the
// semantic phase, and the semantic phase is confidence-gated so a weak
// nearest neighbor is reported as a miss rather than a bad suggestion.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/embeddings"
	"github.com/fyrsmithlabs/fixd/internal/fingerprint"
	"github.com/fyrsmithlabs/fixd/internal/ranking"
	"github.com/fyrsmithlabs/fixd/internal/store"
	"github.com/fyrsmithlabs/fixd/internal/vectorindex"
)

// Match types.
const (
	MatchExactHash = "exact_hash"
	MatchSemantic  = "semantic_similar"
)

// Query is one search request.
type Query struct {
	ErrorPattern  string
	ErrorType     string
	AgentProvider string
	AgentModel    string
	Environment   map[string]string
	MaxResults    int
}

// Match is one retrieved bug with its solutions ranked best-first.
type Match struct {
	Bug              *store.Bug              `json:"bug"`
	Solutions        []*store.Solution       `json:"solutions"`
	FailedApproaches []*store.FailedApproach `json:"failed_approaches"`
	MatchType        string                  `json:"match_type"`
	Similarity       float64                 `json:"similarity_score"`
	SearchTimeMs     int64                   `json:"search_time_ms"`
}

// Config holds the retrieval thresholds.
type Config struct {
	// SimilarityFloor is the minimum cosine similarity for a semantic hit.
	SimilarityFloor float64

	// ConfidenceFloor gates the semantic phase as a whole: if the best hit
	// scores below it, the search is a miss.
	ConfidenceFloor float64

	// MaxResults caps results when the query does not set its own limit.
	MaxResults int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.SimilarityFloor == 0 {
		c.SimilarityFloor = 0.75
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = 0.5
	}
	if c.MaxResults == 0 {
		c.MaxResults = 10
	}
}

// Engine is the tiered search engine.
type Engine struct {
	store    store.Store
	index    vectorindex.Index
	embedder embeddings.Provider
	config   Config
	logger   *zap.Logger
}

// NewEngine creates a search engine. The embedding provider is wrapped so a
// provider outage degrades to deterministic fallback vectors instead of
// failing searches.
func NewEngine(st store.Store, idx vectorindex.Index, embedder embeddings.Provider, cfg Config, logger *zap.Logger) *Engine {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    st,
		index:    idx,
		embedder: embeddings.NewResilient(embedder, logger),
		config:   cfg,
		logger:   logger.Named("search"),
	}
}

// Search runs the tiered lookup and returns matches with solutions ranked
// best-first.
func (e *Engine) Search(ctx context.Context, q Query) ([]*Match, error) {
	start := time.Now()
	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > e.config.MaxResults {
		maxResults = e.config.MaxResults
	}

	normalized, hash := fingerprint.Fingerprint(q.ErrorPattern)

	matches, err := e.exactHash(ctx, hash, q)
	if err != nil {
		return nil, err
	}
	phase := phaseExact

	if len(matches) == 0 {
		matches, err = e.semantic(ctx, normalized, q.ErrorType, maxResults)
		if err != nil {
			return nil, err
		}
		phase = phaseSemantic
	}
	if len(matches) == 0 {
		phase = phaseMiss
	}

	rctx := ranking.Context{
		AgentProvider: q.AgentProvider,
		AgentModel:    q.AgentModel,
		Environment:   q.Environment,
	}
	elapsed := time.Since(start).Milliseconds()
	for _, m := range matches {
		m.Solutions = ranking.Rank(m.Solutions, rctx)
		if len(m.Solutions) > maxResults {
			m.Solutions = m.Solutions[:maxResults]
		}
		m.SearchTimeMs = elapsed
	}
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	observeSearch(phase, time.Since(start))
	e.logger.Debug("search completed",
		zap.String("phase", phase),
		zap.Int("matches", len(matches)),
		zap.Int64("elapsed_ms", elapsed),
	)
	return matches, nil
}

// exactHash resolves the structural-hash tier. On a hit, candidate solutions
// come from a three-level specificity ladder: same model, else same provider,
// else every solution on the bug.
func (e *Engine) exactHash(ctx context.Context, hash string, q Query) ([]*Match, error) {
	bug, err := e.store.GetBugByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up hash: %w", err)
	}

	solutions, err := e.store.SolutionsForBug(ctx, bug.ID)
	if err != nil {
		return nil, fmt.Errorf("loading solutions: %w", err)
	}
	if len(solutions) == 0 {
		// A known bug nobody has solved yet; fall through to semantic search
		// for similar solved bugs.
		return nil, nil
	}

	var sameModel, sameProvider []*store.Solution
	for _, sol := range solutions {
		if sol.Contributor == nil {
			continue
		}
		if q.AgentModel != "" && sol.Contributor.Model == q.AgentModel {
			sameModel = append(sameModel, sol)
		}
		if q.AgentProvider != "" && sol.Contributor.Provider == q.AgentProvider {
			sameProvider = append(sameProvider, sol)
		}
	}
	candidates := solutions
	if len(sameModel) > 0 {
		candidates = sameModel
	} else if len(sameProvider) > 0 {
		candidates = sameProvider
	}

	failed, err := e.store.FailedApproachesForBug(ctx, bug.ID)
	if err != nil {
		return nil, fmt.Errorf("loading failed approaches: %w", err)
	}

	return []*Match{{
		Bug:              bug,
		Solutions:        candidates,
		FailedApproaches: failed,
		MatchType:        MatchExactHash,
		Similarity:       1.0,
	}}, nil
}

// semantic resolves the nearest-neighbor tier over solved bugs.
func (e *Engine) semantic(ctx context.Context, normalized, errorType string, maxResults int) ([]*Match, error) {
	vector, err := e.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.index.Query(ctx, vector, maxResults, errorType)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	kept := hits[:0]
	for _, hit := range hits {
		if float64(hit.Similarity) > e.config.SimilarityFloor {
			kept = append(kept, hit)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	// Confidence gate: a weak best match means the whole phase is a miss,
	// not a low-quality answer.
	if float64(kept[0].Similarity) < e.config.ConfidenceFloor {
		e.logger.Debug("semantic results below confidence floor",
			zap.Float32("top_similarity", kept[0].Similarity),
			zap.Float64("floor", e.config.ConfidenceFloor),
		)
		return nil, nil
	}

	matches := make([]*Match, 0, len(kept))
	for _, hit := range kept {
		bug, err := e.store.GetBug(ctx, hit.BugID)
		if errors.Is(err, store.ErrNotFound) {
			// Index and store can briefly disagree; skip the orphan.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading bug %s: %w", hit.BugID, err)
		}
		solutions, err := e.store.SolutionsForBug(ctx, bug.ID)
		if err != nil {
			return nil, fmt.Errorf("loading solutions: %w", err)
		}
		failed, err := e.store.FailedApproachesForBug(ctx, bug.ID)
		if err != nil {
			return nil, fmt.Errorf("loading failed approaches: %w", err)
		}
		matches = append(matches, &Match{
			Bug:              bug,
			Solutions:        solutions,
			FailedApproaches: failed,
			MatchType:        MatchSemantic,
			Similarity:       float64(hit.Similarity),
		})
	}
	return matches, nil
}

// EnsureBug resolves or creates the bug record for an error report, indexing
// it for semantic search. A concurrent insert of the same hash is treated as
// found, not as a failure.
func (e *Engine) EnsureBug(ctx context.Context, errorPattern, errorType string, tags []string, env store.Environment) (*store.Bug, bool, error) {
	normalized, hash := fingerprint.Fingerprint(errorPattern)

	vector, err := e.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return nil, false, fmt.Errorf("embedding bug: %w", err)
	}

	bug, created, err := e.store.EnsureBug(ctx, &store.Bug{
		StructuralHash: hash,
		Embedding:      vector,
		ErrorPattern:   errorPattern,
		ErrorType:      errorType,
		Environment:    env,
		Tags:           tags,
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensuring bug: %w", err)
	}

	if err := e.ReindexBug(ctx, bug); err != nil {
		// The record is durable; the index catches up on the next upsert.
		e.logger.Warn("indexing bug failed", zap.String("bug_id", bug.ID), zap.Error(err))
	}
	return bug, created, nil
}

// ReindexBug refreshes a bug's vector index entry, re-embedding if the stored
// record carries no vector.
func (e *Engine) ReindexBug(ctx context.Context, bug *store.Bug) error {
	vector := bug.Embedding
	if len(vector) == 0 {
		normalized, _ := fingerprint.Fingerprint(bug.ErrorPattern)
		var err error
		vector, err = e.embedder.EmbedQuery(ctx, normalized)
		if err != nil {
			return fmt.Errorf("embedding bug: %w", err)
		}
	}
	return e.index.Upsert(ctx, vectorindex.Entry{
		BugID:         bug.ID,
		Vector:        vector,
		ErrorType:     bug.ErrorType,
		SolutionCount: bug.SolutionCount,
	})
}
