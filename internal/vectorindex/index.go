// Package vectorindex maintains the nearest-neighbor index over bug
// embeddings used by the semantic search phase.
//
// The default backend is chromem-go, an embedded pure-Go vector database
// needing no external service. A Qdrant backend is available for deployments
// that already run one.
package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid index configuration.
	ErrInvalidConfig = errors.New("invalid vector index configuration")

	// ErrInvalidVector indicates a vector of the wrong shape.
	ErrInvalidVector = errors.New("invalid vector")
)

// Entry is one indexed bug.
type Entry struct {
	BugID         string
	Vector        []float32
	ErrorType     string
	SolutionCount int
}

// Hit is one query result, best-first.
type Hit struct {
	BugID      string
	Similarity float32
}

// Index is the nearest-neighbor index over bug embeddings.
//
// Queries only return bugs that have at least one solution; bugs are indexed
// on creation so re-reported errors converge on the same record, but an
// unsolved bug is never a useful search result.
type Index interface {
	// Upsert inserts or replaces a bug's index entry.
	Upsert(ctx context.Context, e Entry) error

	// Query returns up to k bugs with solutions nearest to the vector,
	// best-first, optionally restricted to one error type. Similarity is
	// cosine, in [0, 1].
	Query(ctx context.Context, vector []float32, k int, errorType string) ([]Hit, error)

	// Delete removes a bug from the index. Deleting an unindexed bug is not
	// an error.
	Delete(ctx context.Context, bugID string) error

	// Close releases the index.
	Close() error
}

// Config selects and configures the index backend.
type Config struct {
	// Provider is "chromem" or "qdrant".
	Provider string

	// Path is the chromem persistence directory; empty means in-memory.
	Path string

	// Compress enables gzip compression for persisted chromem data.
	Compress bool

	// Host and Port locate the Qdrant gRPC endpoint.
	Host string
	Port int

	// Collection is the collection name. Default "fixd_bugs".
	Collection string

	// VectorSize is the embedding dimension. Default 384.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "fixd_bugs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// New creates an index for the configured backend.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Index, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "chromem":
		return NewChromem(cfg, logger)
	case "qdrant":
		return NewQdrant(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
