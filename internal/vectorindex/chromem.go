package vectorindex

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// Chromem implements Index on chromem-go, an embedded vector database. With
// no path configured it runs fully in memory; with one, entries persist as
// gob files under the directory.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	vectorSize int
	logger     *zap.Logger
}

// NewChromem creates a chromem-backed index.
func NewChromem(cfg Config, logger *zap.Logger) (*Chromem, error) {
	cfg.ApplyDefaults()

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
	}

	// Embeddings are always supplied by the caller; the embedding func must
	// never run.
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
	}

	logger.Info("chromem index ready",
		zap.String("collection", cfg.Collection),
		zap.String("path", cfg.Path),
		zap.Int("vector_size", cfg.VectorSize),
	)

	return &Chromem{
		db:         db,
		collection: collection,
		vectorSize: cfg.VectorSize,
		logger:     logger.Named("vectorindex"),
	}, nil
}

func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("index entries must carry precomputed embeddings")
}

// Upsert inserts or replaces a bug's entry.
func (c *Chromem) Upsert(ctx context.Context, e Entry) error {
	if e.BugID == "" {
		return fmt.Errorf("%w: bug ID required", ErrInvalidVector)
	}
	if len(e.Vector) != c.vectorSize {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(e.Vector), c.vectorSize)
	}

	doc := chromem.Document{
		ID:        e.BugID,
		Content:   e.BugID,
		Embedding: e.Vector,
		Metadata: map[string]string{
			"error_type":     e.ErrorType,
			"has_solutions":  strconv.FormatBool(e.SolutionCount > 0),
			"solution_count": strconv.Itoa(e.SolutionCount),
		},
	}
	if err := c.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("upserting bug %s: %w", e.BugID, err)
	}
	return nil
}

// Query returns up to k solved bugs nearest to the vector.
func (c *Chromem) Query(ctx context.Context, vector []float32, k int, errorType string) ([]Hit, error) {
	if len(vector) != c.vectorSize {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(vector), c.vectorSize)
	}

	// chromem rejects nResults above the collection size.
	if count := c.collection.Count(); count < k {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	where := map[string]string{"has_solutions": "true"}
	if errorType != "" {
		where["error_type"] = errorType
	}

	results, err := c.collection.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, Hit{BugID: res.ID, Similarity: res.Similarity})
	}
	return hits, nil
}

// Delete removes a bug from the index.
func (c *Chromem) Delete(ctx context.Context, bugID string) error {
	if err := c.collection.Delete(ctx, nil, nil, bugID); err != nil {
		return fmt.Errorf("deleting bug %s: %w", bugID, err)
	}
	return nil
}

// Close is a no-op; chromem persists on write.
func (c *Chromem) Close() error {
	return nil
}
