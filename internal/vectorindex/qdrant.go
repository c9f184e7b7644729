package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Qdrant implements Index against a Qdrant server over gRPC.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	logger     *zap.Logger
}

// NewQdrant connects to Qdrant and ensures the collection exists.
func NewQdrant(ctx context.Context, cfg Config, logger *zap.Logger) (*Qdrant, error) {
	cfg.ApplyDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", cfg.Collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
		}
	}

	logger.Info("qdrant index ready",
		zap.String("collection", cfg.Collection),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	return &Qdrant{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		logger:     logger.Named("vectorindex"),
	}, nil
}

// Upsert inserts or replaces a bug's point.
func (q *Qdrant) Upsert(ctx context.Context, e Entry) error {
	if e.BugID == "" {
		return fmt.Errorf("%w: bug ID required", ErrInvalidVector)
	}
	if len(e.Vector) != q.vectorSize {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(e.Vector), q.vectorSize)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(e.BugID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"bug_id":         e.BugID,
				"error_type":     e.ErrorType,
				"solution_count": int64(e.SolutionCount),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting bug %s: %w", e.BugID, err)
	}
	return nil
}

// Query returns up to k solved bugs nearest to the vector.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, errorType string) ([]Hit, error) {
	if len(vector) != q.vectorSize {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(vector), q.vectorSize)
	}
	if k <= 0 {
		return nil, nil
	}

	must := []*qdrant.Condition{
		qdrant.NewRange("solution_count", &qdrant.Range{Gt: qdrant.PtrOf(0.0)}),
	}
	if errorType != "" {
		must = append(must, qdrant.NewMatch("error_type", errorType))
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		bugID := point.Payload["bug_id"].GetStringValue()
		if bugID == "" {
			continue
		}
		hits = append(hits, Hit{BugID: bugID, Similarity: point.Score})
	}
	return hits, nil
}

// Delete removes a bug's point.
func (q *Qdrant) Delete(ctx context.Context, bugID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(bugID)),
	})
	if err != nil {
		return fmt.Errorf("deleting bug %s: %w", bugID, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
