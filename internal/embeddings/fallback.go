package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// Fallback produces deterministic pseudo-embeddings derived from the SHA-256
// of the input text. The same text always maps to the same unit vector, so
// exact duplicates still cluster perfectly, while unrelated texts land in
// effectively random directions. It exists to keep the search path alive when
// no embedding server is reachable, not to provide semantic similarity.
type Fallback struct {
	dimension int
	metrics   *Metrics
}

// NewFallback creates a fallback provider emitting vectors of the given
// dimension.
func NewFallback(dimension int) *Fallback {
	if dimension <= 0 {
		dimension = 384
	}
	return &Fallback{dimension: dimension, metrics: sharedMetrics()}
}

// EmbedQuery returns the deterministic vector for text.
func (f *Fallback) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	f.metrics.RecordGeneration("fallback", "embed_query", 0, 1, nil)
	return f.vector(text), nil
}

// EmbedDocuments returns the deterministic vectors for texts.
func (f *Fallback) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	f.metrics.RecordGeneration("fallback", "embed_documents", 0, len(texts), nil)

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

// vector expands the text's SHA-256 digest into a unit vector by rehashing
// the digest chain until enough bytes are produced.
func (f *Fallback) vector(text string) []float32 {
	vec := make([]float32, f.dimension)
	digest := sha256.Sum256([]byte(text))

	var norm float64
	for i := 0; i < f.dimension; i++ {
		if i%8 == 0 && i > 0 {
			digest = sha256.Sum256(digest[:])
		}
		bits := binary.LittleEndian.Uint32(digest[(i%8)*4 : (i%8)*4+4])
		// Map to [-1, 1).
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Dimension returns the configured vector dimension.
func (f *Fallback) Dimension() int {
	return f.dimension
}

// Close is a no-op.
func (f *Fallback) Close() error {
	return nil
}
