package embeddings

import (
	"context"

	"go.uber.org/zap"
)

// Resilient wraps a primary provider with a deterministic fallback. When the
// primary fails, the request is served from the fallback instead of failing
// the caller; search quality degrades but availability holds.
type Resilient struct {
	primary  Provider
	fallback *Fallback
	logger   *zap.Logger
}

// NewResilient wraps primary with a fallback of matching dimension.
func NewResilient(primary Provider, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{
		primary:  primary,
		fallback: NewFallback(primary.Dimension()),
		logger:   logger.Named("embeddings"),
	}
}

// EmbedQuery embeds via the primary provider, degrading to the fallback on
// error.
func (r *Resilient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.primary.EmbedQuery(ctx, text)
	if err == nil {
		return vec, nil
	}
	r.logger.Warn("primary embedding failed, using fallback", zap.Error(err))
	return r.fallback.EmbedQuery(ctx, text)
}

// EmbedDocuments embeds via the primary provider, degrading to the fallback
// on error.
func (r *Resilient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := r.primary.EmbedDocuments(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	r.logger.Warn("primary embedding failed, using fallback", zap.Error(err), zap.Int("texts", len(texts)))
	return r.fallback.EmbedDocuments(ctx, texts)
}

// Dimension returns the primary provider's dimension.
func (r *Resilient) Dimension() int {
	return r.primary.Dimension()
}

// Close closes the primary provider.
func (r *Resilient) Close() error {
	return r.primary.Close()
}
