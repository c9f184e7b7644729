package embeddings

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackDeterministic(t *testing.T) {
	ctx := context.Background()
	f := NewFallback(384)

	a, err := f.EmbedQuery(ctx, "TypeError: x is not a function")
	require.NoError(t, err)
	b, err := f.EmbedQuery(ctx, "TypeError: x is not a function")
	require.NoError(t, err)
	c, err := f.EmbedQuery(ctx, "ImportError: no module named foo")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must map to the same vector")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 384)
}

func TestFallbackUnitNorm(t *testing.T) {
	f := NewFallback(64)
	vec, err := f.EmbedQuery(context.Background(), "some error text")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestFallbackRejectsEmptyInput(t *testing.T) {
	f := NewFallback(16)
	_, err := f.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = f.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestServiceEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`[[0.1, 0.2, 0.3]]`))
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Model: "bge-small"})
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 384, svc.Dimension())
}

func TestServiceEmbedDocumentsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[0.1]]`))
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestServiceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

type failingProvider struct{ dim int }

func (p *failingProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}
func (p *failingProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}
func (p *failingProvider) Dimension() int { return p.dim }
func (p *failingProvider) Close() error   { return nil }

func TestResilientDegradesToFallback(t *testing.T) {
	ctx := context.Background()
	r := NewResilient(&failingProvider{dim: 32}, nil)

	vec, err := r.EmbedQuery(ctx, "TypeError: boom")
	require.NoError(t, err)
	assert.Len(t, vec, 32)

	// Degraded vectors are still deterministic.
	again, err := r.EmbedQuery(ctx, "TypeError: boom")
	require.NoError(t, err)
	assert.Equal(t, vec, again)

	vecs, err := r.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
