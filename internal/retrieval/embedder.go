package retrieval

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/huddleplay/assist/internal/llm"
)

// Embedder wraps an embedding client and enforces the input contract: text
// must be non-empty after trimming, and batch results preserve input order.
type Embedder struct {
	client llm.EmbeddingClient
}

// NewEmbedder creates an Embedder over the given client.
func NewEmbedder(client llm.EmbeddingClient) *Embedder {
	return &Embedder{client: client}
}

// Embed returns the embedding vector for a single text. Empty-after-trim
// input is rejected rather than sent to the provider; a zero vector would
// corrupt similarity rankings downstream.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding: %w", ErrEmptyInput)
	}
	vec, err := e.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding text: provider returned empty vector")
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Result order equals input order. Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
