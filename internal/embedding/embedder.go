// Package embedding provides text embedding providers and a persistent,
// model-scoped embedding cache.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding backend failed or cannot be reached.
// A rank cycle must abort when it surfaces; there is no partial-score fallback.
var ErrUnavailable = errors.New("embedding model unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for texts, in matching order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// ModelName identifies the embedding model. Cache files are scoped by it.
	ModelName() string
	// Dimensions returns the expected vector dimensions.
	Dimensions() int
	Close() error
}
