package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/config"
)

// NewEmbedder constructs the embedding provider selected by cfg.Provider.
// Construction is eager: a provider that cannot be materialized fails here
// rather than on the first embed call. When the ONNX provider cannot be
// created (missing runtime or model file) the mock provider is used instead
// with a warning, so anchor management and fetch stay usable.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "onnx", "":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Model, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, falling back to mock embeddings",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		return e, nil
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions), nil
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (use onnx, ollama, or mock)", cfg.Provider)
	}
}
