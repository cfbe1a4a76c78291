package benchmark

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/embedding"
	"github.com/dawenl/arxiv-agent/internal/matcher"
	"github.com/dawenl/arxiv-agent/internal/models"
)

func BenchmarkCosineSimilarity(b *testing.B) {
	a := make([]float32, 384)
	c := make([]float32, 384)
	for i := range a {
		a[i] = float32(i) / 384
		c[i] = float32(384-i) / 384
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = matcher.CosineSimilarity(a, c)
	}
}

func BenchmarkRank(b *testing.B) {
	logger := zap.NewNop()
	embedder := embedding.NewMockEmbedder(384)
	cache := embedding.NewDiskCache(b.TempDir(), embedder.ModelName(), logger)
	m := matcher.New(embedder, cache, logger)
	ctx := context.Background()

	papers := make([]*models.Paper, 200)
	for i := range papers {
		papers[i] = &models.Paper{
			ID:       fmt.Sprintf("2401.%05d", i),
			Title:    fmt.Sprintf("paper number %d", i),
			Abstract: fmt.Sprintf("abstract text for paper %d about various topics", i),
		}
	}
	anchorSet := []*models.Anchor{
		{ID: "a1", Kind: models.KindTopic, Text: "sparse attention transformers"},
		{ID: "a2", Kind: models.KindTopic, Text: "reinforcement learning from feedback"},
	}
	opts := models.RankOptions{Threshold: -1, Limit: 50}

	// Warm the cache so the benchmark measures scoring, not embedding.
	if _, err := m.Rank(ctx, papers, anchorSet, opts); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Rank(ctx, papers, anchorSet, opts); err != nil {
			b.Fatal(err)
		}
	}
}
