// Package matcher scores papers against interest anchors by cosine
// similarity of their embeddings.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/embedding"
	"github.com/dawenl/arxiv-agent/internal/models"
)

// CosineSimilarity returns the cosine similarity of two vectors in [-1, 1].
// Accumulation is done in float64. Returns 0 when either vector has zero norm
// or the lengths differ; it never divides by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Matcher resolves embeddings through the cache and ranks papers against the
// anchor set. Scores are comparable only within one Rank call; they are not
// normalized across different anchor sets.
type Matcher struct {
	embedder embedding.Embedder
	cache    *embedding.DiskCache
	logger   *zap.Logger
}

// New creates a Matcher. The embedder is the sole source of fresh vectors;
// any embedder failure aborts the ranking cycle, since no partial score can
// be trusted.
func New(embedder embedding.Embedder, cache *embedding.DiskCache, logger *zap.Logger) *Matcher {
	return &Matcher{embedder: embedder, cache: cache, logger: logger}
}

// CacheSize returns the number of vectors currently in the disk cache.
func (m *Matcher) CacheSize() int {
	return m.cache.Len()
}

// AnchorVectors resolves the embedding of every anchor, computing and caching
// the missing ones in one batch call.
func (m *Matcher) AnchorVectors(ctx context.Context, anchorSet []*models.Anchor) ([][]float32, error) {
	entries := make([]embedding.BatchEntry, len(anchorSet))
	for i, a := range anchorSet {
		entries[i] = embedding.BatchEntry{
			Key:  embedding.Fingerprint("anchor:"+a.ID, a.Text),
			Text: a.Text,
		}
	}
	vectors, err := m.cache.BatchGetOrCompute(ctx, entries, m.embedder.EmbedBatch)
	if err != nil {
		return nil, fmt.Errorf("embedding anchors: %w", err)
	}
	return vectors, nil
}

// paperVector resolves the embedding of a single paper (cache or compute).
func (m *Matcher) paperVector(ctx context.Context, p *models.Paper) ([]float32, error) {
	key := embedding.Fingerprint("paper:"+p.ID, p.EmbeddingText())
	vec, err := m.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]float32, error) {
		return m.embedder.Embed(ctx, p.EmbeddingText())
	})
	if err != nil {
		return nil, fmt.Errorf("embedding paper %s: %w", p.ID, err)
	}
	return vec, nil
}

// ScorePaper returns the paper's relevance: the maximum similarity against
// any single anchor vector. A paper is relevant when it strongly matches any
// one interest, not the average of all of them.
func (m *Matcher) ScorePaper(ctx context.Context, p *models.Paper, anchorVectors [][]float32) (float64, error) {
	if len(anchorVectors) == 0 {
		return 0, nil
	}
	vec, err := m.paperVector(ctx, p)
	if err != nil {
		return 0, err
	}
	best := math.Inf(-1)
	for _, av := range anchorVectors {
		if sim := CosineSimilarity(vec, av); sim > best {
			best = sim
		}
	}
	return best, nil
}

// Rank scores every paper against the anchor set, keeps those at or above
// threshold with the score attached, sorts by score descending (ties keep
// input order), and truncates to limit. An empty anchor set yields an empty
// result: there is nothing to rank against, and the caller decides whether
// to show papers unranked.
func (m *Matcher) Rank(ctx context.Context, papers []*models.Paper, anchorSet []*models.Anchor, opts models.RankOptions) ([]*models.Paper, error) {
	kept := []*models.Paper{}
	if len(anchorSet) == 0 {
		return kept, nil
	}

	anchorVectors, err := m.AnchorVectors(ctx, anchorSet)
	if err != nil {
		return nil, err
	}

	for _, p := range papers {
		score, err := m.ScorePaper(ctx, p, anchorVectors)
		if err != nil {
			return nil, err
		}
		if score >= opts.Threshold {
			p.RelevanceScore = score
			kept = append(kept, p)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})
	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	m.logger.Debug("ranked papers",
		zap.Int("candidates", len(papers)),
		zap.Int("anchors", len(anchorSet)),
		zap.Int("kept", len(kept)),
		zap.Float64("threshold", opts.Threshold))
	return kept, nil
}

// FindSimilar ranks papers by similarity to a single reference paper's own
// embedding, with the same threshold/sort/limit policy as Rank. The reference
// paper itself is excluded from the results by id.
func (m *Matcher) FindSimilar(ctx context.Context, reference *models.Paper, papers []*models.Paper, opts models.RankOptions) ([]*models.Paper, error) {
	refVec, err := m.paperVector(ctx, reference)
	if err != nil {
		return nil, err
	}

	kept := []*models.Paper{}
	for _, p := range papers {
		if p.ID == reference.ID {
			continue
		}
		vec, err := m.paperVector(ctx, p)
		if err != nil {
			return nil, err
		}
		score := CosineSimilarity(refVec, vec)
		if score >= opts.Threshold {
			p.RelevanceScore = score
			kept = append(kept, p)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})
	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	return kept, nil
}
