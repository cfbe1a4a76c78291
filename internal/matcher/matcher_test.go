package matcher

import (
	"context"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/embedding"
	"github.com/dawenl/arxiv-agent/internal/models"
)

// stubEmbedder returns fixed vectors per text so scores are exact.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for %q", embedding.ErrUnavailable, text)
	}
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string { return "stub" }
func (s *stubEmbedder) Dimensions() int   { return 2 }
func (s *stubEmbedder) Close() error      { return nil }

func newTestMatcher(t *testing.T, vectors map[string][]float32) *Matcher {
	t.Helper()
	cache := embedding.NewDiskCache(t.TempDir(), "stub", zap.NewNop())
	return New(&stubEmbedder{vectors: vectors}, cache, zap.NewNop())
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCosineSimilarity_Unnormalized(t *testing.T) {
	// magnitude must not matter
	got := CosineSimilarity([]float32{3, 0}, []float32{7, 0})
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestRank_EmptyAnchors(t *testing.T) {
	m := newTestMatcher(t, nil)
	papers := []*models.Paper{{ID: "p1", Title: "T", Abstract: "A"}}

	got, err := m.Rank(context.Background(), papers, nil, models.RankOptions{Threshold: 0.35, Limit: 50})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got == nil {
		t.Fatal("expected empty non-nil result")
	}
	if len(got) != 0 {
		t.Errorf("got %d papers, want 0", len(got))
	}
}

func TestRank(t *testing.T) {
	anchor := &models.Anchor{
		ID:   "a1",
		Kind: models.KindTopic,
		Text: "reinforcement learning for robotics",
	}
	near := &models.Paper{ID: "2401.00001", Title: "Robot Policies", Abstract: "RL methods."}
	far := &models.Paper{ID: "2401.00002", Title: "Unrelated", Abstract: "Something else."}
	mid := &models.Paper{ID: "2401.00003", Title: "Halfway", Abstract: "Partly related."}

	m := newTestMatcher(t, map[string][]float32{
		anchor.Text:          {1, 0},
		near.EmbeddingText(): {0.8, 0.6},
		far.EmbeddingText():  {0, 1},
		mid.EmbeddingText():  {0.6, 0.8},
	})

	got, err := m.Rank(context.Background(),
		[]*models.Paper{far, mid, near},
		[]*models.Anchor{anchor},
		models.RankOptions{Threshold: 0.5, Limit: 50})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d papers, want 2", len(got))
	}
	if got[0].ID != near.ID || got[1].ID != mid.ID {
		t.Errorf("order: got %s, %s", got[0].ID, got[1].ID)
	}
	if math.Abs(got[0].RelevanceScore-0.8) > 1e-6 {
		t.Errorf("score: got %v, want 0.8", got[0].RelevanceScore)
	}
}

func TestRank_Limit(t *testing.T) {
	anchor := &models.Anchor{ID: "a1", Kind: models.KindTopic, Text: "anything"}
	vectors := map[string][]float32{anchor.Text: {1, 0}}
	var papers []*models.Paper
	for i := 0; i < 5; i++ {
		p := &models.Paper{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("T%d", i), Abstract: "x"}
		vectors[p.EmbeddingText()] = []float32{1, 0}
		papers = append(papers, p)
	}
	m := newTestMatcher(t, vectors)

	got, err := m.Rank(context.Background(), papers, []*models.Anchor{anchor},
		models.RankOptions{Threshold: 0.5, Limit: 2})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d papers, want 2", len(got))
	}
	// equal scores keep input order
	if got[0].ID != "p0" || got[1].ID != "p1" {
		t.Errorf("order: got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestRank_MaxOverAnchors(t *testing.T) {
	a1 := &models.Anchor{ID: "a1", Kind: models.KindTopic, Text: "first interest"}
	a2 := &models.Anchor{ID: "a2", Kind: models.KindTopic, Text: "second interest"}
	p := &models.Paper{ID: "p1", Title: "T", Abstract: "x"}

	m := newTestMatcher(t, map[string][]float32{
		a1.Text:           {1, 0},
		a2.Text:           {0, 1},
		p.EmbeddingText(): {0, 1},
	})

	got, err := m.Rank(context.Background(), []*models.Paper{p},
		[]*models.Anchor{a1, a2}, models.RankOptions{Threshold: 0.9, Limit: 10})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	// matches a2 perfectly even though a1 is orthogonal
	if len(got) != 1 {
		t.Fatalf("got %d papers, want 1", len(got))
	}
	if math.Abs(got[0].RelevanceScore-1) > 1e-6 {
		t.Errorf("score: got %v, want 1", got[0].RelevanceScore)
	}
}

func TestRank_EmbedderFailure(t *testing.T) {
	anchor := &models.Anchor{ID: "a1", Kind: models.KindTopic, Text: "known"}
	p := &models.Paper{ID: "p1", Title: "unknown", Abstract: "text"}
	m := newTestMatcher(t, map[string][]float32{anchor.Text: {1, 0}})

	_, err := m.Rank(context.Background(), []*models.Paper{p},
		[]*models.Anchor{anchor}, models.RankOptions{Threshold: 0.5, Limit: 10})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFindSimilar_ExcludesReference(t *testing.T) {
	ref := &models.Paper{ID: "p1", Title: "Ref", Abstract: "x"}
	other := &models.Paper{ID: "p2", Title: "Other", Abstract: "y"}

	m := newTestMatcher(t, map[string][]float32{
		ref.EmbeddingText():   {1, 0},
		other.EmbeddingText(): {1, 0},
	})

	got, err := m.FindSimilar(context.Background(), ref,
		[]*models.Paper{ref, other}, models.RankOptions{Threshold: 0.5, Limit: 10})
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("got %v", got)
	}
}

func TestRank_CachesVectors(t *testing.T) {
	anchor := &models.Anchor{ID: "a1", Kind: models.KindTopic, Text: "topic"}
	p := &models.Paper{ID: "p1", Title: "T", Abstract: "x"}
	m := newTestMatcher(t, map[string][]float32{
		anchor.Text:       {1, 0},
		p.EmbeddingText(): {1, 0},
	})

	if _, err := m.Rank(context.Background(), []*models.Paper{p},
		[]*models.Anchor{anchor}, models.RankOptions{Threshold: 0, Limit: 10}); err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if m.CacheSize() != 2 {
		t.Errorf("CacheSize: got %d, want 2", m.CacheSize())
	}
}
