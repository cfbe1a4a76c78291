package embedding

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("anchor:x1", "some text")
	b := Fingerprint("anchor:x1", "some text")
	if a != b {
		t.Errorf("fingerprint not stable: %q vs %q", a, b)
	}
	if Fingerprint("anchor:x1", "other text") == a {
		t.Error("different text should give a different fingerprint")
	}
	if Fingerprint("anchor:x2", "some text") == a {
		t.Error("different scope should give a different fingerprint")
	}
}

func TestDiskCache_GetOrCompute(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()
	cache := NewDiskCache(dir, "test-model", logger)

	calls := 0
	compute := func(ctx context.Context) ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	}

	v, err := cache.GetOrCompute(context.Background(), "k1", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if len(v) != 3 || v[0] != 1 {
		t.Errorf("got %v", v)
	}
	if _, err := cache.GetOrCompute(context.Background(), "k1", compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	// a fresh cache over the same directory sees the persisted entry
	reopened := NewDiskCache(dir, "test-model", logger)
	got, ok := reopened.Get("k1")
	if !ok || len(got) != 3 {
		t.Errorf("reopened cache: got %v, %v", got, ok)
	}
}

func TestDiskCache_ModelScoped(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()
	a := NewDiskCache(dir, "model-a", logger)
	b := NewDiskCache(dir, "model-b", logger)
	if a.Path() == b.Path() {
		t.Errorf("caches for different models share a file: %q", a.Path())
	}
}

func TestDiskCache_BatchGetOrCompute(t *testing.T) {
	dir := t.TempDir()
	cache := NewDiskCache(dir, "test-model", zap.NewNop())

	// pre-populate one entry
	_, err := cache.GetOrCompute(context.Background(), "k1", func(ctx context.Context) ([]float32, error) {
		return []float32{1}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var computedTexts []string
	computeBatch := func(ctx context.Context, texts []string) ([][]float32, error) {
		computedTexts = texts
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(i) + 10}
		}
		return out, nil
	}

	entries := []BatchEntry{
		{Key: "k1", Text: "one"},
		{Key: "k2", Text: "two"},
		{Key: "k3", Text: "three"},
	}
	vectors, err := cache.BatchGetOrCompute(context.Background(), entries, computeBatch)
	if err != nil {
		t.Fatalf("BatchGetOrCompute: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	// only the misses are computed, in entry order
	if len(computedTexts) != 2 || computedTexts[0] != "two" || computedTexts[1] != "three" {
		t.Errorf("computed texts: %v", computedTexts)
	}
	if vectors[0][0] != 1 {
		t.Errorf("cached vector not returned in position 0: %v", vectors[0])
	}
	if vectors[1][0] != 10 || vectors[2][0] != 11 {
		t.Errorf("computed vectors misplaced: %v %v", vectors[1], vectors[2])
	}
	if cache.Len() != 3 {
		t.Errorf("Len: got %d, want 3", cache.Len())
	}
}

func TestDiskCache_BatchCountMismatch(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), "test-model", zap.NewNop())
	computeBatch := func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, nil
	}
	_, err := cache.BatchGetOrCompute(context.Background(), []BatchEntry{{Key: "k", Text: "t"}}, computeBatch)
	if err == nil {
		t.Error("expected error on result count mismatch")
	}
}

func TestDiskCache_ComputeError(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), "test-model", zap.NewNop())
	_, err := cache.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]float32, error) {
		return nil, fmt.Errorf("backend down")
	})
	if err == nil {
		t.Error("expected compute error to propagate")
	}
	if cache.Len() != 0 {
		t.Errorf("failed compute should not be cached, Len=%d", cache.Len())
	}
}
