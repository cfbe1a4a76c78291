package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Fingerprint returns a stable cache key for text, namespaced by scope
// (e.g. "anchor:<id>" or "paper:<id>"). Two entities with identical text get
// independent slots tied to their logical identity, while a given entity's
// text reuses its slot across runs.
func Fingerprint(scope, text string) string {
	sum := sha256.Sum256([]byte(text))
	digest := hex.EncodeToString(sum[:])[:16]
	if scope == "" {
		return digest
	}
	return scope + "_" + digest
}

// DiskCache is a persistent map from fingerprint to embedding vector. Each
// cache is valid for exactly one embedding model; the backing file name is
// derived from the model identity so switching models never reads stale
// vectors of a different dimension or semantics.
type DiskCache struct {
	path    string
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string][]float32
}

// BatchEntry pairs a cache key with the text to embed on a miss.
type BatchEntry struct {
	Key  string
	Text string
}

// NewDiskCache opens the cache for modelName under dir, loading any existing
// entries. A corrupt or unreadable cache file is treated as empty: a lost
// cache only costs recomputation, never wrong results.
func NewDiskCache(dir, modelName string, logger *zap.Logger) *DiskCache {
	c := &DiskCache{
		path:    filepath.Join(dir, "embeddings_"+sanitizeModelName(modelName)+".json"),
		logger:  logger,
		entries: make(map[string][]float32),
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("embedding cache unreadable, starting empty", zap.String("path", c.path), zap.Error(err))
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		logger.Warn("embedding cache corrupt, starting empty", zap.String("path", c.path), zap.Error(err))
		c.entries = make(map[string][]float32)
	}
	return c
}

// Get returns the cached vector for key if present.
func (c *DiskCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// GetOrCompute returns the cached vector for key, or invokes compute, stores
// and persists the result, and returns it. Persisting on every miss trades
// write amplification for crash-safety.
func (c *DiskCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = v
	err = c.persistLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// BatchGetOrCompute resolves vectors for all entries, invoking computeBatch
// once on the ordered texts of the missing entries and merging the results
// back into the original order. All new vectors are persisted in one write.
func (c *DiskCache) BatchGetOrCompute(ctx context.Context, entries []BatchEntry, computeBatch func(ctx context.Context, texts []string) ([][]float32, error)) ([][]float32, error) {
	vectors := make([][]float32, len(entries))
	var missingTexts []string
	var missingIdx []int
	for i, e := range entries {
		if v, ok := c.Get(e.Key); ok {
			vectors[i] = v
			continue
		}
		missingTexts = append(missingTexts, e.Text)
		missingIdx = append(missingIdx, i)
	}
	if len(missingTexts) == 0 {
		return vectors, nil
	}

	computed, err := computeBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missingTexts) {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d texts", len(computed), len(missingTexts))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, i := range missingIdx {
		vectors[i] = computed[j]
		c.entries[entries[i].Key] = computed[j]
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Len returns the number of cached vectors.
func (c *DiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Path returns the backing file path.
func (c *DiskCache) Path() string {
	return c.path
}

// persistLocked writes all entries to a temp file and renames it over the
// target so a crash mid-write never leaves a truncated cache. Caller holds mu.
func (c *DiskCache) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming cache: %w", err)
	}
	return nil
}

// sanitizeModelName makes a model identity safe for use in a file name.
func sanitizeModelName(model string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(model)
}
