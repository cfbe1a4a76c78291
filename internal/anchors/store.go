// Package anchors provides durable storage of research-interest anchors.
package anchors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/models"
	"github.com/dawenl/arxiv-agent/pkg/utils"
)

// topicIDLength is the length of generated topic anchor ids.
const topicIDLength = 8

// defaultTitleLength caps the display title derived from a topic's text.
const defaultTitleLength = 50

// document is the persisted shape of the anchor collection. UpdatedAt is set
// on save, ExportedAt on export; import accepts either.
type document struct {
	Anchors    []*models.Anchor `json:"anchors"`
	UpdatedAt  string           `json:"updated_at,omitempty"`
	ExportedAt string           `json:"exported_at,omitempty"`
}

// Store manages the anchor collection backed by a single JSON file. Every
// mutation rewrites the whole file through a temp-file rename before
// returning, so a successful return means the state is durable. The store is
// single-writer; two processes mutating the same file can lose updates.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.RWMutex
	items  []*models.Anchor
}

// NewStore opens the store at path, loading any existing collection. A
// corrupt or unreadable file is logged and treated as empty: a fresh install
// and a damaged one are equally recoverable to an empty interest set.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{path: path, logger: logger}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("anchor file unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		s.items = nil
		return
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("anchor file corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		s.items = nil
		return
	}
	s.items = doc.Anchors
}

// Reload re-reads the collection from disk, replacing the in-memory state.
// Used by the server when another process rewrote the anchor file.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
}

// saveLocked writes the whole collection to a temp file and renames it over
// the target. Caller holds mu.
func (s *Store) saveLocked() error {
	doc := document{
		Anchors:   s.items,
		UpdatedAt: time.Now().Format(time.RFC3339),
	}
	return writeDocument(s.path, &doc)
}

func writeDocument(path string, doc *document) error {
	if doc.Anchors == nil {
		doc.Anchors = []*models.Anchor{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding anchors: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing anchors: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming anchors: %w", err)
	}
	return nil
}

// AddTopic creates a new topic anchor. Topics are never deduplicated by
// content; every call creates a fresh anchor. An empty title defaults to the
// start of the topic text.
func (s *Store) AddTopic(text, title string) (*models.Anchor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("topic text must not be empty")
	}
	if title == "" {
		title = utils.Truncate(text, defaultTitleLength)
	}
	anchor := &models.Anchor{
		ID:      uuid.NewString()[:topicIDLength],
		Kind:    models.KindTopic,
		Text:    text,
		Title:   title,
		AddedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, anchor)
	if err := s.saveLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return nil, err
	}
	return anchor, nil
}

// AddPaper saves a paper as an anchor. The anchor id is the paper's own id,
// so saving the same paper twice returns the existing anchor without
// creating a duplicate or rewriting the file.
func (s *Store) AddPaper(paper *models.Paper) (*models.Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.items {
		if a.ID == paper.ID {
			return a, nil
		}
	}

	anchor := &models.Anchor{
		ID:      paper.ID,
		Kind:    models.KindPaper,
		Text:    paper.EmbeddingText(),
		Title:   paper.Title,
		AddedAt: time.Now(),
	}
	s.items = append(s.items, anchor)
	if err := s.saveLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return nil, err
	}
	return anchor, nil
}

// Remove deletes the anchor with the given id. Returns true and persists when
// the anchor existed; returns false without touching the file otherwise.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.items {
		if a.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			if err := s.saveLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Get returns the anchor with the given id, or nil.
func (s *Store) Get(id string) *models.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.items {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// All returns a copy of the full collection in insertion order.
func (s *Store) All() []*models.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Anchor, len(s.items))
	copy(out, s.items)
	return out
}

// Topics returns all topic anchors.
func (s *Store) Topics() []*models.Anchor {
	return s.filter(models.KindTopic)
}

// Papers returns all paper anchors.
func (s *Store) Papers() []*models.Anchor {
	return s.filter(models.KindPaper)
}

func (s *Store) filter(kind models.AnchorKind) []*models.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Anchor
	for _, a := range s.items {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the number of anchors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ClearAll empties the collection and persists.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.items
	s.items = nil
	if err := s.saveLocked(); err != nil {
		s.items = old
		return err
	}
	return nil
}

// Export writes the full collection plus an export timestamp to path.
func (s *Store) Export(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := document{
		Anchors:    s.items,
		ExportedAt: time.Now().Format(time.RFC3339),
	}
	return writeDocument(path, &doc)
}

// Import reads an anchor collection from path. With merge, only anchors whose
// id is not already present are appended and the count added is returned; the
// file is rewritten only when something was added. Without merge the imported
// collection replaces the current one entirely — a destructive action the
// caller must flag. Read or parse failures are returned to the caller; no
// partial merge happens.
func (s *Store) Import(path string, merge bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading import file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parsing import file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !merge {
		old := s.items
		s.items = doc.Anchors
		if err := s.saveLocked(); err != nil {
			s.items = old
			return 0, err
		}
		return len(doc.Anchors), nil
	}

	existing := make(map[string]bool, len(s.items))
	for _, a := range s.items {
		existing[a.ID] = true
	}
	old := s.items
	added := 0
	for _, a := range doc.Anchors {
		if existing[a.ID] {
			continue
		}
		s.items = append(s.items, a)
		existing[a.ID] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		s.items = old
		return 0, err
	}
	return added, nil
}
