// Package keyword provides Bleve-backed keyword (BM25) search over archived
// papers, complementing the embedding-based ranking for exact-term queries.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/dawenl/arxiv-agent/internal/models"
)

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// paperDoc is the shape indexed per paper.
type paperDoc struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Index wraps a Bleve index over paper titles and abstracts.
type Index struct {
	index bleve.Index
}

// Open creates or opens a Bleve index at path. An existing index is reused;
// if the mapping in code changes, remove the index directory to force a
// rebuild.
func Open(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries like
	// "bayes" match the exact word rather than a stemmed form.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("abstract", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	im.AddDocumentMapping("paper", docMapping)
	im.DefaultType = "paper"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexPaper adds or updates a paper in the index.
func (idx *Index) IndexPaper(ctx context.Context, p *models.Paper) error {
	return idx.index.Index(p.ID, paperDoc{ID: p.ID, Title: p.Title, Abstract: p.Abstract})
}

// IndexAll indexes a batch of papers.
func (idx *Index) IndexAll(ctx context.Context, papers []*models.Paper) error {
	batch := idx.index.NewBatch()
	for _, p := range papers {
		if err := batch.Index(p.ID, paperDoc{ID: p.ID, Title: p.Title, Abstract: p.Abstract}); err != nil {
			return err
		}
	}
	return idx.index.Batch(batch)
}

// Search runs a match query over title and abstract, returning up to limit
// hits in score order.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := idx.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a paper from the index.
func (idx *Index) Delete(ctx context.Context, id string) error {
	return idx.index.Delete(id)
}

// DocCount returns the number of indexed papers.
func (idx *Index) DocCount() (uint64, error) {
	return idx.index.DocCount()
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.index.Close()
}
