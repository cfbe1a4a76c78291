// Package models defines core data structures for papers, anchors, and rank requests.
package models

import (
	"strings"
	"time"
)

// Paper holds the metadata of a single arXiv paper as produced by the feed layer.
// RelevanceScore is set by the matcher for the duration of one rank call and is
// not part of the paper's identity.
type Paper struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract"`
	Authors        []string  `json:"authors"`
	Categories     []string  `json:"categories"`
	Published      time.Time `json:"published"`
	Updated        time.Time `json:"updated"`
	Link           string    `json:"link"`
	PDFLink        string    `json:"pdf_link,omitempty"`
	RelevanceScore float64   `json:"relevance_score,omitempty"`
}

// EmbeddingText returns the text that represents this paper for embedding:
// title and abstract separated by a blank line. When the abstract is empty,
// the title alone is used.
func (p *Paper) EmbeddingText() string {
	title := strings.TrimSpace(p.Title)
	abstract := strings.TrimSpace(p.Abstract)
	if abstract == "" {
		return title
	}
	return title + "\n\n" + abstract
}
