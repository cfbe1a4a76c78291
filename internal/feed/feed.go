// Package feed fetches and parses arXiv RSS category feeds.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/models"
)

// baseURL is a var so tests can point the fetcher at a local server.
var baseURL = "https://rss.arxiv.org/rss"

const defaultTimeout = 30 * time.Second

// CategoryFeedURL returns the RSS URL for an arXiv category.
func CategoryFeedURL(category string) string {
	return fmt.Sprintf("%s/%s", baseURL, category)
}

// Fetcher downloads arXiv category feeds and converts them to papers.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a Fetcher with the given HTTP timeout. A zero timeout
// uses the default of 30 seconds.
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// rss mirrors the arXiv RSS 2.0 document structure.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title        string   `xml:"title"`
	Link         string   `xml:"link"`
	Description  string   `xml:"description"`
	GUID         string   `xml:"guid"`
	PubDate      string   `xml:"pubDate"`
	Creators     []string `xml:"creator"`
	Categories   []string `xml:"category"`
	AnnounceType string   `xml:"announce_type"`
}

// arxivIDPattern matches an arXiv identifier like 2401.12345 or
// 2401.12345v2, optionally preceded by "abs/" in a URL.
var arxivIDPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)

// htmlTagPattern strips markup left in feed abstracts.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Fetch downloads one category feed and returns its papers. Only fresh
// announcements (announce type "new" or "cross") are kept; replacements and
// withdrawals are skipped.
func (f *Fetcher) Fetch(ctx context.Context, category string) ([]*models.Paper, error) {
	url := CategoryFeedURL(category)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", category, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching feed %s: status %d", category, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed %s: %w", category, err)
	}

	return f.parse(body, category)
}

func (f *Fetcher) parse(data []byte, category string) ([]*models.Paper, error) {
	var doc rss
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", category, err)
	}

	papers := make([]*models.Paper, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		if item.AnnounceType != "" && item.AnnounceType != "new" && item.AnnounceType != "cross" {
			continue
		}
		p := itemToPaper(item)
		if p == nil {
			f.logger.Debug("skipping feed item without arXiv id", zap.String("link", item.Link))
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func itemToPaper(item rssItem) *models.Paper {
	id := extractArxivID(item.Link)
	if id == "" {
		id = extractArxivID(item.GUID)
	}
	if id == "" {
		return nil
	}

	published := parseDate(item.PubDate)
	return &models.Paper{
		ID:         id,
		Title:      normalizeText(item.Title),
		Abstract:   extractAbstract(item.Description),
		Authors:    splitAuthors(item.Creators),
		Categories: item.Categories,
		Published:  published,
		Updated:    published,
		Link:       fmt.Sprintf("https://arxiv.org/abs/%s", id),
		PDFLink:    fmt.Sprintf("https://arxiv.org/pdf/%s", id),
	}
}

// extractArxivID pulls the bare identifier (no version suffix) out of a link
// or guid such as https://arxiv.org/abs/2401.12345v2 or oai:arXiv.org:2401.12345.
func extractArxivID(s string) string {
	m := arxivIDPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// extractAbstract strips the feed's "arXiv:ID Announce Type: ..." preamble
// and any markup, leaving the abstract body as a single normalized line.
func extractAbstract(description string) string {
	text := htmlTagPattern.ReplaceAllString(description, " ")
	if idx := strings.Index(text, "Abstract:"); idx >= 0 {
		text = text[idx+len("Abstract:"):]
	}
	return normalizeText(text)
}

// normalizeText collapses all runs of whitespace to single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitAuthors flattens dc:creator entries, which may hold one author each
// or a comma-separated list.
func splitAuthors(creators []string) []string {
	var authors []string
	for _, c := range creators {
		for _, part := range strings.Split(c, ",") {
			if name := strings.TrimSpace(part); name != "" {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FetchAll downloads every configured category, deduplicates cross-listed
// papers by id, and returns them newest first. A category that fails to
// fetch is logged and skipped so one bad feed does not empty the whole run;
// an error is returned only when every category fails.
func (f *Fetcher) FetchAll(ctx context.Context, categories []string) ([]*models.Paper, error) {
	seen := make(map[string]bool)
	var papers []*models.Paper
	var failures int

	for _, cat := range categories {
		fetched, err := f.Fetch(ctx, cat)
		if err != nil {
			f.logger.Warn("feed fetch failed", zap.String("category", cat), zap.Error(err))
			failures++
			continue
		}
		f.logger.Debug("fetched feed", zap.String("category", cat), zap.Int("papers", len(fetched)))
		for _, p := range fetched {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			papers = append(papers, p)
		}
	}

	if len(categories) > 0 && failures == len(categories) {
		return nil, fmt.Errorf("all %d category feeds failed", failures)
	}

	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].Updated.After(papers[j].Updated)
	})
	return papers, nil
}
