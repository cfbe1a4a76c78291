package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <channel>
    <title>cs.LG updates on arXiv.org</title>
    <item>
      <title>Sparse Attention at Scale</title>
      <link>https://arxiv.org/abs/2401.11111</link>
      <description>arXiv:2401.11111v1 Announce Type: new
Abstract: We study &lt;b&gt;sparse&lt;/b&gt; attention
mechanisms   across long   documents.</description>
      <guid>oai:arXiv.org:2401.11111v1</guid>
      <pubDate>Mon, 05 Feb 2024 00:00:00 -0500</pubDate>
      <dc:creator>Ada Lovelace, Alan Turing</dc:creator>
      <category>cs.LG</category>
      <category>cs.CL</category>
      <arxiv:announce_type>new</arxiv:announce_type>
    </item>
    <item>
      <title>Cross-listed Paper</title>
      <link>https://arxiv.org/abs/2401.22222</link>
      <description>arXiv:2401.22222v1 Announce Type: cross
Abstract: Another abstract.</description>
      <guid>oai:arXiv.org:2401.22222v1</guid>
      <pubDate>Mon, 05 Feb 2024 00:00:00 -0500</pubDate>
      <dc:creator>Grace Hopper</dc:creator>
      <category>cs.LG</category>
      <arxiv:announce_type>cross</arxiv:announce_type>
    </item>
    <item>
      <title>Replaced Paper</title>
      <link>https://arxiv.org/abs/2401.33333</link>
      <description>arXiv:2401.33333v2 Announce Type: replace
Abstract: Updated version.</description>
      <guid>oai:arXiv.org:2401.33333v2</guid>
      <pubDate>Mon, 05 Feb 2024 00:00:00 -0500</pubDate>
      <dc:creator>Someone Else</dc:creator>
      <category>cs.LG</category>
      <arxiv:announce_type>replace</arxiv:announce_type>
    </item>
  </channel>
</rss>`

// withTestServer points the package at a local server for the duration of fn.
func withTestServer(t *testing.T, handler http.Handler, fn func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	defer srv.Close()
	orig := baseURL
	baseURL = srv.URL
	defer func() { baseURL = orig }()
	fn()
}

func TestFetch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cs.LG" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleFeed))
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		papers, err := f.Fetch(context.Background(), "cs.LG")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		// replace announcement is dropped
		if len(papers) != 2 {
			t.Fatalf("got %d papers, want 2", len(papers))
		}

		p := papers[0]
		if p.ID != "2401.11111" {
			t.Errorf("ID: got %q", p.ID)
		}
		if p.Title != "Sparse Attention at Scale" {
			t.Errorf("Title: got %q", p.Title)
		}
		if p.Abstract != "We study sparse attention mechanisms across long documents." {
			t.Errorf("Abstract: got %q", p.Abstract)
		}
		if len(p.Authors) != 2 || p.Authors[0] != "Ada Lovelace" || p.Authors[1] != "Alan Turing" {
			t.Errorf("Authors: got %v", p.Authors)
		}
		if len(p.Categories) != 2 {
			t.Errorf("Categories: got %v", p.Categories)
		}
		if p.Link != "https://arxiv.org/abs/2401.11111" {
			t.Errorf("Link: got %q", p.Link)
		}
		if p.PDFLink != "https://arxiv.org/pdf/2401.11111" {
			t.Errorf("PDFLink: got %q", p.PDFLink)
		}
		if p.Published.IsZero() {
			t.Error("Published not parsed")
		}
		if papers[1].ID != "2401.22222" {
			t.Errorf("second paper ID: got %q", papers[1].ID)
		}
	})
}

func TestFetch_HTTPError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		if _, err := f.Fetch(context.Background(), "cs.LG"); err == nil {
			t.Error("expected error for 500 response")
		}
	})
}

func TestFetch_BadXML(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all"))
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		if _, err := f.Fetch(context.Background(), "cs.LG"); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestFetchAll_SkipsFailedCategory(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cs.AI" {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleFeed))
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		papers, err := f.FetchAll(context.Background(), []string{"cs.LG", "cs.AI"})
		if err != nil {
			t.Fatalf("FetchAll: %v", err)
		}
		if len(papers) != 2 {
			t.Errorf("got %d papers, want 2", len(papers))
		}
	})
}

func TestFetchAll_Deduplicates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		papers, err := f.FetchAll(context.Background(), []string{"cs.LG", "cs.CL"})
		if err != nil {
			t.Fatalf("FetchAll: %v", err)
		}
		// both categories serve the same items; cross-listings collapse by id
		if len(papers) != 2 {
			t.Errorf("got %d papers, want 2", len(papers))
		}
	})
}

func TestFetchAll_AllCategoriesFail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	withTestServer(t, handler, func() {
		f := NewFetcher(5*time.Second, zap.NewNop())
		if _, err := f.FetchAll(context.Background(), []string{"cs.LG", "cs.AI"}); err == nil {
			t.Error("expected error when every category fails")
		}
	})
}

func TestExtractArxivID(t *testing.T) {
	cases := map[string]string{
		"https://arxiv.org/abs/2401.12345":   "2401.12345",
		"https://arxiv.org/abs/2401.12345v3": "2401.12345",
		"oai:arXiv.org:2401.12345v1":         "2401.12345",
		"no id here":                         "",
	}
	for in, want := range cases {
		if got := extractArxivID(in); got != want {
			t.Errorf("extractArxivID(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestCategoryFeedURL(t *testing.T) {
	if got := CategoryFeedURL("cs.LG"); got != "https://rss.arxiv.org/rss/cs.LG" {
		t.Errorf("got %q", got)
	}
}

func TestCategoryName(t *testing.T) {
	if got := CategoryName("cs.LG"); got != "Machine Learning" {
		t.Errorf("got %q", got)
	}
	if got := CategoryName("math.XX"); got != "math.XX" {
		t.Errorf("unknown category: got %q", got)
	}
}

func TestCategories_SortedByCode(t *testing.T) {
	cats := Categories()
	if len(cats) == 0 {
		t.Fatal("expected known categories")
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1].Code >= cats[i].Code {
			t.Errorf("not sorted: %q before %q", cats[i-1].Code, cats[i].Code)
		}
	}
	for _, c := range cats {
		if !KnownCategory(c.Code) {
			t.Errorf("Categories returned unknown code %q", c.Code)
		}
	}
}
