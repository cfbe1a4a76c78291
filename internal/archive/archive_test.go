package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dawenl/arxiv-agent/internal/models"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	arch, err := New(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = arch.Close() })
	return arch
}

func samplePaper(id string) *models.Paper {
	return &models.Paper{
		ID:         id,
		Title:      "Title " + id,
		Abstract:   "Abstract for " + id,
		Authors:    []string{"First Author", "Second Author"},
		Categories: []string{"cs.LG"},
		Published:  time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Updated:    time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Link:       "https://arxiv.org/abs/" + id,
		PDFLink:    "https://arxiv.org/pdf/" + id,
	}
}

func TestArchive_PutGet(t *testing.T) {
	arch := newTestArchive(t)
	ctx := context.Background()

	p := samplePaper("2401.11111")
	if err := arch.Put(ctx, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := arch.Get(ctx, "2401.11111")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("paper not found")
	}
	if got.Title != p.Title || got.Abstract != p.Abstract {
		t.Errorf("got %+v", got)
	}
	if len(got.Authors) != 2 || got.Authors[0] != "First Author" {
		t.Errorf("Authors: got %v", got.Authors)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "cs.LG" {
		t.Errorf("Categories: got %v", got.Categories)
	}
}

func TestArchive_GetMissing(t *testing.T) {
	arch := newTestArchive(t)
	got, err := arch.Get(context.Background(), "0000.00000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing paper, got %+v", got)
	}
}

func TestArchive_PutUpsert(t *testing.T) {
	arch := newTestArchive(t)
	ctx := context.Background()

	p := samplePaper("2401.11111")
	if err := arch.Put(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Title = "Revised Title"
	if err := arch.Put(ctx, p); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	count, err := arch.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count: got %d, want 1", count)
	}
	got, _ := arch.Get(ctx, "2401.11111")
	if got.Title != "Revised Title" {
		t.Errorf("Title: got %q", got.Title)
	}
}

func TestArchive_PutAllAndListRecent(t *testing.T) {
	arch := newTestArchive(t)
	ctx := context.Background()

	older := samplePaper("2401.11111")
	newer := samplePaper("2401.22222")
	newer.Updated = newer.Updated.Add(24 * time.Hour)
	if err := arch.PutAll(ctx, []*models.Paper{older, newer}); err != nil {
		t.Fatalf("PutAll: %v", err)
	}

	papers, err := arch.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}
	if papers[0].ID != "2401.22222" {
		t.Errorf("newest first: got %s", papers[0].ID)
	}

	limited, err := arch.ListRecent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit: got %d papers, want 1", len(limited))
	}
}
