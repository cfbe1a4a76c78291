// Package archive provides SQLite-backed persistence for papers seen across
// fetch runs, so save/similar/search can refer to papers after the feed has
// rotated them out.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dawenl/arxiv-agent/internal/models"
)

// Archive stores papers in a local SQLite database.
type Archive struct {
	db *sql.DB
}

// New opens or creates the archive database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func New(dbPath string) (*Archive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT,
		authors TEXT,
		categories TEXT,
		published TIMESTAMP,
		updated TIMESTAMP,
		link TEXT,
		pdf_link TEXT,
		archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_papers_archived_at ON papers(archived_at);
	CREATE INDEX IF NOT EXISTS idx_papers_updated ON papers(updated);
	`
	_, err := db.Exec(schema)
	return err
}

// Put inserts a paper or refreshes it if the id already exists.
func (a *Archive) Put(ctx context.Context, p *models.Paper) error {
	authorsJSON, err := json.Marshal(p.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}
	categoriesJSON, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO papers (id, title, abstract, authors, categories, published, updated, link, pdf_link, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			categories = excluded.categories,
			published = excluded.published,
			updated = excluded.updated,
			link = excluded.link,
			pdf_link = excluded.pdf_link`,
		p.ID, p.Title, p.Abstract, string(authorsJSON), string(categoriesJSON),
		p.Published, p.Updated, p.Link, p.PDFLink, time.Now(),
	)
	return err
}

// PutAll archives multiple papers in a single transaction.
func (a *Archive) PutAll(ctx context.Context, papers []*models.Paper) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (id, title, abstract, authors, categories, published, updated, link, pdf_link, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			categories = excluded.categories,
			published = excluded.published,
			updated = excluded.updated,
			link = excluded.link,
			pdf_link = excluded.pdf_link`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range papers {
		authorsJSON, err := json.Marshal(p.Authors)
		if err != nil {
			return fmt.Errorf("failed to marshal authors: %w", err)
		}
		categoriesJSON, err := json.Marshal(p.Categories)
		if err != nil {
			return fmt.Errorf("failed to marshal categories: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Abstract, string(authorsJSON),
			string(categoriesJSON), p.Published, p.Updated, p.Link, p.PDFLink, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns an archived paper by id, or nil when it is not archived.
func (a *Archive) Get(ctx context.Context, id string) (*models.Paper, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, title, abstract, authors, categories, published, updated, link, pdf_link
		 FROM papers WHERE id = ?`, id,
	)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListRecent returns the most recently updated papers, newest first.
func (a *Archive) ListRecent(ctx context.Context, limit int) ([]*models.Paper, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, title, abstract, authors, categories, published, updated, link, pdf_link
		 FROM papers ORDER BY updated DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row scanner) (*models.Paper, error) {
	var p models.Paper
	var authorsJSON, categoriesJSON string
	if err := row.Scan(&p.ID, &p.Title, &p.Abstract, &authorsJSON, &categoriesJSON,
		&p.Published, &p.Updated, &p.Link, &p.PDFLink); err != nil {
		return nil, err
	}
	if authorsJSON != "" {
		_ = json.Unmarshal([]byte(authorsJSON), &p.Authors)
	}
	if categoriesJSON != "" {
		_ = json.Unmarshal([]byte(categoriesJSON), &p.Categories)
	}
	return &p, nil
}

// Count returns the number of archived papers.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}
