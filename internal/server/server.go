// Package server provides the HTTP API for arxiv-agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/anchors"
	"github.com/dawenl/arxiv-agent/internal/archive"
	"github.com/dawenl/arxiv-agent/internal/config"
	"github.com/dawenl/arxiv-agent/internal/feed"
	"github.com/dawenl/arxiv-agent/internal/keyword"
	"github.com/dawenl/arxiv-agent/internal/matcher"
)

// Server is the HTTP server for the arxiv-agent API.
type Server struct {
	store   *anchors.Store
	matcher *matcher.Matcher
	fetcher *feed.Fetcher
	archive *archive.Archive
	index   *keyword.Index
	logger  *zap.Logger
	server  *http.Server

	configPath string
	configMu   sync.Mutex
	config     *config.Config
}

// NewServer creates a server with the given dependencies. configPath may be
// empty, in which case settings updates are not persisted to disk.
func NewServer(
	store *anchors.Store,
	m *matcher.Matcher,
	fetcher *feed.Fetcher,
	arch *archive.Archive,
	index *keyword.Index,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:      store,
		matcher:    m,
		fetcher:    fetcher,
		archive:    arch,
		index:      index,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/api/v1/anchors", s.handleListAnchors)
	r.Post("/api/v1/anchors/topics", s.handleAddTopic)
	r.Post("/api/v1/anchors/papers", s.handleSavePaper)
	r.Delete("/api/v1/anchors/{id}", s.handleRemoveAnchor)
	r.Get("/api/v1/papers", s.handleFeed)
	r.Get("/api/v1/papers/{id}/similar", s.handleSimilar)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/categories", s.handleListCategories)
	r.Get("/api/v1/settings", s.handleGetSettings)
	r.Put("/api/v1/settings", s.handleUpdateSettings)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
