package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/config"
	"github.com/dawenl/arxiv-agent/internal/embedding"
	"github.com/dawenl/arxiv-agent/internal/feed"
	"github.com/dawenl/arxiv-agent/internal/models"
)

func (s *Server) handleListAnchors(w http.ResponseWriter, r *http.Request) {
	var list []*models.Anchor
	switch r.URL.Query().Get("kind") {
	case "":
		list = s.store.All()
	case string(models.KindTopic):
		list = s.store.Topics()
	case string(models.KindPaper):
		list = s.store.Papers()
	default:
		s.respondError(w, http.StatusBadRequest, "unknown anchor kind")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"anchors": list,
		"count":   len(list),
	})
}

type addTopicRequest struct {
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

func (s *Server) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	var req addTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	anchor, err := s.store.AddTopic(req.Text, req.Title)
	if err != nil {
		s.logger.Error("add topic failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, anchor)
}

type savePaperRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSavePaper(w http.ResponseWriter, r *http.Request) {
	var req savePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.respondError(w, http.StatusBadRequest, "id is required")
		return
	}
	paper, err := s.archive.Get(r.Context(), req.ID)
	if err != nil {
		s.logger.Error("archive lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if paper == nil {
		s.respondError(w, http.StatusNotFound, "paper not found")
		return
	}
	anchor, err := s.store.AddPaper(paper)
	if err != nil {
		s.logger.Error("save paper failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, anchor)
}

func (s *Server) handleRemoveAnchor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.store.Remove(id)
	if err != nil {
		s.logger.Error("remove anchor failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.respondError(w, http.StatusNotFound, "anchor not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	opts, err := s.rankOptionsFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	categories := s.categoriesFromQuery(r)

	papers, err := s.fetcher.FetchAll(r.Context(), categories)
	if err != nil {
		s.logger.Error("feed fetch failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := s.archive.PutAll(r.Context(), papers); err != nil {
		s.logger.Warn("archiving papers failed", zap.Error(err))
	} else if err := s.index.IndexAll(r.Context(), papers); err != nil {
		s.logger.Warn("indexing papers failed", zap.Error(err))
	}

	anchorSet := s.store.All()
	ranked, err := s.matcher.Rank(r.Context(), papers, anchorSet, opts)
	if err != nil {
		s.respondMatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"papers":        ranked,
		"anchor_count":  len(anchorSet),
		"total_in_feed": len(papers),
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts, err := s.rankOptionsFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reference, err := s.archive.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("archive lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reference == nil {
		s.respondError(w, http.StatusNotFound, "paper not found")
		return
	}

	candidates, err := s.archive.ListRecent(r.Context(), 500)
	if err != nil {
		s.logger.Error("archive list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	similar, err := s.matcher.FindSimilar(r.Context(), reference, candidates, opts)
	if err != nil {
		s.respondMatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"reference": reference,
		"papers":    similar,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Rank.MaxResults
	}

	hits, err := s.index.Search(r.Context(), req.Query, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	papers := make([]*models.Paper, 0, len(hits))
	for _, hit := range hits {
		p, err := s.archive.Get(r.Context(), hit.ID)
		if err != nil || p == nil {
			continue
		}
		p.RelevanceScore = hit.Score
		papers = append(papers, p)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"papers": papers,
		"count":  len(papers),
	})
}

// handleListCategories lists the known arXiv categories with display names,
// plus the currently configured selection.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.configMu.Lock()
	selected := append([]string(nil), s.config.Feeds.Categories...)
	s.configMu.Unlock()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": feed.Categories(),
		"selected":   selected,
	})
}

type settingsResponse struct {
	Threshold  float64  `json:"threshold"`
	MaxResults int      `json:"max_results"`
	Categories []string `json:"categories"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.configMu.Lock()
	resp := settingsResponse{
		Threshold:  s.config.Rank.Threshold,
		MaxResults: s.config.Rank.MaxResults,
		Categories: append([]string(nil), s.config.Feeds.Categories...),
	}
	s.configMu.Unlock()
	s.respondJSON(w, http.StatusOK, resp)
}

type settingsUpdateRequest struct {
	Threshold  *float64 `json:"threshold,omitempty"`
	MaxResults *int     `json:"max_results,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold != nil && (*req.Threshold < -1 || *req.Threshold > 1) {
		s.respondError(w, http.StatusBadRequest, "threshold must be in [-1, 1]")
		return
	}
	if req.MaxResults != nil && *req.MaxResults < 0 {
		s.respondError(w, http.StatusBadRequest, "max_results must not be negative")
		return
	}
	for _, c := range req.Categories {
		if !feed.KnownCategory(c) {
			s.logger.Warn("unrecognized arXiv category", zap.String("category", c))
		}
	}

	s.configMu.Lock()
	if req.Threshold != nil {
		s.config.Rank.Threshold = *req.Threshold
	}
	if req.MaxResults != nil {
		s.config.Rank.MaxResults = *req.MaxResults
	}
	if req.Categories != nil {
		s.config.Feeds.Categories = req.Categories
	}
	var saveErr error
	if s.configPath != "" {
		saveErr = config.Save(s.configPath, s.config)
	}
	resp := settingsResponse{
		Threshold:  s.config.Rank.Threshold,
		MaxResults: s.config.Rank.MaxResults,
		Categories: append([]string(nil), s.config.Feeds.Categories...),
	}
	s.configMu.Unlock()

	if saveErr != nil {
		s.logger.Warn("failed to persist settings", zap.Error(saveErr))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	archived, err := s.archive.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count papers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	indexed, err := s.index.DocCount()
	if err != nil {
		s.logger.Error("status: doc count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"anchors":         s.store.Count(),
		"archived_papers": archived,
		"indexed_papers":  indexed,
		"cached_vectors":  s.matcher.CacheSize(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rankOptionsFromQuery parses threshold/limit query parameters, falling back
// to configured defaults.
func (s *Server) rankOptionsFromQuery(r *http.Request) (models.RankOptions, error) {
	opts := models.RankOptions{}
	if v := r.URL.Query().Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.New("threshold must be a number")
		}
		opts.Threshold = threshold
		opts.HasThreshold = true
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New("limit must be an integer")
		}
		opts.Limit = limit
	}
	s.configMu.Lock()
	threshold, limit := s.config.Rank.Threshold, s.config.Rank.MaxResults
	s.configMu.Unlock()
	if err := opts.Validate(threshold, limit); err != nil {
		return opts, err
	}
	return opts, nil
}

func (s *Server) categoriesFromQuery(r *http.Request) []string {
	if v := r.URL.Query().Get("categories"); v != "" {
		var categories []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
		if len(categories) > 0 {
			return categories
		}
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	return append([]string(nil), s.config.Feeds.Categories...)
}

func (s *Server) respondMatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, embedding.ErrUnavailable) {
		s.logger.Error("embedding unavailable", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.logger.Error("ranking failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
