// Package main is the arxiv-agent CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dawenl/arxiv-agent/internal/anchors"
	"github.com/dawenl/arxiv-agent/internal/archive"
	"github.com/dawenl/arxiv-agent/internal/cli"
	"github.com/dawenl/arxiv-agent/internal/config"
	"github.com/dawenl/arxiv-agent/internal/embedding"
	"github.com/dawenl/arxiv-agent/internal/feed"
	"github.com/dawenl/arxiv-agent/internal/keyword"
	"github.com/dawenl/arxiv-agent/internal/matcher"
	"github.com/dawenl/arxiv-agent/internal/models"
	"github.com/dawenl/arxiv-agent/internal/server"
	"github.com/dawenl/arxiv-agent/internal/watcher"
	"github.com/dawenl/arxiv-agent/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/arxiv-agent/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When no config file exists at all, built-in defaults are used
// and an empty resolved path is returned (settings updates are not persisted).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "fetch":
		runFetch()
	case "topics":
		runTopics()
	case "save":
		runSave()
	case "similar":
		runSimilar()
	case "search":
		runSearch()
	case "export":
		runExport()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("arxiv-agent version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    *anchors.Store
	Embedder embedding.Embedder
	Cache    *embedding.DiskCache
	Matcher  *matcher.Matcher
	Fetcher  *feed.Fetcher
	Archive  *archive.Archive
	Index    *keyword.Index
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store := anchors.NewStore(cfg.AnchorsPath(), logger)

	embedder, err := embedding.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	cache := embedding.NewDiskCache(cfg.DataDir, embedder.ModelName(), logger)

	arch, err := archive.New(cfg.ArchivePath())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	index, err := keyword.Open(cfg.KeywordIndexPath())
	if err != nil {
		_ = embedder.Close()
		_ = arch.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	return &Components{
		Store:    store,
		Embedder: embedder,
		Cache:    cache,
		Matcher:  matcher.New(embedder, cache, logger),
		Fetcher:  feed.NewFetcher(time.Duration(cfg.Feeds.TimeoutSeconds)*time.Second, logger),
		Archive:  arch,
		Index:    index,
	}, nil
}

// setup is the shared preamble for subcommands: load config, build the
// logger, initialize components. Exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolvedPath, logger, components
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v; use text or json\n", err)
		os.Exit(1)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("data_dir", cfg.DataDir),
		zap.String("embedding_model", components.Embedder.ModelName()),
	)

	store := components.Store
	watchSvc := watcher.New(cfg.AnchorsPath(), func() {
		store.Reload()
		logger.Info("anchors reloaded from disk", zap.Int("count", store.Count()))
	}, logger)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Warn("anchor file watcher disabled", zap.Error(err))
	}

	srv := server.NewServer(
		components.Store,
		components.Matcher,
		components.Fetcher,
		components.Archive,
		components.Index,
		cfg,
		resolvedConfigPath,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	threshold := fs.Float64("threshold", 0, "minimum relevance score (default from config)")
	limit := fs.Int("limit", 0, "maximum number of results (default from config)")
	categories := fs.String("categories", "", "comma-separated arXiv categories (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	cats := cfg.Feeds.Categories
	if *categories != "" {
		cats = splitList(*categories)
	}
	opts := models.RankOptions{Threshold: *threshold, Limit: *limit}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			opts.HasThreshold = true
		}
	})
	if err := opts.Validate(cfg.Rank.Threshold, cfg.Rank.MaxResults); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	papers, err := components.Fetcher.FetchAll(ctx, cats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Archive.PutAll(ctx, papers); err != nil {
		logger.Warn("archiving papers failed", zap.Error(err))
	} else if err := components.Index.IndexAll(ctx, papers); err != nil {
		logger.Warn("indexing papers failed", zap.Error(err))
	}

	anchorSet := components.Store.All()
	if len(anchorSet) == 0 {
		fmt.Fprintf(os.Stderr, "No anchors defined; add one with: arxiv-agent topics add \"<description>\"\n")
		fmt.Fprintf(os.Stderr, "Fetched %d papers (unranked).\n", len(papers))
		os.Exit(1)
	}

	ranked, err := components.Matcher.Rank(ctx, papers, anchorSet, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ranking failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		fmt.Printf("Fetched %d papers from %s\n", len(papers), strings.Join(cats, ", "))
	}
	if err := cli.WritePapers(os.Stdout, ranked, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runTopics() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: arxiv-agent topics <add|remove|list|clear> [args]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "short label for the topic (add only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])

	format := parseFormat(*outputFormat)
	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	store := components.Store

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: arxiv-agent topics add [flags] <description>")
			os.Exit(1)
		}
		text := strings.TrimSpace(strings.Join(fs.Args(), " "))
		anchor, err := store.AddTopic(text, *title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added topic %s: %s\n", anchor.ID, anchor.Title)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: arxiv-agent topics remove <anchor-id>")
			os.Exit(1)
		}
		id := fs.Arg(0)
		removed, err := store.Remove(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
			os.Exit(1)
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "No anchor with id %s\n", id)
			os.Exit(1)
		}
		fmt.Printf("Removed %s\n", id)
	case "list":
		if err := cli.WriteAnchors(os.Stdout, store.All(), format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "clear":
		n := store.Count()
		if err := store.ClearAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d anchors\n", n)
	default:
		fmt.Printf("Unknown topics subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runSave() {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: arxiv-agent save <paper-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	paper, err := findPaper(ctx, components, cfg, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	anchor, err := components.Store.AddPaper(paper)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Save failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Saved paper %s as anchor: %s\n", anchor.ID, anchor.Title)
}

// findPaper resolves a paper id against the archive, falling back to a fresh
// feed fetch when the paper has not been archived yet.
func findPaper(ctx context.Context, components *Components, cfg *config.Config, id string) (*models.Paper, error) {
	paper, err := components.Archive.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("archive lookup failed: %w", err)
	}
	if paper != nil {
		return paper, nil
	}

	papers, err := components.Fetcher.FetchAll(ctx, cfg.Feeds.Categories)
	if err != nil {
		return nil, fmt.Errorf("paper %s not archived and feed fetch failed: %w", id, err)
	}
	_ = components.Archive.PutAll(ctx, papers)
	_ = components.Index.IndexAll(ctx, papers)
	for _, p := range papers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("paper %s not found in archive or current feeds", id)
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	threshold := fs.Float64("threshold", 0, "minimum similarity score (default from config)")
	limit := fs.Int("limit", 10, "maximum number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: arxiv-agent similar [flags] <paper-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	format := parseFormat(*outputFormat)
	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	opts := models.RankOptions{Threshold: *threshold, Limit: *limit}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			opts.HasThreshold = true
		}
	})
	if err := opts.Validate(cfg.Rank.Threshold, cfg.Rank.MaxResults); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	reference, err := findPaper(ctx, components, cfg, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	candidates, err := components.Archive.ListRecent(ctx, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Archive list failed: %v\n", err)
		os.Exit(1)
	}
	similar, err := components.Matcher.FindSimilar(ctx, reference, candidates, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Similarity search failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		fmt.Printf("Papers similar to %s (%s)\n", reference.ID, utils.Truncate(reference.Title, 80))
	}
	if err := cli.WritePapers(os.Stdout, similar, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "maximum number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: arxiv-agent search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	format := parseFormat(*outputFormat)
	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	hits, err := components.Index.Search(ctx, query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	papers := make([]*models.Paper, 0, len(hits))
	for _, hit := range hits {
		p, err := components.Archive.Get(ctx, hit.ID)
		if err != nil || p == nil {
			continue
		}
		p.RelevanceScore = hit.Score
		papers = append(papers, p)
	}
	if err := cli.WritePapers(os.Stdout, papers, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: arxiv-agent export <path>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if err := components.Store.Export(path); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d anchors to %s\n", components.Store.Count(), path)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	replace := fs.Bool("replace", false, "replace all existing anchors instead of merging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: arxiv-agent import [flags] <path>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if *replace {
		fmt.Printf("Replacing %d existing anchors.\n", components.Store.Count())
	}
	added, err := components.Store.Import(path, !*replace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	if *replace {
		fmt.Printf("Imported %d anchors from %s\n", components.Store.Count(), path)
	} else {
		fmt.Printf("Merged %d new anchors from %s (%d total)\n", added, path, components.Store.Count())
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	archived, err := components.Archive.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count papers failed: %v\n", err)
		os.Exit(1)
	}
	indexed, err := components.Index.DocCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Doc count failed: %v\n", err)
		os.Exit(1)
	}

	status := map[string]interface{}{
		"anchors":         components.Store.Count(),
		"topics":          len(components.Store.Topics()),
		"saved_papers":    len(components.Store.Papers()),
		"archived_papers": archived,
		"indexed_papers":  indexed,
		"cached_vectors":  components.Cache.Len(),
		"embedding_model": components.Embedder.ModelName(),
		"data_dir":        cfg.DataDir,
	}
	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("anchors:          %d (%d topics, %d saved papers)\n",
		components.Store.Count(), len(components.Store.Topics()), len(components.Store.Papers()))
	fmt.Printf("archived_papers:  %d\n", archived)
	fmt.Printf("indexed_papers:   %d\n", indexed)
	fmt.Printf("cached_vectors:   %d\n", components.Cache.Len())
	fmt.Printf("embedding_model:  %s\n", components.Embedder.ModelName())
	fmt.Printf("data_dir:         %s\n", cfg.DataDir)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printUsage() {
	fmt.Println(`arxiv-agent - Personalized arXiv paper feed

Usage:
  arxiv-agent server [flags]            Start the HTTP server
  arxiv-agent fetch [flags]             Fetch feeds and rank papers against anchors
  arxiv-agent topics <add|remove|list|clear>  Manage interest anchors
  arxiv-agent save <paper-id>           Save a paper as an anchor
  arxiv-agent similar [flags] <paper-id>  Find papers similar to one paper
  arxiv-agent search [flags] <query>    Keyword search over archived papers
  arxiv-agent export <path>             Export anchors to a JSON file
  arxiv-agent import [flags] <path>     Import anchors from a JSON file
  arxiv-agent status [flags]            Show store/archive/cache status
  arxiv-agent version                   Show version
  arxiv-agent help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/arxiv-agent/config.yaml,
                     falling back to ./config.yaml, then built-in defaults)
  --output string    Output format: text or json (default: text)

Fetch Flags:
  --threshold float     Minimum relevance score in [-1, 1] (default from config: 0.35)
  --limit int           Maximum number of results (default from config: 50)
  --categories string   Comma-separated arXiv categories (default from config)

Import Flags:
  --replace    Replace all existing anchors instead of merging by id

Examples:
  arxiv-agent topics add "sparse attention for long-context transformers"
  arxiv-agent fetch --threshold 0.4 --limit 20
  arxiv-agent save 2401.12345
  arxiv-agent similar 2401.12345
  arxiv-agent search "mixture of experts"
  arxiv-agent export anchors-backup.json
  arxiv-agent server --debug`)
}
