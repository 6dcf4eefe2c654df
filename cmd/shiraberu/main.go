// Package main is the shiraberu CLI entry point.
package main

import (
	"context"
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
	"unicode/utf8"

	"github.com/hyperjump/shiraberu/internal/cli"
	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/extract"
	"github.com/hyperjump/shiraberu/internal/indexer"
	"github.com/hyperjump/shiraberu/internal/keyword"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/server"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/watcher"
	"github.com/hyperjump/shiraberu/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/shiraberu/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists, so running from a project
// directory picks up that project's settings.
// Returns the config and the path that was actually loaded.
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
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "chunk":
		runChunk()
	case "version", "--version", "-v":
		fmt.Printf("shiraberu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger; debug forces debug logging.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieved chunks, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", cfg.Debug || *debug))

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !components.Store.Exists() {
		logger.Info("no artifacts on disk; ingesting configured sources")
		if _, err := components.Indexer.IngestSources(ctx); err != nil {
			logger.Fatal("Initial ingest failed", zap.Error(err))
		}
	}
	if err := components.Holder.Reload(ctx); err != nil {
		logger.Fatal("Failed to load artifacts", zap.Error(err))
	}

	if cfg.Watch.Enabled && len(cfg.Ingest.SourceDirs) > 0 {
		w := watcher.NewWatcher(
			cfg.Ingest.SourceDirs,
			cfg.Ingest.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(ctx context.Context, paths []string) {
				reingest(ctx, components, paths)
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Holder, components.Catalog, components.Keyword, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// reingest rebuilds the artifacts from all configured sources and publishes them.
// The running index keeps serving if either step fails.
func reingest(ctx context.Context, c *Components, paths []string) {
	c.Logger.Info("re-ingesting after source change", zap.Strings("changed", paths))
	report, err := c.Indexer.IngestSources(ctx)
	if err != nil {
		c.Logger.Error("re-ingest failed", zap.Error(err))
		return
	}
	if err := c.Holder.Reload(ctx); err != nil {
		return
	}
	c.Logger.Info("re-ingest published", zap.String("run_id", report.RunID), zap.Int("chunks", report.Chunks))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rawPath := fs.String("raw", "", "raw documents JSON file (overrides ingest.raw_documents_path)")
	serverURL := fs.String("server", "", "after ingesting, ask the server at this URL to reload")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	sources := indexer.Sources{
		RawDocumentsPath: cfg.Ingest.RawDocumentsPath,
		Dirs:             cfg.Ingest.SourceDirs,
		Extensions:       cfg.Ingest.Extensions,
	}
	if *rawPath != "" || fs.NArg() > 0 {
		sources.RawDocumentsPath = *rawPath
		sources.Dirs = fs.Args()
	}

	ctx := context.Background()
	docs, err := components.Indexer.LoadSources(sources)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loading documents failed: %v\n", err)
		os.Exit(1)
	}
	report, err := components.Indexer.Ingest(ctx, docs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d document(s) into %d chunk(s) in %s (run %s)\n",
		report.Documents, report.Chunks, report.Duration.Round(time.Millisecond), report.RunID)
	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if *serverURL != "" {
		if err := reloadViaHTTP(*serverURL); err != nil {
			fmt.Fprintf(os.Stderr, "Server reload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Server at %s reloaded\n", *serverURL)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shiraberu search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are the k most similar chunks whose similarity is at least the threshold.
An empty result means nothing in the corpus was close enough.

Examples:
  shiraberu search how do I file a claim
  shiraberu search -k 10 --threshold 0 "premium payment options"
  shiraberu search --server "" --output json claim deadline   # read artifacts directly
  shiraberu search --keyword deductible                        # exact term lookup
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig loads config at path and returns its query defaults,
// falling back to the built-in defaults when no config can be loaded.
func searchDefaultsFromConfig(path string) models.QueryDefaults {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return models.QueryDefaults{
		K:         cfg.Retrieval.DefaultK,
		MaxK:      cfg.Retrieval.MaxK,
		Threshold: cfg.Retrieval.Threshold(),
	}
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package stops
// at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaults := searchDefaultsFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the artifacts directly)")
	k := fs.Int("k", defaults.K, "maximum number of results")
	threshold := fs.Float64("threshold", defaults.Threshold, "minimum similarity in [0,1]")
	kwLookup := fs.Bool("keyword", false, "exact term lookup in the keyword index instead of vector retrieval")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *kwLookup {
		runKeywordLookup(*serverURL, *configPathFlag, queryStr, *k, format)
		return
	}

	searchQuery := &models.SearchQuery{Query: queryStr, K: *k, Threshold: threshold}
	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		writeSearchOutput(response, format)
		return
	}

	cfg, logger, _ := setup(*configPathFlag, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Holder.Reload(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Loading artifacts failed: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Holder.Respond(ctx, *searchQuery, defaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	writeSearchOutput(response, format)
}

func writeSearchOutput(response *models.SearchResponse, format cli.SearchOutputFormat) {
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runKeywordLookup(serverURL, configPath, query string, limit int, format cli.SearchOutputFormat) {
	var hits []server.KeywordHit
	if serverURL != "" {
		resp, err := keywordViaHTTP(serverURL, query, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Keyword lookup failed: %v\n", err)
			os.Exit(1)
		}
		hits = resp.Hits
	} else {
		cfg, logger, _ := setup(configPath, false)
		defer logger.Sync()
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Opening keyword index failed: %v\n", err)
			os.Exit(1)
		}
		defer kw.Close()
		results, err := kw.Search(context.Background(), query, limit, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Keyword lookup failed: %v\n", err)
			os.Exit(1)
		}
		chunks, _ := storage.ReadMetadata(cfg.Storage.MetadataPath)
		for _, r := range results {
			hit := server.KeywordHit{KeywordResult: r}
			if r.Position >= 0 && r.Position < len(chunks) && chunks[r.Position].ChunkID == r.ChunkID {
				hit.Text = chunks[r.Position].Text
				hit.ChunkIndex = chunks[r.Position].ChunkIndex
			}
			hits = append(hits, hit)
		}
	}

	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, hits)
		return
	}
	for i, h := range hits {
		preview := strings.Join(strings.Fields(h.Text), " ")
		fmt.Printf("%d\t%.3f\t%s\t%s\n", i+1, h.Score, h.ChunkID, utils.Truncate(preview, 80))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the artifacts and catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *server.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		status, err = localStatus(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// localStatus reports on the artifacts and catalog without starting the embedder.
func localStatus(configPath string) (*server.StatusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	status := &server.StatusResponse{Config: map[string]any{
		"index_path":    cfg.Storage.IndexPath,
		"metadata_path": cfg.Storage.MetadataPath,
	}}
	store := storage.NewArtifactStore(cfg.Storage.IndexPath, cfg.Storage.MetadataPath)
	if store.Exists() {
		chunks, err := storage.ReadMetadata(cfg.Storage.MetadataPath)
		if err != nil {
			return nil, err
		}
		status.Loaded = true
		status.Chunks = len(chunks)
		status.IndexType = cfg.Vector.IndexType
		status.Dimensions = cfg.Embedding.Dimensions
	}
	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()
	ctx := context.Background()
	if status.Documents, err = catalog.CountDocuments(ctx); err != nil {
		return nil, err
	}
	if run, err := catalog.LatestRun(ctx); err == nil {
		status.LatestRun = run
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.IndexPath, cfg.Storage.MetadataPath, cfg.Storage.CatalogPath, cfg.Storage.KeywordIndexPath); err == nil {
		status.DiskUsageBytes = n
	}
	return status, nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	size := fs.Int("size", 1000, "chunk size in characters")
	overlap := fs.Int("overlap", 100, "characters shared by consecutive chunks")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: shiraberu chunk [--size N] [--overlap N] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}
	spans, err := chunkSpans(text, *size, *overlap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chunking failed: %v\n", err)
		os.Exit(1)
	}
	cli.WriteChunkSpans(os.Stdout, filepath.Base(path), spans)
}

// chunkSpans splits text and records each chunk's rune offsets.
func chunkSpans(text string, size, overlap int) ([]cli.ChunkSpan, error) {
	seq, err := indexer.SplitText(text, size, overlap)
	if err != nil {
		return nil, err
	}
	var spans []cli.ChunkSpan
	for chunk := range seq {
		start := len(spans) * (size - overlap)
		spans = append(spans, cli.ChunkSpan{
			Index: len(spans),
			Start: start,
			End:   start + utf8.RuneCountInString(chunk),
			Text:  chunk,
		})
	}
	return spans, nil
}

func printUsage() {
	fmt.Println(`shiraberu - document chunking and vector retrieval

Usage:
  shiraberu server [flags]            Load the index and serve the HTTP API
  shiraberu ingest [flags] [dir...]   Chunk, embed and index documents
  shiraberu search [flags] <query>    Retrieve the chunks most similar to a query
  shiraberu status [flags]            Show index, catalog and disk status
  shiraberu chunk [flags] <file>      Print the chunk boundaries of a file
  shiraberu version                   Show version
  shiraberu help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shiraberu/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --raw string       Raw documents JSON file; with dirs, replaces the configured sources
  --server string    Ask a running server to reload after ingesting

Search Flags:
  --config string      Config file path (direct mode and defaults)
  --server string      Server URL (default: http://localhost:8080). Use --server "" to read the artifacts directly.
  -k int               Maximum number of results (default from config)
  --threshold float    Minimum similarity in [0,1] (default from config)
  --keyword            Exact term lookup instead of vector retrieval
  --output string      text, compact or json (default: text)

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --output string    text, compact or json (default: text)

Chunk Flags:
  --size int         Chunk size in characters (default: 1000)
  --overlap int      Overlap in characters (default: 100)

Examples:
  shiraberu ingest ./docs
  shiraberu ingest --raw data/raw_text/insurance_docs.json --server http://localhost:8080
  shiraberu server
  shiraberu search "how long do I have to file a claim"
  shiraberu search -k 3 --threshold 0.5 --output json "premium grace period"
  shiraberu status --output json
  shiraberu chunk --size 400 --overlap 40 policy.pdf`)
}
