// Command queryscout answers natural-language questions about a corpus of SQL
// queries. It runs as an HTTP server with hybrid retrieval over the indexed
// corpus, and provides client subcommands that talk to a running server or
// fall back to a local engine.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/queryscout/queryscout/internal/cli"
	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/indexer"
	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/llm"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/rag"
	"github.com/queryscout/queryscout/internal/retriever"
	"github.com/queryscout/queryscout/internal/rewrite"
	"github.com/queryscout/queryscout/internal/schema"
	"github.com/queryscout/queryscout/internal/server"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/validate"
	"github.com/queryscout/queryscout/internal/vector"
	"github.com/queryscout/queryscout/internal/watcher"
	"github.com/queryscout/queryscout/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/queryscout/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "index":
		err = runIndex(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "version":
		fmt.Printf("queryscout %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file: the explicit flag, then ./config.yaml,
// then the system default path. A missing file at the fallback paths is not
// an error; defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return config.Load("config.yaml")
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg, nil
}

// components holds everything a local engine needs, in teardown order.
type components struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  *vector.MemoryIndex
	keywordIndex keyword.KeywordIndex
	retriever    *retriever.Retriever
	indexer      *indexer.Indexer
	catalog      *schema.Manager
	engine       *rag.Engine
	config       *config.Config
	logger       *zap.Logger
}

func (c *components) close() {
	if c.keywordIndex != nil {
		if err := c.keywordIndex.Close(); err != nil {
			c.logger.Warn("closing keyword index", zap.Error(err))
		}
	}
	if c.vectorIndex != nil {
		c.vectorIndex.Close()
	}
	if c.embedder != nil {
		c.embedder.Close()
	}
	if c.storage != nil {
		if err := c.storage.Close(); err != nil {
			c.logger.Warn("closing storage", zap.Error(err))
		}
	}
}

// initializeComponents builds the full local stack. Missing LLM credentials
// and a missing schema catalog file are construction errors; a broken keyword
// index is not, retrieval degrades to vector-only instead.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{config: cfg, logger: logger}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	c.storage = store

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		c.close()
		return nil, err
	}
	c.embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	vectorIndex, err := vector.NewMemoryIndex(c.embedder.Dimensions())
	if err != nil {
		c.close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := vectorIndex.Load(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("loading vector index, starting empty", zap.Error(err))
	}
	c.vectorIndex = vectorIndex

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		logger.Warn("keyword index unavailable, search degrades to vector-only", zap.Error(err))
	} else {
		c.keywordIndex = keywordIndex
	}

	c.retriever = retriever.New(c.storage, c.embedder, c.vectorIndex, c.keywordIndex, &cfg.Search, logger)
	c.indexer = indexer.New(c.storage, c.embedder, c.vectorIndex, c.keywordIndex, logger)

	if cfg.Schema.CatalogPath != "" {
		catalog, err := schema.NewManager(cfg.Schema.CatalogPath, logger)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("loading schema catalog: %w", err)
		}
		c.catalog = catalog
	}

	client, err := llm.NewOpenAIClient(cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Temperature)
	if err != nil {
		c.close()
		return nil, err
	}

	var rewriter *rewrite.Rewriter
	if cfg.Context.RewriteEnabled {
		retry := llm.RetryPolicy{
			MaxAttempts: cfg.LLM.MaxRetries,
			BaseDelay:   time.Duration(cfg.LLM.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:    10 * time.Second,
		}
		rewriter = rewrite.New(client, cfg.Context.RewriteConfidence, retry, logger)
	}

	var extractor schema.TableExtractor
	if cfg.Schema.UseLLMExtractor {
		extractor = schema.NewFallbackExtractor(schema.NewLLMExtractor(client, logger), logger)
	}

	var validator *validate.Validator
	if c.catalog != nil && cfg.Context.ValidateSQL {
		validator = validate.New(c.catalog)
	}

	engine, err := rag.NewEngine(rag.Options{
		Retriever: c.retriever,
		Client:    client,
		Rewriter:  rewriter,
		Catalog:   c.catalog,
		Extractor: extractor,
		Validator: validator,
		Config:    cfg,
		Logger:    logger,
	})
	if err != nil {
		c.close()
		return nil, err
	}
	c.engine = engine
	return c, nil
}

func buildEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		logger.Warn("using mock embedder; retrieval quality will be poor")
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(
			os.Getenv("OPENAI_API_KEY"), cfg.LLM.BaseURL,
			cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild the keyword index from storage when it is empty but the
	// corpus is not, e.g. after the index directory was deleted.
	if c.keywordIndex != nil {
		kwCount, err := c.keywordIndex.DocCount()
		docCount, cerr := c.storage.CountDocuments(ctx)
		if err == nil && cerr == nil && kwCount == 0 && docCount > 0 {
			n, err := c.indexer.RebuildKeywordIndex(ctx)
			if err != nil {
				logger.Warn("rebuilding keyword index", zap.Error(err))
			} else {
				logger.Info("rebuilt keyword index", zap.Int("documents", n))
			}
		}
	}

	var w *watcher.CorpusWatcher
	if len(cfg.Watch.Directories) > 0 {
		w = watcher.New(c.indexer, cfg.Watch.Directories, cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(), logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting corpus watcher: %w", err)
		}
		defer w.Stop()
		go w.SyncExistingFiles(ctx)
	}

	srv := server.NewServer(server.Options{
		Engine:    c.engine,
		Retriever: c.retriever,
		Indexer:   c.indexer,
		Storage:   c.storage,
		Catalog:   c.catalog,
		Watcher:   w,
		Config:    cfg,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := c.vectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("saving vector index", zap.Error(err))
	}
	return nil
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	serverAddr := fs.String("server", "", "server URL (default from config)")
	k := fs.Int("k", 0, "number of documents to retrieve")
	output := fs.String("output", "text", "output format: text or json")
	fs.Parse(reorderArgs(args))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: queryscout ask [flags] <question>")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	req := &models.AskRequest{Question: question, K: *k}
	var resp models.AskResponse
	if err := postViaHTTP(serverURL(cfg, *serverAddr)+"/api/v1/ask", req, &resp); err == nil {
		return cli.WriteAskResult(os.Stdout, &resp, format)
	}

	// No server reachable; answer with a local engine.
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	local, err := c.engine.Ask(context.Background(), req)
	if err != nil {
		return err
	}
	return cli.WriteAskResult(os.Stdout, local, format)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	serverAddr := fs.String("server", "", "server URL (default from config)")
	k := fs.Int("k", 0, "number of results")
	vectorWeight := fs.Float64("vector-weight", 0, "vector weight override")
	keywordWeight := fs.Float64("keyword-weight", 0, "keyword weight override")
	output := fs.String("output", "text", "output format: text or json")
	fs.Parse(reorderArgs(args))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("usage: queryscout search [flags] <query>")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	req := &models.SearchRequest{
		Query:         query,
		K:             *k,
		VectorWeight:  *vectorWeight,
		KeywordWeight: *keywordWeight,
	}
	var resp models.SearchResponse
	if err := postViaHTTP(serverURL(cfg, *serverAddr)+"/api/v1/search", req, &resp); err == nil {
		return cli.WriteSearchResults(os.Stdout, &resp, format)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	if err := req.Validate(); err != nil {
		return err
	}
	opts := retriever.Options{K: req.K}
	if req.VectorWeight > 0 || req.KeywordWeight > 0 {
		w := models.NewSearchWeights(req.VectorWeight, req.KeywordWeight)
		opts.Weights = &w
	}
	start := time.Now()
	results, info, err := c.retriever.Retrieve(context.Background(), req.Query, opts)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(os.Stdout, &models.SearchResponse{
		Results:     results,
		Total:       len(results),
		QueryTimeMS: time.Since(start).Milliseconds(),
		Query:       req.Query,
		Method:      info.Method,
		Degraded:    info.Degraded,
	}, format)
}

func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(reorderArgs(args))

	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: queryscout index [flags] <file>...")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	ctx := context.Background()
	total := 0
	for _, path := range paths {
		n, err := c.indexer.IndexFile(ctx, path)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Printf("%s: %d documents\n", path, n)
		total += n
	}
	if err := c.vectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("saving vector index", zap.Error(err))
	}
	fmt.Printf("Indexed %d documents from %d files.\n", total, len(paths))
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	serverAddr := fs.String("server", "", "server URL (default from config)")
	fs.Parse(reorderArgs(args))

	id := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if id == "" {
		return fmt.Errorf("usage: queryscout delete [flags] <document-id>")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	url := serverURL(cfg, *serverAddr) + "/api/v1/documents/" + id
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient().Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		fmt.Printf("Deleted %s.\n", id)
		return nil
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()
	if err := c.indexer.DeleteDocument(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s.\n", id)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	serverAddr := fs.String("server", "", "server URL (default from config)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	resp, err := httpClient().Get(serverURL(cfg, *serverAddr) + "/api/v1/status")
	if err != nil {
		return fmt.Errorf("no server at %s: %w", serverURL(cfg, *serverAddr), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func serverURL(cfg *config.Config, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

func postViaHTTP(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient().Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// reorderArgs moves flag arguments before positional ones so that
// "queryscout ask how do we join orders --k 5" parses.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) && !isBoolFlag(arg) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, arg)
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	name := strings.TrimLeft(arg, "-")
	return name == "debug"
}

func printUsage() {
	fmt.Println(`queryscout - question answering over a SQL query corpus

Usage:
  queryscout <command> [flags] [args]

Commands:
  server    Run the HTTP API server
  ask       Ask a question about the corpus
  search    Retrieve matching queries without generating an answer
  index     Index .sql/.csv/.xlsx corpus files
  delete    Delete a document by ID
  status    Show server status
  version   Print the version
  help      Show this help

Flags (most commands):
  --config <path>   Config file (default ./config.yaml, then ` + defaultConfigPath + `)
  --server <url>    Talk to a running server instead of a local engine
  --output <fmt>    text or json (ask, search)
  --k <n>           Result count (ask, search)

The OPENAI_API_KEY environment variable must be set unless the embedding
provider is "mock" and a server handles generation.`)
}
