// Package server provides the HTTP API for QueryScout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/indexer"
	"github.com/queryscout/queryscout/internal/rag"
	"github.com/queryscout/queryscout/internal/retriever"
	"github.com/queryscout/queryscout/internal/schema"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/watcher"
)

// Server is the HTTP server for the QueryScout API.
type Server struct {
	engine    *rag.Engine
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
	storage   storage.Storage
	catalog   *schema.Manager
	watcher   *watcher.CorpusWatcher
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Options collects the server's dependencies. Catalog and watcher are
// optional.
type Options struct {
	Engine    *rag.Engine
	Retriever *retriever.Retriever
	Indexer   *indexer.Indexer
	Storage   storage.Storage
	Catalog   *schema.Manager
	Watcher   *watcher.CorpusWatcher
	Config    *config.Config
	Logger    *zap.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    opts.Engine,
		retriever: opts.Retriever,
		indexer:   opts.Indexer,
		storage:   opts.Storage,
		catalog:   opts.Catalog,
		watcher:   opts.Watcher,
		config:    opts.Config,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/documents", s.handleIndexDocument)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/schema/tables", s.handleSchemaTables)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
