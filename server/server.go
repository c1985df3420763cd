package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
	"github.com/feedscope/feedscope/pkg/search"
)

//go:generate moq -out mocks/pipeline.go -pkg mocks -skip-ensure -fmt goimports . Pipeline
//go:generate moq -out mocks/searcher.go -pkg mocks -skip-ensure -fmt goimports . Searcher
//go:generate moq -out mocks/summarizer.go -pkg mocks -skip-ensure -fmt goimports . Summarizer

// Server represents HTTP server instance
type Server struct {
	config     ConfigProvider
	feedback   FeedbackStore
	products   ProductStore
	pipeline   Pipeline
	searcher   Searcher
	summarizer Summarizer
	vectors    VectorStore
	version    string
	debug      bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// FeedbackStore is the record-store surface handlers use
type FeedbackStore interface {
	Create(ctx context.Context, fb *domain.Feedback) (id int64, created bool, err error)
	Get(ctx context.Context, id int64) (*domain.Feedback, error)
	List(ctx context.Context, req repository.ListRequest) ([]*domain.Feedback, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error
	UpdateClassification(ctx context.Context, id int64, v domain.Verdict) error
	UpdateTriage(ctx context.Context, id int64, category domain.Category, priority domain.Priority) error
	UpdateContent(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
	GetStats(ctx context.Context, productID int64) (*repository.Stats, error)
}

// ProductStore manages products and their ingestion sources
type ProductStore interface {
	CreateProduct(ctx context.Context, p *domain.Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetSource(ctx context.Context, id int64) (*domain.Source, error)
	GetOrCreateSource(ctx context.Context, productID int64, srcType, name string) (*domain.Source, error)
	ListSources(ctx context.Context, productID int64) ([]*domain.Source, error)
}

// Pipeline triggers classification work and reports job state
type Pipeline interface {
	Enqueue(ctx context.Context, feedbackID int64) (jobID string, err error)
	Status(ctx context.Context, jobID string) (*domain.Job, error)
	Backfill(ctx context.Context) (int, error)
}

// Searcher answers semantic and text search
type Searcher interface {
	Similar(ctx context.Context, query string, productID int64, limit int) ([]search.Result, error)
	SimilarTo(ctx context.Context, feedbackID, productID int64, limit int) ([]search.Result, error)
	Text(ctx context.Context, productID int64, query string, limit int) ([]*domain.Feedback, error)
}

// Summarizer builds product rollups
type Summarizer interface {
	Summarize(ctx context.Context, productID int64) (*domain.ProductSummary, error)
}

// VectorStore removes vectors when feedback is deleted
type VectorStore interface {
	Delete(ctx context.Context, ids []int64) error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, feedback FeedbackStore, products ProductStore, pipeline Pipeline,
	searcher Searcher, summarizer Summarizer, vectors VectorStore, version string, debug bool) *Server {
	s := &Server{
		config:     cfg,
		feedback:   feedback,
		products:   products,
		pipeline:   pipeline,
		searcher:   searcher,
		summarizer: summarizer,
		vectors:    vectors,
		version:    version,
		debug:      debug,
		router:     routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedscope", "feedscope", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /feedback", s.createFeedbackHandler)
		r.HandleFunc("GET /feedback", s.listFeedbackHandler)
		r.HandleFunc("GET /feedback/{id}", s.getFeedbackHandler)
		r.HandleFunc("PUT /feedback/{id}", s.updateFeedbackHandler)
		r.HandleFunc("DELETE /feedback/{id}", s.deleteFeedbackHandler)
		r.HandleFunc("PATCH /feedback/{id}/status", s.updateStatusHandler)
		r.HandleFunc("PATCH /feedback/{id}/triage", s.updateTriageHandler)
		r.HandleFunc("GET /feedback/{id}/similar", s.similarFeedbackHandler)

		r.HandleFunc("POST /search", s.searchHandler)
		r.HandleFunc("GET /search/text", s.textSearchHandler)

		r.HandleFunc("POST /products", s.createProductHandler)
		r.HandleFunc("GET /products", s.listProductsHandler)
		r.HandleFunc("GET /products/{id}/summary", s.productSummaryHandler)
		r.HandleFunc("GET /products/{id}/stats", s.productStatsHandler)
		r.HandleFunc("GET /products/{id}/sources", s.listSourcesHandler)
		r.HandleFunc("POST /products/{id}/sources", s.createSourceHandler)

		r.HandleFunc("GET /jobs/{id}", s.jobStatusHandler)
		r.HandleFunc("POST /backfill", s.backfillHandler)
	})

	// webhook ingestion is outside /api/v1, authenticated per source token
	s.router.HandleFunc("POST /webhooks/{source}", s.webhookHandler)
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
