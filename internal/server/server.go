// Package server provides the HTTP REST API for batch dialogue generation.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/blob"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/server/ratelimit"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// BatchService exposes batch lifecycle operations. Implemented by
// *batch.Orchestrator.
type BatchService interface {
	StartBatch(ctx context.Context, specs []types.WorkItemSpec, concurrencyLimit int, policy types.FailurePolicy) (uuid.UUID, error)
	GetBatchStatus(ctx context.Context, jobID uuid.UUID) (*types.BatchProgress, error)
	PauseBatch(ctx context.Context, jobID uuid.UUID) error
	ResumeBatch(ctx context.Context, jobID uuid.UUID) error
	CancelBatch(ctx context.Context, jobID uuid.UUID) error
}

// EnrichmentService exposes the enrichment state machine. Implemented by
// *enrichment.Pipeline.
type EnrichmentService interface {
	Run(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentResult, error)
	Retry(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentResult, error)
}

// ConversationStore is the read surface for conversation lookups.
// Implemented by *db.DB.
type ConversationStore interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*db.ConversationRow, error)
	ListWorkItems(ctx context.Context, batchID uuid.UUID) ([]types.WorkItem, error)
	ListFailedGenerations(ctx context.Context, workItemID uuid.UUID) ([]types.FailedGenerationRecord, error)
}

// Config holds server configuration
type Config struct {
	Port int
}

// Deps are the collaborators the server routes requests to
type Deps struct {
	Batches       BatchService
	Enrichment    EnrichmentService
	Conversations ConversationStore
	Blobs         blob.Store
	Logger        *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	batches     BatchService
	enrichment  EnrichmentService
	store       ConversationStore
	blobs       blob.Store
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		batches:     deps.Batches,
		enrichment:  deps.Enrichment,
		store:       deps.Conversations,
		blobs:       deps.Blobs,
		rateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		logger:      logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.Routes())),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the request multiplexer
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /batches", s.handleStartBatch)
	mux.HandleFunc("GET /batches/{id}", s.handleBatchStatus)
	mux.HandleFunc("GET /batches/{id}/items", s.handleBatchItems)
	mux.HandleFunc("POST /batches/{id}/pause", s.handlePauseBatch)
	mux.HandleFunc("POST /batches/{id}/resume", s.handleResumeBatch)
	mux.HandleFunc("POST /batches/{id}/cancel", s.handleCancelBatch)

	mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("GET /conversations/{id}/failures", s.handleConversationFailures)
	mux.HandleFunc("POST /conversations/{id}/enrich", s.handleEnrich)
	mux.HandleFunc("POST /conversations/{id}/enrich/retry", s.handleRetryEnrich)

	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for requests and blocks until shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.RemoteAddr
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			clientID = fwd
		}
		if !s.rateLimiter.Allow(clientID, r.URL.Path, r.Method) {
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// pathID parses the {id} path value as a UUID
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}
