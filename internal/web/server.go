package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Dcavise/SEEK-sub000/internal/matcher"
	"github.com/Dcavise/SEEK-sub000/internal/review"
	"github.com/Dcavise/SEEK-sub000/internal/store"
)

// Server exposes the manual-review API over HTTP
type Server struct {
	registry  *review.Registry
	persister *store.Persister // nil means transitions are tracked in memory only

	mu      sync.RWMutex
	results []matcher.MatchResult
	stats   *matcher.BatchRunStats

	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a review API server listening on addr
func NewServer(addr string, registry *review.Registry, persister *store.Persister) *Server {
	s := &Server{
		registry:  registry,
		persister: persister,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/results", s.handleResults).Methods("GET")
	api.HandleFunc("/reviews", s.handleListReviews).Methods("GET")
	api.HandleFunc("/reviews/pending", s.handlePendingReviews).Methods("GET")
	api.HandleFunc("/reviews/bulk", s.handleBulkTransition).Methods("POST")
	api.HandleFunc("/reviews/{id}", s.handleGetReview).Methods("GET")
	api.HandleFunc("/reviews/{id}/approve", s.handleApprove).Methods("POST")
	api.HandleFunc("/reviews/{id}/reject", s.handleReject).Methods("POST")
	api.HandleFunc("/reviews/{id}/apply", s.handleApply).Methods("POST")
	api.HandleFunc("/reviews/{id}/rollback", s.handleRollback).Methods("POST")
}

// SetBatch publishes the latest batch run to the API
func (s *Server) SetBatch(results []matcher.MatchResult, stats *matcher.BatchRunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = results
	s.stats = stats
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Review API listening on %s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	fmt.Println("Shutting down review API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the configured router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
