package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/metrics"
	"github.com/frameball/server/pkg/repositories"
	"github.com/frameball/server/pkg/state"
	"github.com/frameball/server/pkg/version"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRankingsLimit = 10
	maxRankingsLimit     = 100

	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// APIServer exposes the read-only HTTP surface: rankings, the live
// session record, metrics, and the build version.
type APIServer struct {
	port         int
	repository   repositories.Repository
	stateManager state.StateManager
	metrics      *metrics.Metrics
	httpServer   *http.Server
}

type NewAPIServerOptions struct {
	Port         int
	Repository   repositories.Repository
	StateManager state.StateManager
	Metrics      *metrics.Metrics
}

func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	return &APIServer{
		port:         opts.Port,
		repository:   opts.Repository,
		stateManager: opts.StateManager,
		metrics:      opts.Metrics,
	}
}

// Start runs the HTTP listener until the context is canceled.
func (s *APIServer) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/api/rankings", s.handleRankings).Methods(http.MethodGet)
	router.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)
	router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("API server listening on port %d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

func (s *APIServer) handleRankings(w http.ResponseWriter, r *http.Request) {
	limit := defaultRankingsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxRankingsLimit {
		limit = maxRankingsLimit
	}

	rankings, err := s.repository.TopRankings(r.Context(), limit)
	if err != nil {
		log.Error("Failed to load rankings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load rankings")
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

func (s *APIServer) handleSession(w http.ResponseWriter, r *http.Request) {
	record, err := s.stateManager.Get()
	if err != nil {
		writeError(w, http.StatusNotFound, "no session state available yet")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Get()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
