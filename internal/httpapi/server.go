// Package httpapi exposes the agent orchestrator and ingestion pipeline
// over the HTTP surface named in spec §6.1, grounded on the teacher's
// internal/dashboard.Server: a net/http.ServeMux wrapped in CORS and
// logging middleware, a respondJSON helper, and a Config/NewServer/
// Start/Stop lifecycle, adapted from serving migration-run state to
// serving chat turns and repository ingestion.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	agenterrors "github.com/sourcelens/coderag/internal/errors"
	"github.com/sourcelens/coderag/internal/store"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr     string // e.g. ":8080"
	FrontendOrigin string // CORS allow-origin; "*" if unset
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8080", FrontendOrigin: "*"}
}

// Server is the HTTP transport for the chat, streaming, and ingestion
// endpoints (spec §6.1).
type Server struct {
	config *Config
	agent  agentHandler
	repos  store.RepositoryStore
	convs  store.ConversationStore
	pipe   ingestionPipeline
	server *http.Server
}

// NewServer builds the ServeMux, wraps it in CORS/logging middleware, and
// returns a Server ready for Start.
func NewServer(config *Config, agent agentHandler, repos store.RepositoryStore, convs store.ConversationStore, pipe ingestionPipeline) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{config: config, agent: agent, repos: repos, convs: convs, pipe: pipe}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/chat", s.handleChat)
	mux.HandleFunc("/api/agent/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/agent/conversations/", s.handleConversation)
	mux.HandleFunc("/api/ingestion/repositories", s.handleRepositories)
	mux.HandleFunc("/api/ingestion/repositories/", s.handleRepositoryDetail)
	mux.HandleFunc("/api/health", s.handleHealth)

	handler := corsMiddleware(config.FrontendOrigin, loggingMiddleware(mux))

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second, // streaming responses run long
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving. It blocks until Stop closes the listener.
func (s *Server) Start() error {
	slog.Info("starting http api server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("stopping http api server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

// respondJSON writes data as JSON with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("httpapi: encode response", "err", err)
	}
}

// respondError translates the internal/errors taxonomy into an HTTP
// status code and a JSON {error} body (spec §7).
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var v *agenterrors.ValidationError
	var nf *agenterrors.NotFound
	var se *agenterrors.StoreError
	var pe *agenterrors.ProviderError
	switch {
	case errors.As(err, &v):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &se):
		status = http.StatusInternalServerError
	case errors.As(err, &pe):
		status = http.StatusBadGateway
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// pathID extracts the trailing path segment after prefix, and the
// remainder after an optional "/" separator, mirroring the teacher's
// TrimPrefix/SplitN convention for path-parameter-style routes.
func pathID(path, prefix string) (id, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(trimmed, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return id, rest
}

func corsMiddleware(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
