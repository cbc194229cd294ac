// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/planforge/planforge/internal/cache"
	"github.com/planforge/planforge/internal/catalog"
	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/docgen"
	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/queue"
)

// Server exposes the generation pipeline over HTTP.
type Server struct {
	router       chi.Router
	orchestrator *docgen.Orchestrator
	provider     llm.Provider
	catalog      *catalog.Store
	queue        *queue.Queue
	cache        *cache.Cache[[]docgen.GeneratedDocument]
	events       *EventHub
}

// NewServer wires the HTTP surface. The catalog is optional; document and
// mapping retrieval endpoints return 503 without it.
func NewServer(orch *docgen.Orchestrator, provider llm.Provider, store *catalog.Store, q *queue.Queue, c *cache.Cache[[]docgen.GeneratedDocument], events *EventHub) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator required")
	}
	if provider == nil {
		return nil, errors.New("provider required")
	}
	srv := &Server{
		router:       chi.NewRouter(),
		orchestrator: orch,
		provider:     provider,
		catalog:      store,
		queue:        q,
		cache:        c,
		events:       events,
	}
	srv.routes()
	common.Logger().Info("api: server ready", "provider", provider.Name())
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/api/projects/{projectID}/documents", s.handleGenerate)
	s.router.Get("/api/projects/{projectID}/documents", s.handleDocuments)
	s.router.Get("/api/projects/{projectID}/mapping", s.handleMapping)
	s.router.Get("/api/projects/{projectID}/events", s.handleEvents)
	s.router.Get("/api/document-types", s.handleDocumentTypes)
	s.router.Get("/api/queue/status", s.handleQueueStatus)
	s.router.Get("/api/cache/stats", s.handleCacheStats)
	s.router.Post("/api/cache/purge", s.handleCachePurge)
	s.router.Get("/api/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
