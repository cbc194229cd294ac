// File path: internal/api/documents_handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/docgen"
	"github.com/planforge/planforge/internal/sanitizer"
)

type generateRequest struct {
	Project   sanitizer.ProjectProfile `json:"project"`
	Documents []string                 `json:"documents,omitempty"`
}

type generateResponse struct {
	ProjectID string                     `json:"project_id"`
	CacheHit  bool                       `json:"cache_hit"`
	Metrics   docgen.RunMetrics          `json:"metrics"`
	Documents []docgen.GeneratedDocument `json:"documents"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project id required"))
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Project.Name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("project name required"))
		return
	}

	result, err := s.orchestrator.GenerateProjectDocuments(r.Context(), req.Project, projectID, req.Documents)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "unknown document type") || strings.Contains(err.Error(), "not part of") {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	if s.catalog != nil && !result.CacheHit {
		if err := s.catalog.SaveDocuments(r.Context(), projectID, result.Documents); err != nil {
			common.Logger().Warn("api: document audit save failed", "project", projectID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, generateResponse{
		ProjectID: projectID,
		CacheHit:  result.CacheHit,
		Metrics:   result.Metrics,
		Documents: result.Documents,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("catalog unavailable"))
		return
	}
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project id required"))
		return
	}
	docs, err := s.catalog.Documents(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"documents":  docs,
	})
}

func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("catalog unavailable"))
		return
	}
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project id required"))
		return
	}
	table, err := s.catalog.RetrieveMapping(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"bindings":   table.Bindings(),
	})
}

func (s *Server) handleDocumentTypes(w http.ResponseWriter, r *http.Request) {
	methodology := docgen.ParseMethodology(r.URL.Query().Get("methodology"))
	types := docgen.DocumentSet(methodology)
	entries := make([]map[string]interface{}, 0, len(types))
	for _, t := range types {
		entries = append(entries, map[string]interface{}{
			"key":      t.Key(),
			"name":     t.DisplayName(),
			"research": t.IsResearch(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"methodology": methodology,
		"documents":   entries,
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("queue unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Status())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, s.cache.GetStats())
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache unavailable"))
		return
	}
	s.cache.Purge()
	common.Logger().Info("api: generation cache purged")
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := append([]common.LogEntry(nil), common.LogEntries()...)
	if component := strings.TrimSpace(r.URL.Query().Get("component")); component != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.Component == component {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
