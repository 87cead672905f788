package httpapi

import (
	"encoding/json"
	"net/http"

	agenterrors "github.com/sourcelens/coderag/internal/errors"
	"github.com/sourcelens/coderag/internal/ingestion"
)

// createRepositoryRequest is the wire shape of POST /api/ingestion/repositories.
type createRepositoryRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// handleRepositories implements GET/POST /api/ingestion/repositories.
func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		repos, err := s.repos.ListAll(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, repos)
	case http.MethodPost:
		var body createRepositoryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, agenterrors.NewValidation("body", "invalid JSON: "+err.Error()))
			return
		}
		if body.Path == "" {
			respondError(w, agenterrors.NewValidation("path", "must not be empty"))
			return
		}
		repo, err := s.pipe.Run(r.Context(), ingestion.Request{
			ID:          body.ID,
			Name:        body.Name,
			Path:        body.Path,
			Description: body.Description,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, repo)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRepositoryDetail implements GET/DELETE /api/ingestion/repositories/{id}
// and GET /api/ingestion/repositories/{id}/stats.
func (s *Server) handleRepositoryDetail(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, "/api/ingestion/repositories/")
	if id == "" {
		respondError(w, agenterrors.NewValidation("id", "repository id required"))
		return
	}

	if rest == "stats" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stats, err := s.pipe.StatsFor(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
		return
	}

	switch r.Method {
	case http.MethodGet:
		repo, err := s.repos.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if repo == nil {
			respondError(w, agenterrors.NewNotFound("repository", id))
			return
		}
		respondJSON(w, http.StatusOK, repo)
	case http.MethodDelete:
		if err := s.pipe.Delete(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
