package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sourcelens/coderag/internal/agent"
	agenterrors "github.com/sourcelens/coderag/internal/errors"
)

// chatRequest is the wire shape of both chat endpoints (spec §6.1).
type chatRequest struct {
	Message        string `json:"message"`
	RepositoryID   string `json:"repositoryId"`
	ConversationID string `json:"conversationId"`
}

func decodeChatRequest(r *http.Request) (agent.Request, error) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return agent.Request{}, agenterrors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	if body.Message == "" {
		return agent.Request{}, agenterrors.NewValidation("message", "must not be empty")
	}
	if body.RepositoryID == "" {
		return agent.Request{}, agenterrors.NewValidation("repositoryId", "must not be empty")
	}
	return agent.Request{
		Message:        body.Message,
		RepositoryID:   body.RepositoryID,
		ConversationID: body.ConversationID,
	}, nil
}

// handleChat implements POST /api/agent/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	resp, err := s.agent.Handle(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleConversation implements GET/DELETE /api/agent/conversations/{id}.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r.URL.Path, "/api/agent/conversations/")
	if id == "" {
		respondError(w, agenterrors.NewValidation("id", "conversation id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		conv, err := s.convs.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if conv == nil {
			respondError(w, agenterrors.NewNotFound("conversation", id))
			return
		}
		respondJSON(w, http.StatusOK, conv)
	case http.MethodDelete:
		if err := s.convs.Delete(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
