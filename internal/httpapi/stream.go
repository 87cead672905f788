package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sourcelens/coderag/internal/agent"
)

// handleChatStream implements POST /api/agent/chat/stream, framing each
// agent.Event as a `data: <json>\n\n` line (spec §6.2).
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(ev agent.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("httpapi: marshal stream event", "err", err)
			return
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}

	if err := s.agent.HandleStream(r.Context(), req, emit); err != nil {
		slog.Error("httpapi: chat stream failed", "err", err)
	}
}
