// backend/internal/chat/handler.go
package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chat-funnel/internal/session"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/logger"
)

type Handler struct {
	service *Service
	log     *logger.Logger
	verbose bool
}

func NewHandler(service *Service, log *logger.Logger, verbose bool) *Handler {
	return &Handler{service: service, log: log, verbose: verbose}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var c Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request", "message": err.Error()})
		return
	}
	if c.SessionID == "" {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: sessionId"})
		return
	}

	result, err := h.service.Store(r.Context(), c)
	if err != nil {
		h.log.Error("store conversation", "session_id", c.SessionID, "error", err)
		apierr.Write(w, err, "Failed to store conversation", h.verbose)
		return
	}
	apierr.JSON(w, http.StatusOK, result)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	conversation, err := h.service.Get(r.Context(), sessionID)
	if errors.Is(err, session.ErrNotFound) {
		apierr.JSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
		return
	}
	if err != nil {
		h.log.Error("get conversation", "session_id", sessionID, "error", err)
		apierr.Write(w, err, "Failed to retrieve conversation", h.verbose)
		return
	}
	apierr.JSON(w, http.StatusOK, conversation)
}
