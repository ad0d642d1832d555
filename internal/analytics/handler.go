// backend/internal/analytics/handler.go
package analytics

import (
	"bytes"
	"encoding/json"
	"net/http"

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

type batchRequest struct {
	Events json.RawMessage `json:"events"`
}

func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var evt Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request", "message": err.Error()})
		return
	}
	if evt.EventType == "" || evt.SessionID == "" {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: eventType and sessionId"})
		return
	}

	result, err := h.service.HandleEvent(r.Context(), evt)
	if err != nil {
		h.log.Error("analytics event failed", "event_type", evt.EventType, "session_id", evt.SessionID, "error", err)
		apierr.Write(w, err, "Failed to record analytics event", h.verbose)
		return
	}
	apierr.JSON(w, http.StatusOK, result)
}

func (h *Handler) TrackBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request", "message": err.Error()})
		return
	}
	raw := bytes.TrimSpace(req.Events)
	var events []json.RawMessage
	if len(raw) == 0 || raw[0] != '[' || json.Unmarshal(raw, &events) != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Events must be an array"})
		return
	}

	result := h.service.HandleBatch(r.Context(), events)
	if result.Errors > 0 {
		h.log.Warn("analytics batch had failures", "processed", result.Processed, "errors", result.Errors)
	}
	apierr.JSON(w, http.StatusOK, result)
}
