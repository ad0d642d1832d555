// backend/internal/orderset/handler.go
package orderset

import (
	"net/http"

	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/logger"
)

type Handler struct {
	registry *Registry
	log      *logger.Logger
	verbose  bool
}

func NewHandler(registry *Registry, log *logger.Logger, verbose bool) *Handler {
	return &Handler{registry: registry, log: log, verbose: verbose}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sets, err := h.registry.List(r.Context())
	if err != nil {
		h.log.Error("list order sets", "error", err)
		apierr.Write(w, err, "Failed to fetch order sets", h.verbose)
		return
	}
	apierr.JSON(w, http.StatusOK, sets)
}
