// backend/internal/dashboard/handler.go
package dashboard

import (
	"net/http"

	"chat-funnel/internal/funnel"
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

func days(r *http.Request) int {
	return funnel.ParseDays(r.URL.Query().Get("days"))
}

func (h *Handler) fail(w http.ResponseWriter, err error, report, summary string) {
	h.log.Error("dashboard query failed", "report", report, "error", err)
	apierr.Write(w, err, summary, h.verbose)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Overview(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "overview", "Failed to fetch stats")
		return
	}
	apierr.JSON(w, http.StatusOK, stats)
}

func (h *Handler) OrderSets(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.OrderSetStats(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "order_sets", "Failed to fetch order set stats")
		return
	}
	apierr.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Dropoffs(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dropoffs(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "dropoffs", "Failed to fetch dropoff data")
		return
	}
	apierr.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.QuestionStats(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "questions", "Failed to fetch question stats")
		return
	}
	apierr.JSON(w, http.StatusOK, stats)
}

func (h *Handler) CompletionRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.CompletionRates(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "completion_rates", "Failed to fetch completion rates")
		return
	}
	apierr.JSON(w, http.StatusOK, rates)
}

// Report returns all five reports for one window in a single response.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context(), days(r))
	if err != nil {
		h.fail(w, err, "report", "Failed to fetch dashboard report")
		return
	}
	apierr.JSON(w, http.StatusOK, report)
}

func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearData(r.Context()); err != nil {
		h.fail(w, err, "clear_data", "Failed to clear data")
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "All analytics data cleared",
	})
}
