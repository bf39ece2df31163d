package reports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tahmidhoque/vstop-backend/internal/common"
)

// Handler wires the reports service to HTTP.
type Handler struct {
	Svc *Service
}

// Sales returns per-day trading aggregates for an optional date range.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reports service not configured", nil)
		return
	}
	to := h.Svc.now()
	from := to.AddDate(0, 0, -h.Svc.rangeDays())
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date, expected YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date, expected YYYY-MM-DD", nil)
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return
	}
	days, err := h.Svc.SalesDaily(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to compute sales report", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": days})
}

// TopProducts returns the best selling products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reports service not configured", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := h.Svc.TopProducts(r.Context(), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to compute product ranking", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": top})
}

// Overview returns the default trading window summary.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reports service not configured", nil)
		return
	}
	overview, err := h.Svc.Overview(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to compute overview", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": overview})
}
