package analytics_api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Leerm14/restaurant-back-end/internal/analytics"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
)

type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("API", "failed to encode response: "+err.Error())
	}
}

// GetRevenue reports revenue between "from" and "to" (RFC3339). "to"
// defaults to now, "from" to 30 days earlier.
func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	to := time.Now()
	if s := q.Get("to"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "Invalid 'to' time: "+err.Error(), http.StatusBadRequest)
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -30)
	if s := q.Get("from"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "Invalid 'from' time: "+err.Error(), http.StatusBadRequest)
			return
		}
		from = parsed
	}

	report, err := h.Service.Revenue(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), errs.HTTPStatus(err))
		return
	}
	h.writeJSON(w, report)
}

func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	stats, err := h.Service.MonthlyOrderStats(r.Context(), year)
	if err != nil {
		http.Error(w, err.Error(), errs.HTTPStatus(err))
		return
	}
	h.writeJSON(w, stats)
}
