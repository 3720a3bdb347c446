package table_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/tables"
)

type Handler struct {
	Service *tables.Service
	Logger  *logger.Logger
}

func NewHandler(service *tables.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("API", "failed to encode response: "+err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errs.HTTPStatus(err))
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableNumber int `json:"table_number"`
		Capacity    int `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.Service.Create(r.Context(), req.TableNumber, req.Capacity)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTable: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, table)
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	table, err := h.Service.Get(r.Context(), tableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) GetTableByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		http.Error(w, "Invalid table number", http.StatusBadRequest)
		return
	}

	table, err := h.Service.GetByNumber(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		list, err := h.Service.ListByStatus(r.Context(), status)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, list)
		return
	}

	list, err := h.Service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	var req struct {
		TableNumber int `json:"table_number"`
		Capacity    int `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.Service.Update(r.Context(), tableID, req.TableNumber, req.Capacity)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateTable: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) UpdateTableStatus(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.Service.SetStatus(r.Context(), tableID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateTableStatus: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	if err := h.Service.Delete(r.Context(), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.CountStatistics(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// GetStatusAtTime projects table availability at a future instant, passed as
// RFC3339 in the "at" query parameter.
func (h *Handler) GetStatusAtTime(w http.ResponseWriter, r *http.Request) {
	atParam := r.URL.Query().Get("at")
	if atParam == "" {
		http.Error(w, "query parameter 'at' is required", http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		http.Error(w, "Invalid time: "+err.Error(), http.StatusBadRequest)
		return
	}

	projection, err := h.Service.StatusAtTime(r.Context(), at)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, projection)
}
