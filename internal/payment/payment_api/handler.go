package payment_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/payment"
)

type Handler struct {
	Service *payment.Service
	Logger  *logger.Logger
}

func NewHandler(service *payment.Service, log *logger.Logger) *Handler {
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

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.Service.Create(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePayment: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	p, err := h.Service.Get(r.Context(), paymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) GetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	p, err := h.Service.GetByOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		list, err := h.Service.ListByStatus(r.Context(), status)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, list)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	list, err := h.Service.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// ConfirmPayment settles the payment and runs the completion cascade.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Service.Confirm(r.Context(), paymentID, req.TransactionID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ConfirmPayment: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	p, err := h.Service.Fail(r.Context(), paymentID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("FailPayment: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.Service.UpdateStatus(r.Context(), paymentID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdatePaymentStatus: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// ChargeCard pushes a CreditCard payment through Stripe using a payment
// method id minted by the frontend.
func (h *Handler) ChargeCard(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	var req struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.PaymentMethodID == "" {
		http.Error(w, "payment_method_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.Service.Charge(r.Context(), paymentID, req.PaymentMethodID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ChargeCard: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetQRCode returns the payment's scannable reference as a PNG.
func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	png, err := h.Service.QRCode(r.Context(), paymentID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetQRCode: %v", err))
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// GatewayWebhook accepts the gateway's confirm/fail callback over HTTP, the
// same contract the Kafka consumer handles asynchronously.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	var event models.GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if event.OrderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.HandleGatewayEvent(r.Context(), event); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GatewayWebhook: %v", err))
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	if err := h.Service.Delete(r.Context(), paymentID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeletePayment: %v", err))
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
