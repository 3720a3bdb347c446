package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "Pending"
	PaymentSuccessful PaymentStatus = "Successful"
	PaymentFailed     PaymentStatus = "Failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentSuccessful, PaymentFailed:
		return PaymentStatus(s), nil
	default:
		return "", errs.Conflict("invalid payment status: %q", s)
	}
}

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "Cash"
	MethodQRCode     PaymentMethod = "QRCode"
	MethodCreditCard PaymentMethod = "CreditCard"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCash, MethodQRCode, MethodCreditCard:
		return PaymentMethod(s), nil
	default:
		return "", errs.Conflict("invalid payment method: %q", s)
	}
}

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID            string        `bun:"payment_id,pk" json:"payment_id"`
	OrderID       string        `bun:"order_id,unique" json:"order_id"`
	Amount        float64       `bun:"amount" json:"amount"`
	Method        PaymentMethod `bun:"method" json:"method"`
	Status        PaymentStatus `bun:"status" json:"status"`
	TransactionID string        `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `bun:"created_at" json:"created_at"`
	PaidAt        time.Time     `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
}

type PaymentRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"method"`
}

// ConfirmResult enumerates everything a payment confirmation changed, so the
// full cascade can be asserted rather than observed through side effects.
type ConfirmResult struct {
	Payment          *Payment `json:"payment"`
	OrderCompleted   bool     `json:"order_completed"`
	BookingCompleted string   `json:"booking_completed,omitempty"`
	TableReleased    string   `json:"table_released,omitempty"`
	AlreadyPaid      bool     `json:"already_paid"`
}

// GatewayEvent is the asynchronous confirm/fail message delivered by the
// external payment gateway, keyed by order id.
type GatewayEvent struct {
	OrderID   string    `json:"order_id"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"` // "succeeded" or "failed"
	Timestamp time.Time `json:"timestamp"`
}
