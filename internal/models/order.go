package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderPreparing OrderStatus = "Preparing"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderCompleted, OrderCancelled:
		return OrderStatus(s), nil
	default:
		return "", errs.Conflict("invalid order status: %q", s)
	}
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Active means the order still occupies kitchen or table resources.
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderConfirmed || s == OrderPreparing
}

type OrderType string

const (
	OrderDineIn   OrderType = "DineIn"
	OrderTakeaway OrderType = "Takeaway"
)

func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderDineIn, OrderTakeaway:
		return OrderType(s), nil
	default:
		return "", errs.Conflict("invalid order type: %q", s)
	}
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID          string      `bun:"order_id,pk" json:"order_id"`
	UserID      string      `bun:"user_id,nullzero" json:"user_id,omitempty"`
	TableID     string      `bun:"table_id,nullzero" json:"table_id,omitempty"`
	OrderType   OrderType   `bun:"order_type" json:"order_type"`
	Status      OrderStatus `bun:"status" json:"status"`
	TotalAmount float64     `bun:"total_amount" json:"total_amount"`
	CreatedAt   time.Time   `bun:"created_at" json:"created_at"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID           string  `bun:"order_item_id,pk" json:"order_item_id"`
	OrderID      string  `bun:"order_id" json:"order_id"`
	MenuItemID   string  `bun:"menu_item_id" json:"menu_item_id"`
	Quantity     int     `bun:"quantity" json:"quantity"`
	PriceAtOrder float64 `bun:"price_at_order" json:"price_at_order"`
}

type OrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type OrderRequest struct {
	UserID    string             `json:"user_id"`
	TableID   string             `json:"table_id,omitempty"`
	OrderType string             `json:"order_type"`
	Items     []OrderItemRequest `json:"items"`
}

// OrderWithItems is the order as rendered to callers, items included and,
// for dine-in, the heuristically matched booking time.
type OrderWithItems struct {
	Order
	Items       []OrderItem `json:"items"`
	BookingTime *time.Time  `json:"booking_time,omitempty"`
}
