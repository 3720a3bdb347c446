package models

import "github.com/uptrace/bun"

type MenuItemStatus string

const (
	MenuItemAvailable   MenuItemStatus = "Available"
	MenuItemUnavailable MenuItemStatus = "Unavailable"
)

// MenuItem is read-only to the core; only its price is ever copied out,
// snapshotted into OrderItem.PriceAtOrder.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ID     string         `bun:"menu_item_id,pk" json:"menu_item_id"`
	Name   string         `bun:"name" json:"name"`
	Price  float64        `bun:"price" json:"price"`
	Status MenuItemStatus `bun:"status" json:"status"`
}
