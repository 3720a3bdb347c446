package models

import (
	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
)

type TableStatus string

const (
	TableAvailable TableStatus = "Available"
	TableBooked    TableStatus = "Booked"
	TableUsed      TableStatus = "Used"
	TableCleaning  TableStatus = "Cleaning"
)

// ParseTableStatus rejects unknown status strings at the boundary.
func ParseTableStatus(s string) (TableStatus, error) {
	switch TableStatus(s) {
	case TableAvailable, TableBooked, TableUsed, TableCleaning:
		return TableStatus(s), nil
	default:
		return "", errs.Conflict("invalid table status: %q", s)
	}
}

type Table struct {
	bun.BaseModel `bun:"table:tables"`

	ID          string      `bun:"table_id,pk" json:"table_id"`
	TableNumber int         `bun:"table_number,unique" json:"table_number"`
	Capacity    int         `bun:"capacity" json:"capacity"`
	Status      TableStatus `bun:"status" json:"status"`
}

type TableCountStats struct {
	Total    int                 `json:"total"`
	ByStatus map[TableStatus]int `json:"by_status"`
}
