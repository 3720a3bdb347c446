package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingCompleted BookingStatus = "Completed"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return BookingStatus(s), nil
	default:
		return "", errs.Conflict("invalid booking status: %q", s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// Active means the booking still holds a claim on its table.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          string        `bun:"booking_id,pk" json:"booking_id"`
	UserID      string        `bun:"user_id" json:"user_id"`
	TableID     string        `bun:"table_id" json:"table_id"`
	BookingTime time.Time     `bun:"booking_time" json:"booking_time"`
	Guests      int           `bun:"guests" json:"guests"`
	Status      BookingStatus `bun:"status" json:"status"`
	CreatedAt   time.Time     `bun:"created_at" json:"created_at"`
}

type BookingRequest struct {
	UserID      string    `json:"user_id"`
	TableID     string    `json:"table_id"`
	BookingTime time.Time `json:"booking_time"`
	Guests      int       `json:"guests"`
}
