package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leerm14/restaurant-back-end/internal/booking"
	"github.com/Leerm14/restaurant-back-end/internal/models"
)

// insertOverdueBooking bypasses the service's future-time validation to plant
// a booking whose grace period has already elapsed.
func (f *fixture) insertOverdueBooking(t *testing.T, age time.Duration) *models.Booking {
	b := &models.Booking{
		ID:          uuid.New().String(),
		UserID:      f.userID,
		TableID:     f.tableID,
		BookingTime: time.Now().Add(-age),
		Guests:      2,
		Status:      models.BookingConfirmed,
		CreatedAt:   time.Now().Add(-age - time.Hour),
	}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	require.NoError(t, f.tables.UpdateStatus(context.Background(), f.tableID, models.TableBooked))
	return b
}

func TestReconcilerCancelsNoShow(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	overdue := f.insertOverdueBooking(t, 3*time.Hour)
	r := booking.NewReconciler(f.service, f.orders, 2*time.Hour)
	r.RunOnce(ctx)

	resolved, err := f.service.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, resolved.Status)
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))
}

func TestReconcilerCompletesWhenOrderActive(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	overdue := f.insertOverdueBooking(t, 3*time.Hour)
	order := &models.Order{
		ID:        uuid.New().String(),
		UserID:    f.userID,
		TableID:   f.tableID,
		OrderType: models.OrderDineIn,
		Status:    models.OrderPreparing,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.orders.Create(ctx, order, nil))

	r := booking.NewReconciler(f.service, f.orders, 2*time.Hour)
	r.RunOnce(ctx)

	resolved, err := f.service.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, resolved.Status)
	assert.Equal(t, models.TableBooked, f.tableStatus(t), "live order keeps the table")
}

func TestReconcilerLeavesRecentBookingsAlone(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	recent := f.insertOverdueBooking(t, time.Hour) // inside the grace period
	r := booking.NewReconciler(f.service, f.orders, 2*time.Hour)
	r.RunOnce(ctx)

	resolved, err := f.service.Get(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, resolved.Status)
	assert.Equal(t, models.TableBooked, f.tableStatus(t))
}

func TestReconcilerKeepsUsedTable(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	overdue := f.insertOverdueBooking(t, 3*time.Hour)
	require.NoError(t, f.tables.UpdateStatus(ctx, f.tableID, models.TableUsed))

	r := booking.NewReconciler(f.service, f.orders, 2*time.Hour)
	r.RunOnce(ctx)

	resolved, err := f.service.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, resolved.Status)
	assert.Equal(t, models.TableUsed, f.tableStatus(t), "seated party keeps the table")
}

func TestReconcilerRerunIsNoOp(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	overdue := f.insertOverdueBooking(t, 3*time.Hour)
	r := booking.NewReconciler(f.service, f.orders, 2*time.Hour)
	r.RunOnce(ctx)
	r.RunOnce(ctx)

	resolved, err := f.service.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, resolved.Status)
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))
}
