package booking_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Leerm14/restaurant-back-end/internal/booking"
	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/directory"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	orderdb "github.com/Leerm14/restaurant-back-end/internal/order/db"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

type fixture struct {
	bun      *bun.DB
	service  *booking.Service
	bookings *bookingdb.DB
	tables   *tablesdb.DB
	orders   *orderdb.DB
	userID   string
	tableID  string
}

func setup(t *testing.T) *fixture {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.User)(nil), (*models.Table)(nil), (*models.Booking)(nil),
		(*models.Order)(nil), (*models.OrderItem)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	user := &models.User{ID: uuid.New().String(), FullName: "Test Diner"}
	if _, err := bunDB.NewInsert().Model(user).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}
	table := &models.Table{ID: uuid.New().String(), TableNumber: 1, Capacity: 4, Status: models.TableAvailable}
	if _, err := bunDB.NewInsert().Model(table).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert table: %v", err)
	}

	bookings := bookingdb.New(bunDB)
	tables := tablesdb.New(bunDB)
	service := booking.NewService(bookings, tables, directory.New(bunDB), bunDB, nil, nil, logger.NewLogger())

	return &fixture{
		bun:      bunDB,
		service:  service,
		bookings: bookings,
		tables:   tables,
		orders:   orderdb.New(bunDB),
		userID:   user.ID,
		tableID:  table.ID,
	}
}

func (f *fixture) request(at time.Time, guests int) models.BookingRequest {
	return models.BookingRequest{
		UserID:      f.userID,
		TableID:     f.tableID,
		BookingTime: at,
		Guests:      guests,
	}
}

func (f *fixture) tableStatus(t *testing.T) models.TableStatus {
	table, err := f.tables.GetByID(context.Background(), f.tableID)
	require.NoError(t, err)
	return table.Status
}

func TestCreateBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	at := time.Now().Add(48 * time.Hour)
	created, err := f.service.Create(ctx, f.request(at, 2))
	require.NoError(t, err)

	assert.Equal(t, models.BookingConfirmed, created.Status)
	assert.Equal(t, models.TableBooked, f.tableStatus(t))

	stored, err := f.service.Get(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, f.userID, stored.UserID)
	assert.Equal(t, 2, stored.Guests)
}

func TestCreateBookingValidation(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)

	_, err := f.service.Create(ctx, f.request(future, 0))
	assert.True(t, errs.IsValidation(err), "zero guests should be rejected")

	_, err = f.service.Create(ctx, f.request(time.Now().Add(-time.Hour), 2))
	assert.True(t, errs.IsValidation(err), "past booking time should be rejected")

	_, err = f.service.Create(ctx, f.request(future, 5))
	assert.True(t, errs.IsValidation(err), "party larger than capacity should be rejected")

	req := f.request(future, 2)
	req.UserID = "missing"
	_, err = f.service.Create(ctx, req)
	assert.True(t, errs.IsNotFound(err), "unknown user should be rejected")
}

func TestCreateBookingConflictWindow(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	base := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
	_, err := f.service.Create(ctx, f.request(base, 2))
	require.NoError(t, err)

	// 1 hour later falls strictly inside the two-hour window.
	_, err = f.service.Create(ctx, f.request(base.Add(time.Hour), 2))
	assert.True(t, errs.IsConflict(err))

	// 90 minutes earlier also conflicts.
	_, err = f.service.Create(ctx, f.request(base.Add(-90*time.Minute), 2))
	assert.True(t, errs.IsConflict(err))

	// Exactly 2 hours later sits on the boundary and is allowed.
	_, err = f.service.Create(ctx, f.request(base.Add(2*time.Hour), 2))
	assert.NoError(t, err)
}

func TestCancelBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.request(time.Now().Add(48*time.Hour), 2))
	require.NoError(t, err)
	require.Equal(t, models.TableBooked, f.tableStatus(t))

	cancelled, err := f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))

	_, err = f.service.Cancel(ctx, created.ID)
	assert.True(t, errs.IsConflict(err), "double cancel should conflict")
}

func TestCancelKeepsTableBookedForOtherBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	base := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
	first, err := f.service.Create(ctx, f.request(base, 2))
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.request(base.Add(3*time.Hour), 2))
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, f.tableStatus(t), "second booking still claims the table")
}

func TestCompleteBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.request(time.Now().Add(48*time.Hour), 2))
	require.NoError(t, err)

	completed, err := f.service.Complete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, completed.Status)
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))

	_, err = f.service.Cancel(ctx, created.ID)
	assert.True(t, errs.IsConflict(err), "completed booking cannot be cancelled")
}

func TestCheckIn(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.request(time.Now().Add(48*time.Hour), 2))
	require.NoError(t, err)

	checked, err := f.service.CheckIn(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, checked.Status)
	assert.Equal(t, models.TableUsed, f.tableStatus(t))

	_, err = f.service.CheckIn(ctx, created.ID)
	assert.True(t, errs.IsConflict(err), "table already in use")

	_, err = f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)
	_, err = f.service.CheckIn(ctx, created.ID)
	assert.True(t, errs.IsConflict(err), "cancelled booking cannot check in")
}

func TestUpdateBookingMovesTable(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	second := &models.Table{ID: uuid.New().String(), TableNumber: 2, Capacity: 6, Status: models.TableAvailable}
	_, err := f.bun.NewInsert().Model(second).Exec(ctx)
	require.NoError(t, err)

	at := time.Now().Add(48 * time.Hour)
	created, err := f.service.Create(ctx, f.request(at, 2))
	require.NoError(t, err)

	req := f.request(at, 5)
	req.TableID = second.ID
	updated, err := f.service.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, second.ID, updated.TableID)
	assert.Equal(t, 5, updated.Guests)

	assert.Equal(t, models.TableAvailable, f.tableStatus(t), "old table released")
	moved, err := f.tables.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, moved.Status)
}

func TestUpdateBookingRechecksConflicts(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	base := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
	_, err := f.service.Create(ctx, f.request(base, 2))
	require.NoError(t, err)
	second, err := f.service.Create(ctx, f.request(base.Add(4*time.Hour), 2))
	require.NoError(t, err)

	// Moving the second booking next to the first must fail.
	_, err = f.service.Update(ctx, second.ID, f.request(base.Add(time.Hour), 2))
	assert.True(t, errs.IsConflict(err))

	// Keeping its own slot is fine; the booking does not conflict with itself.
	updated, err := f.service.Update(ctx, second.ID, f.request(base.Add(4*time.Hour), 3))
	assert.NoError(t, err)
	assert.Equal(t, 3, updated.Guests)
}

func TestDeleteBookingReleasesTable(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.request(time.Now().Add(48*time.Hour), 2))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, created.ID))
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))

	_, err = f.service.Get(ctx, created.ID)
	assert.True(t, errs.IsNotFound(err))
}
