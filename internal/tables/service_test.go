package tables_test

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

	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/tables"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

func setup(t *testing.T) (*tables.Service, *bookingdb.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Table)(nil), (*models.Booking)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	bookings := bookingdb.New(bunDB)
	service := tables.NewService(tablesdb.New(bunDB), bookings, logger.NewLogger())
	return service, bookings, bunDB
}

func TestCreateTable(t *testing.T) {
	service, _, bunDB := setup(t)
	defer bunDB.Close()
	ctx := context.Background()

	created, err := service.Create(ctx, 5, 4)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, created.Status)

	_, err = service.Create(ctx, 5, 2)
	assert.True(t, errs.IsConflict(err), "duplicate table number")

	_, err = service.Create(ctx, 0, 2)
	assert.True(t, errs.IsValidation(err))
	_, err = service.Create(ctx, 6, 0)
	assert.True(t, errs.IsValidation(err))
}

func TestSetStatus(t *testing.T) {
	service, _, bunDB := setup(t)
	defer bunDB.Close()
	ctx := context.Background()

	created, err := service.Create(ctx, 1, 4)
	require.NoError(t, err)

	updated, err := service.SetStatus(ctx, created.ID, "Cleaning")
	require.NoError(t, err)
	assert.Equal(t, models.TableCleaning, updated.Status)

	_, err = service.SetStatus(ctx, created.ID, "Broken")
	assert.Error(t, err, "unknown status string rejected")
}

func TestCountStatistics(t *testing.T) {
	service, _, bunDB := setup(t)
	defer bunDB.Close()
	ctx := context.Background()

	t1, err := service.Create(ctx, 1, 2)
	require.NoError(t, err)
	_, err = service.Create(ctx, 2, 4)
	require.NoError(t, err)
	_, err = service.SetStatus(ctx, t1.ID, "Used")
	require.NoError(t, err)

	stats, err := service.CountStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.TableAvailable])
	assert.Equal(t, 1, stats.ByStatus[models.TableUsed])
}

func TestStatusAtTime(t *testing.T) {
	service, bookings, bunDB := setup(t)
	defer bunDB.Close()
	ctx := context.Background()

	booked, err := service.Create(ctx, 1, 4)
	require.NoError(t, err)
	free, err := service.Create(ctx, 2, 4)
	require.NoError(t, err)

	at := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
	require.NoError(t, bookings.Create(ctx, &models.Booking{
		ID:          uuid.New().String(),
		UserID:      "u1",
		TableID:     booked.ID,
		BookingTime: at,
		Guests:      2,
		Status:      models.BookingConfirmed,
		CreatedAt:   time.Now(),
	}))

	projection, err := service.StatusAtTime(ctx, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, projection[booked.ID])
	assert.Equal(t, models.TableAvailable, projection[free.ID])

	// Three hours out the window has passed; both tables project Available.
	projection, err = service.StatusAtTime(ctx, at.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, projection[booked.ID])

	// A cancelled booking never claims the table.
	_, err = bunDB.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.BookingCancelled).
		Where("table_id = ?", booked.ID).
		Exec(ctx)
	require.NoError(t, err)
	projection, err = service.StatusAtTime(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, projection[booked.ID])
}
