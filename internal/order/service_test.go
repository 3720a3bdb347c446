package order_test

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
	"github.com/Leerm14/restaurant-back-end/internal/directory"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/order"
	orderdb "github.com/Leerm14/restaurant-back-end/internal/order/db"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

type fixture struct {
	bun      *bun.DB
	service  *order.Service
	bookings *bookingdb.DB
	tables   *tablesdb.DB
	userID   string
	tableID  string
	burger   *models.MenuItem
	soup     *models.MenuItem
	special  *models.MenuItem // Unavailable
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
		(*models.Order)(nil), (*models.OrderItem)(nil), (*models.MenuItem)(nil),
		(*models.Payment)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	user := &models.User{ID: uuid.New().String(), FullName: "Test Diner"}
	table := &models.Table{ID: uuid.New().String(), TableNumber: 1, Capacity: 4, Status: models.TableAvailable}
	burger := &models.MenuItem{ID: uuid.New().String(), Name: "Burger", Price: 10, Status: models.MenuItemAvailable}
	soup := &models.MenuItem{ID: uuid.New().String(), Name: "Soup", Price: 5, Status: models.MenuItemAvailable}
	special := &models.MenuItem{ID: uuid.New().String(), Name: "Special", Price: 20, Status: models.MenuItemUnavailable}
	for _, row := range []interface{}{user, table, burger, soup, special} {
		if _, err := bunDB.NewInsert().Model(row).Exec(ctx); err != nil {
			t.Fatalf("Failed to insert fixture row: %v", err)
		}
	}

	bookings := bookingdb.New(bunDB)
	tables := tablesdb.New(bunDB)
	service := order.NewService(orderdb.New(bunDB), bookings, tables, directory.New(bunDB), bunDB, nil, logger.NewLogger())

	return &fixture{
		bun:      bunDB,
		service:  service,
		bookings: bookings,
		tables:   tables,
		userID:   user.ID,
		tableID:  table.ID,
		burger:   burger,
		soup:     soup,
		special:  special,
	}
}

// addBooking plants an active booking so dine-in orders qualify.
func (f *fixture) addBooking(t *testing.T, at time.Time, status models.BookingStatus) *models.Booking {
	b := &models.Booking{
		ID:          uuid.New().String(),
		UserID:      f.userID,
		TableID:     f.tableID,
		BookingTime: at,
		Guests:      2,
		Status:      status,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	return b
}

func TestCreateTakeawayOrder(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items: []models.OrderItemRequest{
			{MenuItemID: f.burger.ID, Quantity: 2},
			{MenuItemID: f.soup.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, created.Status)
	assert.Equal(t, 25.0, created.TotalAmount)
	assert.Len(t, created.Items, 2)
}

func TestCreateOrderValidation(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	_, err := f.service.Create(ctx, models.OrderRequest{
		UserID: f.userID, OrderType: "Takeaway", Items: nil,
	})
	assert.True(t, errs.IsValidation(err), "empty item list should be rejected")

	_, err = f.service.Create(ctx, models.OrderRequest{
		UserID: f.userID, OrderType: "Takeaway", TableID: f.tableID,
		Items: []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	assert.True(t, errs.IsValidation(err), "takeaway with a table should be rejected")

	_, err = f.service.Create(ctx, models.OrderRequest{
		UserID: f.userID, OrderType: "DineIn",
		Items: []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	assert.True(t, errs.IsValidation(err), "dine-in without a table should be rejected")

	_, err = f.service.Create(ctx, models.OrderRequest{
		UserID: f.userID, OrderType: "Takeaway",
		Items: []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 0}},
	})
	assert.True(t, errs.IsValidation(err), "zero quantity should be rejected")
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items: []models.OrderItemRequest{
			{MenuItemID: f.burger.ID, Quantity: 2},
			{MenuItemID: f.soup.ID, Quantity: 1},
			{MenuItemID: f.burger.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, created.Items, 2)
	assert.Equal(t, f.burger.ID, created.Items[0].MenuItemID, "first-seen line order preserved")
	assert.Equal(t, 5, created.Items[0].Quantity)
	assert.Equal(t, 55.0, created.TotalAmount)
}

func TestCreateOrderUnavailableItem(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	_, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.special.ID, Quantity: 1}},
	})
	assert.True(t, errs.IsConflict(err))
}

func TestCreateDineInRequiresBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	req := models.OrderRequest{
		UserID:    f.userID,
		TableID:   f.tableID,
		OrderType: "DineIn",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	}

	_, err := f.service.Create(ctx, req)
	assert.True(t, errs.IsConflict(err), "no booking on the table yet")

	// A stale booking from two days ago does not qualify either.
	stale := f.addBooking(t, time.Now().Add(-48*time.Hour), models.BookingConfirmed)
	_, err = f.service.Create(ctx, req)
	assert.True(t, errs.IsConflict(err))
	require.NoError(t, f.bookings.UpdateStatus(ctx, stale.ID, models.BookingCancelled))

	// A current booking qualifies, and a Pending one is re-confirmed.
	b := f.addBooking(t, time.Now().Add(time.Hour), models.BookingPending)
	created, err := f.service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDineIn, created.OrderType)

	confirmed, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)
}

func TestPriceSnapshotSurvivesMenuChange(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.bun.NewUpdate().
		Model((*models.MenuItem)(nil)).
		Set("price = ?", 99.0).
		Where("menu_item_id = ?", f.burger.ID).
		Exec(ctx)
	require.NoError(t, err)

	stored, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Items[0].PriceAtOrder)
	assert.Equal(t, 10.0, stored.TotalAmount)
}

func TestUpdateOrderReplacesItems(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, created.ID, []models.OrderItemRequest{
		{MenuItemID: f.soup.ID, Quantity: 3},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assert.Equal(t, f.soup.ID, updated.Items[0].MenuItemID)
	assert.Equal(t, 15.0, updated.TotalAmount)
}

func TestUpdateTerminalOrderRejected(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.service.Update(ctx, created.ID, []models.OrderItemRequest{
		{MenuItemID: f.soup.ID, Quantity: 1},
	})
	assert.True(t, errs.IsConflict(err))

	_, err = f.service.Cancel(ctx, created.ID)
	assert.True(t, errs.IsConflict(err), "double cancel should conflict")
}

func TestCancelDineInReleasesBookingAndTable(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	b := f.addBooking(t, time.Now().Add(time.Hour), models.BookingConfirmed)
	require.NoError(t, f.tables.UpdateStatus(ctx, f.tableID, models.TableBooked))

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		TableID:   f.tableID,
		OrderType: "DineIn",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	booking, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)

	table, err := f.tables.GetByID(ctx, f.tableID)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)
}

func TestCancelDineInReleasesTableWithoutBooking(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	b := f.addBooking(t, time.Now().Add(time.Hour), models.BookingConfirmed)
	require.NoError(t, f.tables.UpdateStatus(ctx, f.tableID, models.TableBooked))

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		TableID:   f.tableID,
		OrderType: "DineIn",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// The booking is resolved out of band, so the cancel finds nothing to
	// claim. The table is freed regardless.
	require.NoError(t, f.bookings.UpdateStatus(ctx, b.ID, models.BookingCancelled))

	_, err = f.service.Cancel(ctx, created.ID)
	require.NoError(t, err)

	table, err := f.tables.GetByID(ctx, f.tableID)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)
}

func TestGetAttachesBookingTime(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	at := time.Now().Add(time.Hour).Truncate(time.Second)
	f.addBooking(t, at, models.BookingConfirmed)

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		TableID:   f.tableID,
		OrderType: "DineIn",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	stored, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BookingTime)
	assert.True(t, stored.BookingTime.Equal(at))
}

func TestDeleteOrder(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, created.ID))
	_, err = f.service.Get(ctx, created.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestDeleteOrderWithPaymentRejected(t *testing.T) {
	f := setup(t)
	defer f.bun.Close()
	ctx := context.Background()

	created, err := f.service.Create(ctx, models.OrderRequest{
		UserID:    f.userID,
		OrderType: "Takeaway",
		Items:     []models.OrderItemRequest{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	p := &models.Payment{
		ID:        uuid.New().String(),
		OrderID:   created.ID,
		Amount:    created.TotalAmount,
		Method:    models.MethodCash,
		Status:    models.PaymentPending,
		CreatedAt: time.Now(),
	}
	_, err = f.bun.NewInsert().Model(p).Exec(ctx)
	require.NoError(t, err)

	err = f.service.Delete(ctx, created.ID)
	assert.True(t, errs.IsConflict(err))
}
