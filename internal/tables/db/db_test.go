package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Table)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create tables table: %v", err)
	}

	return db.New(bunDB), bunDB
}

func newTable(number, capacity int, status models.TableStatus) *models.Table {
	return &models.Table{
		ID:          uuid.New().String(),
		TableNumber: number,
		Capacity:    capacity,
		Status:      status,
	}
}

func TestCreateAndGetTable(t *testing.T) {
	tableDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	table := newTable(7, 4, models.TableAvailable)
	require.NoError(t, tableDB.Create(ctx, table))

	got, err := tableDB.GetByID(ctx, table.ID)
	assert.NoError(t, err)
	assert.Equal(t, 7, got.TableNumber)
	assert.Equal(t, models.TableAvailable, got.Status)

	byNumber, err := tableDB.GetByNumber(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, table.ID, byNumber.ID)

	_, err = tableDB.GetByID(ctx, "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestExistsByNumber(t *testing.T) {
	tableDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	require.NoError(t, tableDB.Create(ctx, newTable(3, 2, models.TableAvailable)))

	exists, err := tableDB.ExistsByNumber(ctx, 3)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = tableDB.ExistsByNumber(ctx, 99)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateStatus(t *testing.T) {
	tableDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	table := newTable(1, 4, models.TableAvailable)
	require.NoError(t, tableDB.Create(ctx, table))

	require.NoError(t, tableDB.UpdateStatus(ctx, table.ID, models.TableBooked))
	got, err := tableDB.GetByID(ctx, table.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.TableBooked, got.Status)

	err = tableDB.UpdateStatus(ctx, "missing", models.TableBooked)
	assert.True(t, errs.IsNotFound(err))
}

func TestCountByStatus(t *testing.T) {
	tableDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	require.NoError(t, tableDB.Create(ctx, newTable(1, 2, models.TableAvailable)))
	require.NoError(t, tableDB.Create(ctx, newTable(2, 4, models.TableAvailable)))
	require.NoError(t, tableDB.Create(ctx, newTable(3, 4, models.TableBooked)))
	require.NoError(t, tableDB.Create(ctx, newTable(4, 6, models.TableUsed)))

	counts, err := tableDB.CountByStatus(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, counts[models.TableAvailable])
	assert.Equal(t, 1, counts[models.TableBooked])
	assert.Equal(t, 1, counts[models.TableUsed])
	assert.Equal(t, 0, counts[models.TableCleaning])
}

func TestDeleteTable(t *testing.T) {
	tableDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	table := newTable(5, 4, models.TableAvailable)
	require.NoError(t, tableDB.Create(ctx, table))

	assert.NoError(t, tableDB.Delete(ctx, table.ID))
	_, err := tableDB.GetByID(ctx, table.ID)
	assert.True(t, errs.IsNotFound(err))

	err = tableDB.Delete(ctx, table.ID)
	assert.True(t, errs.IsNotFound(err))
}
