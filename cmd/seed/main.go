package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/config"
	"github.com/Leerm14/restaurant-back-end/internal/database"
	"github.com/Leerm14/restaurant-back-end/internal/database/migrations"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
)

// Development helper: applies migrations and loads a small sample dataset so
// the API can be exercised without a client creating everything by hand.
func main() {
	ctx := context.Background()

	appLog := logger.NewLogger()
	defer appLog.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Connect(cfg.Database, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migrations.NewRunner(db, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	log.Println("Seeding sample data...")
	if err := seedData(ctx, db); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	log.Println("Done.")
}

func seedData(ctx context.Context, db *bun.DB) error {
	users := []models.User{
		{ID: uuid.New().String(), FullName: "Alice Wonderland", Email: "alice@example.com", PhoneNumber: "+10000000001"},
		{ID: uuid.New().String(), FullName: "Bob Builder", Email: "bob@example.com", PhoneNumber: "+10000000002"},
	}
	if _, err := db.NewInsert().Model(&users).Exec(ctx); err != nil {
		return err
	}

	menu := []models.MenuItem{
		{ID: uuid.New().String(), Name: "Margherita Pizza", Price: 12.50, Status: models.MenuItemAvailable},
		{ID: uuid.New().String(), Name: "Caesar Salad", Price: 8.00, Status: models.MenuItemAvailable},
		{ID: uuid.New().String(), Name: "Tiramisu", Price: 6.50, Status: models.MenuItemAvailable},
		{ID: uuid.New().String(), Name: "Seasonal Special", Price: 18.00, Status: models.MenuItemUnavailable},
	}
	if _, err := db.NewInsert().Model(&menu).Exec(ctx); err != nil {
		return err
	}

	restaurantTables := make([]models.Table, 0, 8)
	for i := 1; i <= 8; i++ {
		capacity := 2
		if i > 4 {
			capacity = 4
		}
		if i == 8 {
			capacity = 8
		}
		restaurantTables = append(restaurantTables, models.Table{
			ID:          uuid.New().String(),
			TableNumber: i,
			Capacity:    capacity,
			Status:      models.TableAvailable,
		})
	}
	if _, err := db.NewInsert().Model(&restaurantTables).Exec(ctx); err != nil {
		return err
	}

	booking := models.Booking{
		ID:          uuid.New().String(),
		UserID:      users[0].ID,
		TableID:     restaurantTables[0].ID,
		BookingTime: time.Now().Add(24 * time.Hour).Truncate(time.Minute),
		Guests:      2,
		Status:      models.BookingConfirmed,
		CreatedAt:   time.Now(),
	}
	if _, err := db.NewInsert().Model(&booking).Exec(ctx); err != nil {
		return err
	}
	if _, err := db.NewUpdate().
		Model((*models.Table)(nil)).
		Set("status = ?", models.TableBooked).
		Where("table_id = ?", restaurantTables[0].ID).
		Exec(ctx); err != nil {
		return err
	}

	return nil
}
