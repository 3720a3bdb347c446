package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

// conflictWindow is the half-width of the occupancy window around a booking
// time. A booking claims its table from two hours before to two hours after
// the reserved time, boundaries excluded.
const conflictWindow = 2 * time.Hour

type Service struct {
	db       *db.DB
	bookings *bookingdb.DB
	logger   *logger.Logger
}

func NewService(database *db.DB, bookings *bookingdb.DB, log *logger.Logger) *Service {
	return &Service{
		db:       database,
		bookings: bookings,
		logger:   log,
	}
}

// Create registers a table. Table numbers are unique; new tables start
// Available.
func (s *Service) Create(ctx context.Context, tableNumber, capacity int) (*models.Table, error) {
	if tableNumber <= 0 {
		return nil, errs.Validation("table number must be positive")
	}
	if capacity <= 0 {
		return nil, errs.Validation("capacity must be positive")
	}

	exists, err := s.db.ExistsByNumber(ctx, tableNumber)
	if err != nil {
		return nil, errs.Wrap(err, "checking table number")
	}
	if exists {
		return nil, errs.Conflict("table number %d already exists", tableNumber)
	}

	table := &models.Table{
		ID:          uuid.New().String(),
		TableNumber: tableNumber,
		Capacity:    capacity,
		Status:      models.TableAvailable,
	}
	if err := s.db.Create(ctx, table); err != nil {
		return nil, errs.Wrap(err, "creating table")
	}

	s.logger.LogDatabase("CREATE", "tables", fmt.Sprintf("table %d registered (%s)", tableNumber, table.ID))
	return table, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Table, error) {
	return s.db.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, tableNumber int) (*models.Table, error) {
	return s.db.GetByNumber(ctx, tableNumber)
}

func (s *Service) List(ctx context.Context) ([]models.Table, error) {
	return s.db.List(ctx)
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Table, error) {
	parsed, err := models.ParseTableStatus(status)
	if err != nil {
		return nil, err
	}
	return s.db.ListByStatus(ctx, parsed)
}

// Update changes a table's number and capacity. Status is managed through
// SetStatus and the booking/order flows, not here.
func (s *Service) Update(ctx context.Context, id string, tableNumber, capacity int) (*models.Table, error) {
	if tableNumber <= 0 {
		return nil, errs.Validation("table number must be positive")
	}
	if capacity <= 0 {
		return nil, errs.Validation("capacity must be positive")
	}

	table, err := s.db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if tableNumber != table.TableNumber {
		exists, err := s.db.ExistsByNumber(ctx, tableNumber)
		if err != nil {
			return nil, errs.Wrap(err, "checking table number")
		}
		if exists {
			return nil, errs.Conflict("table number %d already exists", tableNumber)
		}
	}

	table.TableNumber = tableNumber
	table.Capacity = capacity
	if err := s.db.Update(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}

// SetStatus writes any valid status without lifecycle checks. The registry
// stores what it is told; transition rules live with bookings, orders and
// payments.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Table, error) {
	parsed, err := models.ParseTableStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateStatus(ctx, id, parsed); err != nil {
		return nil, err
	}
	s.logger.LogDatabase("UPDATE", "tables", fmt.Sprintf("table %s -> %s", id, parsed))
	return s.db.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.LogDatabase("DELETE", "tables", "table "+id+" removed")
	return nil
}

// CountStatistics returns the table count per status plus the total.
func (s *Service) CountStatistics(ctx context.Context) (*models.TableCountStats, error) {
	counts, err := s.db.CountByStatus(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "counting tables")
	}
	stats := &models.TableCountStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// StatusAtTime projects each table's status at a future time: tables with an
// active booking inside the two-hour window around that time show as Booked,
// everything else as Available. Current physical status is deliberately
// ignored, it says nothing about a future instant.
func (s *Service) StatusAtTime(ctx context.Context, at time.Time) (map[string]models.TableStatus, error) {
	tables, err := s.db.List(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "listing tables")
	}

	booked, err := s.bookings.ListConflictingInWindow(ctx, at.Add(-conflictWindow), at.Add(conflictWindow))
	if err != nil {
		return nil, errs.Wrap(err, "listing bookings in window")
	}

	bookedTables := make(map[string]bool, len(booked))
	for _, b := range booked {
		bookedTables[b.TableID] = true
	}

	projection := make(map[string]models.TableStatus, len(tables))
	for _, t := range tables {
		if bookedTables[t.ID] {
			projection[t.ID] = models.TableBooked
		} else {
			projection[t.ID] = models.TableAvailable
		}
	}
	return projection, nil
}
