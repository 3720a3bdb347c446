package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/booking/redis"
	"github.com/Leerm14/restaurant-back-end/internal/directory"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/kafka"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

// conflictWindow is the half-width of the occupancy window around a booking
// time. Two active bookings on one table conflict when their times are
// strictly less than this far apart in either direction.
const conflictWindow = 2 * time.Hour

type Service struct {
	db        *db.DB
	tables    *tablesdb.DB
	directory *directory.Directory
	bun       *bun.DB
	redis     *redis.Redis
	producer  *kafka.Producer
	logger    *logger.Logger
}

func NewService(
	database *db.DB,
	tables *tablesdb.DB,
	dir *directory.Directory,
	bunDB *bun.DB,
	rds *redis.Redis,
	producer *kafka.Producer,
	log *logger.Logger,
) *Service {
	return &Service{
		db:        database,
		tables:    tables,
		directory: dir,
		bun:       bunDB,
		redis:     rds,
		producer:  producer,
		logger:    log,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, booking *models.Booking) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishBookingEvent(ctx, eventType, booking.ID, booking); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("failed to publish %s for booking %s: %v", eventType, booking.ID, err))
	}
}

// Create reserves a table. The table row is locked for the duration of the
// transaction, so the conflict-window check and the status flip are atomic.
// The redis table lock in front of it only shortens the race window across
// instances; the database check is authoritative.
func (s *Service) Create(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if req.Guests <= 0 {
		return nil, errs.Validation("guest count must be positive")
	}
	if !req.BookingTime.After(time.Now()) {
		return nil, errs.Validation("booking time must be in the future")
	}

	if _, err := s.directory.GetUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		TableID:     req.TableID,
		BookingTime: req.BookingTime,
		Guests:      req.Guests,
		Status:      models.BookingConfirmed,
		CreatedAt:   time.Now().UTC(),
	}

	if s.redis != nil {
		locked, err := s.redis.LockTable(ctx, req.TableID, booking.ID)
		if err != nil {
			s.logger.Warn("REDIS", "table lock unavailable: "+err.Error())
		} else if !locked {
			return nil, errs.Conflict("table %s is being booked by another request", req.TableID)
		} else {
			defer func() {
				if err := s.redis.UnlockTable(ctx, req.TableID, booking.ID); err != nil {
					s.logger.Warn("REDIS", "table unlock failed: "+err.Error())
				}
			}()
		}
	}

	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		table, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, req.TableID)
		if err != nil {
			return err
		}
		if req.Guests > table.Capacity {
			return errs.Validation("guest count %d exceeds table capacity %d", req.Guests, table.Capacity)
		}

		conflict, err := s.db.WithTx(tx).ExistsConflicting(ctx, req.TableID,
			req.BookingTime.Add(-conflictWindow), req.BookingTime.Add(conflictWindow))
		if err != nil {
			return errs.Wrap(err, "checking booking conflicts")
		}
		if conflict {
			return errs.Conflict("table %s already has a booking within two hours of %s",
				req.TableID, req.BookingTime.Format(time.RFC3339))
		}

		if err := s.db.WithTx(tx).Create(ctx, booking); err != nil {
			return errs.Wrap(err, "creating booking")
		}
		return s.tables.WithTx(tx).UpdateStatus(ctx, req.TableID, models.TableBooked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("table %s at %s for %d guests",
		booking.TableID, booking.BookingTime.Format(time.RFC3339), booking.Guests))
	s.publish(ctx, "booking_created", booking)
	return booking, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.db.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.db.ListByUser(ctx, userID)
}

func (s *Service) ListByTable(ctx context.Context, tableID string) ([]models.Booking, error) {
	return s.db.ListByTable(ctx, tableID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	return s.db.List(ctx, limit, offset)
}

// Update moves a booking to a new table, time or party size. The conflict
// window is re-checked against the target table, ignoring the booking itself.
// On a table swap the old table is released and the new one marked Booked.
func (s *Service) Update(ctx context.Context, id string, req models.BookingRequest) (*models.Booking, error) {
	if req.Guests <= 0 {
		return nil, errs.Validation("guest count must be positive")
	}
	if !req.BookingTime.After(time.Now()) {
		return nil, errs.Validation("booking time must be in the future")
	}

	var updated *models.Booking
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		table, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, req.TableID)
		if err != nil {
			return err
		}

		booking, err := s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return errs.Conflict("booking %s is %s and cannot be changed", id, booking.Status)
		}
		if req.Guests > table.Capacity {
			return errs.Validation("guest count %d exceeds table capacity %d", req.Guests, table.Capacity)
		}

		conflict, err := s.db.WithTx(tx).ExistsConflictingExcept(ctx, req.TableID, id,
			req.BookingTime.Add(-conflictWindow), req.BookingTime.Add(conflictWindow))
		if err != nil {
			return errs.Wrap(err, "checking booking conflicts")
		}
		if conflict {
			return errs.Conflict("table %s already has a booking within two hours of %s",
				req.TableID, req.BookingTime.Format(time.RFC3339))
		}

		oldTableID := booking.TableID
		booking.TableID = req.TableID
		booking.BookingTime = req.BookingTime
		booking.Guests = req.Guests
		if err := s.db.WithTx(tx).Update(ctx, booking); err != nil {
			return err
		}

		if oldTableID != req.TableID {
			if err := s.releaseTable(ctx, tx, oldTableID); err != nil {
				return err
			}
			if err := s.tables.WithTx(tx).UpdateStatus(ctx, req.TableID, models.TableBooked); err != nil {
				return err
			}
		}
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("UPDATE", id, fmt.Sprintf("moved to table %s at %s",
		updated.TableID, updated.BookingTime.Format(time.RFC3339)))
	s.publish(ctx, "booking_updated", updated)
	return updated, nil
}

// CheckIn seats the party: the booking's table flips to Used. The booking
// itself stays Confirmed until payment or explicit completion.
func (s *Service) CheckIn(ctx context.Context, id string) (*models.Booking, error) {
	var booking *models.Booking
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		table, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID)
		if err != nil {
			return err
		}
		if table.Status == models.TableUsed {
			return errs.Conflict("table %s is already in use", table.ID)
		}

		booking, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !booking.Status.Active() {
			return errs.Conflict("booking %s is %s and cannot check in", id, booking.Status)
		}
		return s.tables.WithTx(tx).UpdateStatus(ctx, booking.TableID, models.TableUsed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("CHECKIN", id, "party seated at table "+booking.TableID)
	s.publish(ctx, "booking_checked_in", booking)
	return booking, nil
}

// Cancel voids an active booking and releases its table. Cancelling a
// Completed or already Cancelled booking is a conflict.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.close(ctx, id, models.BookingCancelled)
	if err != nil {
		return nil, err
	}
	s.logger.LogBooking("CANCEL", id, "booking cancelled, table "+booking.TableID+" released")
	s.publish(ctx, "booking_cancelled", booking)
	return booking, nil
}

// Complete closes out a booking whose visit has concluded and frees the
// table. The payment cascade calls this path for dine-in orders.
func (s *Service) Complete(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.close(ctx, id, models.BookingCompleted)
	if err != nil {
		return nil, err
	}
	s.logger.LogBooking("COMPLETE", id, "booking completed, table "+booking.TableID+" released")
	s.publish(ctx, "booking_completed", booking)
	return booking, nil
}

func (s *Service) close(ctx context.Context, id string, terminal models.BookingStatus) (*models.Booking, error) {
	var booking *models.Booking
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Unlocked read to learn the table, then lock table before booking
		// to keep the one total lock order.
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID); err != nil {
			return err
		}

		booking, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return errs.Conflict("booking %s is already %s", id, booking.Status)
		}
		booking.Status = terminal
		if err := s.db.WithTx(tx).UpdateStatus(ctx, id, terminal); err != nil {
			return err
		}
		return s.releaseTable(ctx, tx, booking.TableID)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// releaseTable sets the table back to Available unless another active booking
// still claims it, in which case it stays Booked.
func (s *Service) releaseTable(ctx context.Context, tx bun.Tx, tableID string) error {
	remaining, err := s.db.WithTx(tx).ListActiveByTable(ctx, tableID)
	if err != nil {
		return errs.Wrap(err, "listing remaining bookings")
	}
	status := models.TableAvailable
	if len(remaining) > 0 {
		status = models.TableBooked
	}
	return s.tables.WithTx(tx).UpdateStatus(ctx, tableID, status)
}

// UpdateStatus applies an arbitrary status transition with the table side
// effects each status implies: Confirmed re-marks the table Booked, terminal
// statuses release it.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	parsed, err := models.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}

	switch parsed {
	case models.BookingCancelled:
		return s.Cancel(ctx, id)
	case models.BookingCompleted:
		return s.Complete(ctx, id)
	}

	var booking *models.Booking
	err = s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID); err != nil {
			return err
		}

		booking, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return errs.Conflict("booking %s is already %s", id, booking.Status)
		}
		booking.Status = parsed
		if err := s.db.WithTx(tx).UpdateStatus(ctx, id, parsed); err != nil {
			return err
		}
		if parsed == models.BookingConfirmed {
			return s.tables.WithTx(tx).UpdateStatus(ctx, booking.TableID, models.TableBooked)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("STATUS", id, "booking -> "+string(parsed))
	s.publish(ctx, "booking_updated", booking)
	return booking, nil
}

// Delete removes a booking outright. An active booking releases its table
// first.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID); err != nil {
			return err
		}

		booking, err := s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.db.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		if booking.Status.Active() {
			return s.releaseTable(ctx, tx, booking.TableID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.LogBooking("DELETE", id, "booking removed")
	return nil
}
