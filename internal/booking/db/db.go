package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/models"
)

type DB struct {
	bun bun.IDB
	pg  bool
}

func New(b *bun.DB) *DB {
	return &DB{bun: b, pg: b.Dialect().Name() == dialect.PG}
}

func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{bun: tx, pg: d.pg}
}

func (d *DB) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if d.pg {
		return q.For("UPDATE")
	}
	return q
}

func (d *DB) Create(ctx context.Context, booking *models.Booking) error {
	_, err := d.bun.NewInsert().Model(booking).Exec(ctx)
	return err
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetByIDForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.forUpdate(d.bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) Update(ctx context.Context, booking *models.Booking) error {
	res, err := d.bun.NewUpdate().
		Model(booking).
		Column("table_id", "booking_time", "guests", "status").
		Where("booking_id = ?", booking.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("booking %s not found", booking.ID)
	}
	return nil
}

func (d *DB) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	res, err := d.bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Where("booking_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("booking %s not found", id)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("booking_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("booking %s not found", id)
	}
	return nil
}

// ExistsConflicting runs the conflict-window test for a table: an active
// booking whose time falls strictly inside (start, end). Times exactly on
// the boundary do not conflict.
func (d *DB) ExistsConflicting(ctx context.Context, tableID string, start, end time.Time) (bool, error) {
	return d.bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("table_id = ?", tableID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Where("booking_time > ?", start).
		Where("booking_time < ?", end).
		Exists(ctx)
}

// ExistsConflictingExcept is ExistsConflicting ignoring one booking, used
// when re-checking a booking that is being moved.
func (d *DB) ExistsConflictingExcept(ctx context.Context, tableID, exceptID string, start, end time.Time) (bool, error) {
	return d.bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("table_id = ?", tableID).
		Where("booking_id != ?", exceptID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Where("booking_time > ?", start).
		Where("booking_time < ?", end).
		Exists(ctx)
}

// ListActiveByTable returns Pending/Confirmed bookings for a table,
// newest booking time first.
func (d *DB) ListActiveByTable(ctx context.Context, tableID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.bun.NewSelect().
		Model(&bookings).
		Where("table_id = ?", tableID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Order("booking_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListOverdue returns active bookings whose booking time is older than the
// cutoff, i.e. whose seating grace period has elapsed.
func (d *DB) ListOverdue(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.bun.NewSelect().
		Model(&bookings).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Where("booking_time < ?", cutoff).
		Order("booking_time").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("booking_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (d *DB) ListByTable(ctx context.Context, tableID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.bun.NewSelect().
		Model(&bookings).
		Where("table_id = ?", tableID).
		Order("booking_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (d *DB) List(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	q := d.bun.NewSelect().
		Model(&bookings).
		Order("booking_time DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListConflictingInWindow returns active bookings across all tables whose
// time falls inside (start, end), for the status-at-time projection.
func (d *DB) ListConflictingInWindow(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.bun.NewSelect().
		Model(&bookings).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Where("booking_time > ?", start).
		Where("booking_time < ?", end).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
