package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/directory"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/kafka"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	"github.com/Leerm14/restaurant-back-end/internal/order/db"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

// Dine-in orders must be backed by a booking no older than this. Anything
// earlier belongs to a previous visit.
const bookingClaimAge = 24 * time.Hour

// A cancelled dine-in order also releases bookings up to this far in the
// future, so cancelling right after ordering ahead works.
const bookingClaimAhead = 48 * time.Hour

type Service struct {
	db        *db.DB
	bookings  *bookingdb.DB
	tables    *tablesdb.DB
	directory *directory.Directory
	bun       *bun.DB
	producer  *kafka.Producer
	logger    *logger.Logger
}

func NewService(
	database *db.DB,
	bookings *bookingdb.DB,
	tables *tablesdb.DB,
	dir *directory.Directory,
	bunDB *bun.DB,
	producer *kafka.Producer,
	log *logger.Logger,
) *Service {
	return &Service{
		db:        database,
		bookings:  bookings,
		tables:    tables,
		directory: dir,
		bun:       bunDB,
		producer:  producer,
		logger:    log,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishOrderEvent(ctx, eventType, order.ID, order); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("failed to publish %s for order %s: %v", eventType, order.ID, err))
	}
}

// mergeItems collapses duplicate menu item lines by summing quantities.
// First-seen order of the lines is preserved.
func mergeItems(items []models.OrderItemRequest) []models.OrderItemRequest {
	index := make(map[string]int, len(items))
	merged := make([]models.OrderItemRequest, 0, len(items))
	for _, item := range items {
		if i, seen := index[item.MenuItemID]; seen {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.MenuItemID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// Create places an order. Dine-in orders must name a table the user holds a
// recent active booking on; the booking is re-confirmed. Menu prices are
// snapshotted into the item lines at this moment.
func (s *Service) Create(ctx context.Context, req models.OrderRequest) (*models.OrderWithItems, error) {
	if len(req.Items) == 0 {
		return nil, errs.Validation("order must contain at least one item")
	}
	orderType, err := models.ParseOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	if orderType == models.OrderTakeaway && req.TableID != "" {
		return nil, errs.Validation("takeaway orders cannot reference a table")
	}
	if orderType == models.OrderDineIn && req.TableID == "" {
		return nil, errs.Validation("dine-in orders require a table")
	}

	merged := mergeItems(req.Items)
	for _, item := range merged {
		if item.Quantity <= 0 {
			return nil, errs.Validation("quantity for menu item %s must be positive", item.MenuItemID)
		}
	}

	if _, err := s.directory.GetUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		TableID:   req.TableID,
		OrderType: orderType,
		Status:    models.OrderPending,
		CreatedAt: time.Now().UTC(),
	}

	var items []models.OrderItem
	err = s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if orderType == models.OrderDineIn {
			if _, err := s.tables.WithTx(tx).GetByIDForUpdate(ctx, req.TableID); err != nil {
				return err
			}
			claimed, err := s.findClaimableBooking(ctx, tx, req.UserID, req.TableID,
				time.Now().Add(-bookingClaimAge), time.Time{})
			if err != nil {
				return err
			}
			if claimed == nil {
				return errs.Conflict("no recent active booking for user %s on table %s", req.UserID, req.TableID)
			}
			if claimed.Status == models.BookingPending {
				if err := s.bookings.WithTx(tx).UpdateStatus(ctx, claimed.ID, models.BookingConfirmed); err != nil {
					return err
				}
			}
		}

		items = items[:0]
		var total float64
		for _, line := range merged {
			menuItem, err := s.directory.WithTx(tx).GetMenuItem(ctx, line.MenuItemID)
			if err != nil {
				return err
			}
			if menuItem.Status != models.MenuItemAvailable {
				return errs.Conflict("menu item %s is not available", menuItem.Name)
			}
			items = append(items, models.OrderItem{
				ID:           uuid.New().String(),
				OrderID:      order.ID,
				MenuItemID:   menuItem.ID,
				Quantity:     line.Quantity,
				PriceAtOrder: menuItem.Price,
			})
			total += menuItem.Price * float64(line.Quantity)
		}
		order.TotalAmount = total

		return s.db.WithTx(tx).Create(ctx, order, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("CREATE", order.ID, fmt.Sprintf("%s order, %d line(s), total %.2f",
		order.OrderType, len(items), order.TotalAmount))
	s.publish(ctx, "order_created", order)
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

// Get returns the order with its item lines. For dine-in orders the booking
// time is attached when a booking on the same table sits within six hours of
// the order, a heuristic rather than a stored link.
func (s *Service) Get(ctx context.Context, id string) (*models.OrderWithItems, error) {
	order, err := s.db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.db.GetItems(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "loading order items")
	}

	result := &models.OrderWithItems{Order: *order, Items: items}
	if order.OrderType == models.OrderDineIn && order.TableID != "" {
		result.BookingTime = s.matchBookingTime(ctx, order)
	}
	return result, nil
}

// matchBookingTime finds the user's booking on the order's table closest to
// the order creation time, within six hours either way. Best effort only.
func (s *Service) matchBookingTime(ctx context.Context, order *models.Order) *time.Time {
	bookings, err := s.bookings.ListByTable(ctx, order.TableID)
	if err != nil {
		s.logger.Warn("ORDER", "booking time lookup failed for order "+order.ID+": "+err.Error())
		return nil
	}

	var best *models.Booking
	var bestGap time.Duration
	for i := range bookings {
		b := &bookings[i]
		if b.UserID != order.UserID || b.Status == models.BookingCancelled {
			continue
		}
		gap := order.CreatedAt.Sub(b.BookingTime)
		if gap < 0 {
			gap = -gap
		}
		if gap > 6*time.Hour {
			continue
		}
		if best == nil || gap < bestGap {
			best, bestGap = b, gap
		}
	}
	if best == nil {
		return nil
	}
	return &best.BookingTime
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.db.ListByUser(ctx, userID)
}

func (s *Service) ListByTable(ctx context.Context, tableID string) ([]models.Order, error) {
	return s.db.ListByTable(ctx, tableID)
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Order, error) {
	parsed, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.db.ListByStatus(ctx, parsed)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	return s.db.List(ctx, limit, offset)
}

// Update replaces the order's item lines wholesale and recomputes the total
// from fresh price snapshots. Terminal orders cannot be changed.
func (s *Service) Update(ctx context.Context, id string, itemReqs []models.OrderItemRequest) (*models.OrderWithItems, error) {
	if len(itemReqs) == 0 {
		return nil, errs.Validation("order must contain at least one item")
	}
	merged := mergeItems(itemReqs)
	for _, item := range merged {
		if item.Quantity <= 0 {
			return nil, errs.Validation("quantity for menu item %s must be positive", item.MenuItemID)
		}
	}

	var order *models.Order
	var items []models.OrderItem
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return errs.Conflict("order %s is %s and cannot be changed", id, order.Status)
		}

		items = items[:0]
		var total float64
		for _, line := range merged {
			menuItem, err := s.directory.WithTx(tx).GetMenuItem(ctx, line.MenuItemID)
			if err != nil {
				return err
			}
			if menuItem.Status != models.MenuItemAvailable {
				return errs.Conflict("menu item %s is not available", menuItem.Name)
			}
			items = append(items, models.OrderItem{
				ID:           uuid.New().String(),
				OrderID:      id,
				MenuItemID:   menuItem.ID,
				Quantity:     line.Quantity,
				PriceAtOrder: menuItem.Price,
			})
			total += menuItem.Price * float64(line.Quantity)
		}

		if err := s.db.WithTx(tx).ReplaceItems(ctx, id, items); err != nil {
			return errs.Wrap(err, "replacing order items")
		}
		order.TotalAmount = total
		return s.db.WithTx(tx).Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("UPDATE", id, fmt.Sprintf("items replaced, new total %.2f", order.TotalAmount))
	s.publish(ctx, "order_updated", order)
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

// UpdateStatus moves the order through its kitchen lifecycle. Terminal
// orders stay put.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	parsed, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if parsed == models.OrderCancelled {
		return s.Cancel(ctx, id)
	}

	var order *models.Order
	err = s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return errs.Conflict("order %s is already %s", id, order.Status)
		}
		order.Status = parsed
		return s.db.WithTx(tx).UpdateStatus(ctx, id, parsed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("STATUS", id, "order -> "+string(parsed))
	s.publish(ctx, "order_updated", order)
	return order, nil
}

// Cancel voids an active order. For dine-in the matching booking, found by
// the claim heuristic, is cancelled with it and the table released unless a
// party is seated.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Order, error) {
	var order *models.Order
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}

		var table *models.Table
		if peek.OrderType == models.OrderDineIn && peek.TableID != "" {
			table, err = s.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID)
			if err != nil {
				return err
			}
		}

		order, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return errs.Conflict("order %s is already %s", id, order.Status)
		}
		order.Status = models.OrderCancelled
		if err := s.db.WithTx(tx).UpdateStatus(ctx, id, models.OrderCancelled); err != nil {
			return err
		}

		if table == nil {
			return nil
		}
		claimed, err := s.findClaimableBooking(ctx, tx, order.UserID, order.TableID,
			time.Now().Add(-bookingClaimAge), time.Now().Add(bookingClaimAhead))
		if err != nil {
			return err
		}
		if claimed != nil {
			if err := s.bookings.WithTx(tx).UpdateStatus(ctx, claimed.ID, models.BookingCancelled); err != nil {
				return err
			}
		}
		// Released whether or not a booking matched; a seated party keeps
		// the table.
		if table.Status != models.TableUsed {
			if err := s.releaseTable(ctx, tx, order.TableID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("CANCEL", id, "order cancelled")
	s.publish(ctx, "order_cancelled", order)
	return order, nil
}

// Delete removes the order and its items outright. Orders that already have
// a payment attached cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.db.WithTx(tx).GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		exists, err := tx.NewSelect().
			Model((*models.Payment)(nil)).
			Where("order_id = ?", id).
			Exists(ctx)
		if err != nil {
			return errs.Wrap(err, "checking payments")
		}
		if exists {
			return errs.Conflict("order %s has a payment and cannot be deleted", id)
		}
		return s.db.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.LogOrder("DELETE", id, "order removed")
	return nil
}

// findClaimableBooking picks the user's most recent active booking on the
// table inside [from, to]. A zero `to` means no upper bound.
func (s *Service) findClaimableBooking(ctx context.Context, tx bun.Tx, userID, tableID string, from, to time.Time) (*models.Booking, error) {
	bookings, err := s.bookings.WithTx(tx).ListActiveByTable(ctx, tableID)
	if err != nil {
		return nil, errs.Wrap(err, "listing table bookings")
	}
	// ListActiveByTable orders newest booking time first.
	for i := range bookings {
		b := &bookings[i]
		if b.UserID != userID {
			continue
		}
		if !b.BookingTime.After(from) {
			continue
		}
		if !to.IsZero() && b.BookingTime.After(to) {
			continue
		}
		return b, nil
	}
	return nil, nil
}

// releaseTable mirrors the booking-side rule: Available unless another
// active booking still claims the table.
func (s *Service) releaseTable(ctx context.Context, tx bun.Tx, tableID string) error {
	remaining, err := s.bookings.WithTx(tx).ListActiveByTable(ctx, tableID)
	if err != nil {
		return errs.Wrap(err, "listing remaining bookings")
	}
	status := models.TableAvailable
	if len(remaining) > 0 {
		status = models.TableBooked
	}
	return s.tables.WithTx(tx).UpdateStatus(ctx, tableID, status)
}
