package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/kafka"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	orderdb "github.com/Leerm14/restaurant-back-end/internal/order/db"
	"github.com/Leerm14/restaurant-back-end/internal/payment/db"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
)

// A confirmed payment completes bookings no older than this; older ones
// belong to a previous visit and are left to the reconciler.
const bookingClaimAge = 24 * time.Hour

type Service struct {
	db       *db.DB
	orders   *orderdb.DB
	bookings *bookingdb.DB
	tables   *tablesdb.DB
	bun      *bun.DB
	stripe   *StripeGateway
	producer *kafka.Producer
	logger   *logger.Logger
}

func NewService(
	database *db.DB,
	orders *orderdb.DB,
	bookings *bookingdb.DB,
	tables *tablesdb.DB,
	bunDB *bun.DB,
	stripe *StripeGateway,
	producer *kafka.Producer,
	log *logger.Logger,
) *Service {
	return &Service{
		db:       database,
		orders:   orders,
		bookings: bookings,
		tables:   tables,
		bun:      bunDB,
		stripe:   stripe,
		producer: producer,
		logger:   log,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, payment *models.Payment) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishPaymentEvent(ctx, eventType, payment.ID, payment); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("failed to publish %s for payment %s: %v", eventType, payment.ID, err))
	}
}

// Create opens a payment for an order. The amount must match the order total
// exactly, and an order can only ever have one payment.
func (s *Service) Create(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	method, err := models.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:        uuid.New().String(),
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Method:    method,
		Status:    models.PaymentPending,
		CreatedAt: time.Now().UTC(),
	}

	err = s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.orders.WithTx(tx).GetByIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderCancelled {
			return errs.Conflict("order %s is cancelled and cannot be paid", req.OrderID)
		}
		if req.Amount != order.TotalAmount {
			return errs.Validation("payment amount %.2f does not match order total %.2f",
				req.Amount, order.TotalAmount)
		}

		// One payment row per order. A leftover Pending/Failed attempt is
		// reset and reused instead of piling up rows.
		if existing, err := s.db.WithTx(tx).GetByOrderID(ctx, req.OrderID); err == nil {
			if existing.Status == models.PaymentSuccessful {
				return errs.Conflict("order %s is already paid by payment %s", req.OrderID, existing.ID)
			}
			existing.Amount = order.TotalAmount
			existing.Method = method
			existing.Status = models.PaymentPending
			existing.TransactionID = ""
			existing.PaidAt = time.Time{}
			payment = existing
			return s.db.WithTx(tx).Update(ctx, existing)
		} else if !errs.IsNotFound(err) {
			return err
		}

		return s.db.WithTx(tx).Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogPayment("CREATE", payment.ID, fmt.Sprintf("order %s, %.2f via %s",
		payment.OrderID, payment.Amount, payment.Method))
	s.publish(ctx, "payment_created", payment)
	return payment, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	return s.db.GetByID(ctx, id)
}

func (s *Service) GetByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.db.GetByOrderID(ctx, orderID)
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Payment, error) {
	parsed, err := models.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	return s.db.ListByStatus(ctx, parsed)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	return s.db.List(ctx, limit, offset)
}

// QRCode renders the scannable payment reference for a QRCode payment.
func (s *Service) QRCode(ctx context.Context, id string) ([]byte, error) {
	payment, err := s.db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Method != models.MethodQRCode {
		return nil, errs.Validation("payment %s uses %s, not QRCode", id, payment.Method)
	}
	return GenerateQRCode(payment.ID, payment.OrderID, payment.Amount)
}

// Charge pushes a CreditCard payment through Stripe. A synchronously settled
// charge confirms the payment immediately; otherwise the gateway's
// asynchronous event finishes it.
func (s *Service) Charge(ctx context.Context, id, paymentMethodID string) (*models.ConfirmResult, error) {
	if s.stripe == nil {
		return nil, errs.Validation("card payments are not configured")
	}

	payment, err := s.db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Method != models.MethodCreditCard {
		return nil, errs.Validation("payment %s uses %s, not CreditCard", id, payment.Method)
	}
	if payment.Status == models.PaymentSuccessful {
		return &models.ConfirmResult{Payment: payment, AlreadyPaid: true}, nil
	}
	if payment.Status == models.PaymentFailed {
		return nil, errs.Conflict("payment %s already failed", id)
	}

	intentID, settled, err := s.stripe.Charge(payment.ID, payment.OrderID, payment.Amount, paymentMethodID)
	if err != nil {
		return nil, errs.Wrap(err, "charging card")
	}
	if !settled {
		s.logger.LogPayment("CHARGE", id, "intent "+intentID+" pending, awaiting gateway event")
		return &models.ConfirmResult{Payment: payment}, nil
	}
	return s.Confirm(ctx, id, intentID)
}

// Confirm settles a payment and runs the full completion cascade in one
// transaction: payment Successful, order Completed, and for dine-in the
// matching booking Completed and the table released. Confirming an already
// successful payment is a no-op reported through AlreadyPaid.
func (s *Service) Confirm(ctx context.Context, id, transactionID string) (*models.ConfirmResult, error) {
	result := &models.ConfirmResult{}
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Learn the order's table before taking locks, then lock table ->
		// booking -> order -> payment, the one total order.
		peek, err := s.db.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		orderPeek, err := s.orders.WithTx(tx).GetByID(ctx, peek.OrderID)
		if err != nil {
			return err
		}

		var table *models.Table
		if orderPeek.OrderType == models.OrderDineIn && orderPeek.TableID != "" {
			table, err = s.tables.WithTx(tx).GetByIDForUpdate(ctx, orderPeek.TableID)
			if err != nil {
				return err
			}
		}

		order, err := s.orders.WithTx(tx).GetByIDForUpdate(ctx, peek.OrderID)
		if err != nil {
			return err
		}
		payment, err := s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		result.Payment = payment

		if payment.Status == models.PaymentSuccessful {
			result.AlreadyPaid = true
			return nil
		}
		if payment.Status == models.PaymentFailed {
			return errs.Conflict("payment %s already failed", id)
		}
		if order.Status == models.OrderCancelled {
			return errs.Conflict("order %s is cancelled and cannot be paid", order.ID)
		}

		payment.Status = models.PaymentSuccessful
		payment.TransactionID = transactionID
		payment.PaidAt = time.Now().UTC()
		if err := s.db.WithTx(tx).Update(ctx, payment); err != nil {
			return err
		}

		if !order.Status.Terminal() {
			if err := s.orders.WithTx(tx).UpdateStatus(ctx, order.ID, models.OrderCompleted); err != nil {
				return err
			}
			result.OrderCompleted = true
		}

		if table == nil {
			return nil
		}
		claimed, err := s.findClaimableBooking(ctx, tx, order.UserID, order.TableID)
		if err != nil {
			return err
		}
		if claimed != nil {
			if err := s.bookings.WithTx(tx).UpdateStatus(ctx, claimed.ID, models.BookingCompleted); err != nil {
				return err
			}
			result.BookingCompleted = claimed.ID
		}
		if err := s.releaseTable(ctx, tx, order.TableID); err != nil {
			return err
		}
		result.TableReleased = order.TableID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyPaid {
		s.logger.LogPayment("CONFIRM", id, "already successful, no-op")
		return result, nil
	}
	s.logger.LogPayment("CONFIRM", id, fmt.Sprintf("settled, order completed=%v booking=%s table released=%s",
		result.OrderCompleted, result.BookingCompleted, result.TableReleased))
	s.publish(ctx, "payment_succeeded", result.Payment)
	return result, nil
}

// Fail marks a pending payment as failed. The order, booking and table are
// untouched; the customer can retry by deleting the payment and opening a
// new one.
func (s *Service) Fail(ctx context.Context, id string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return errs.Conflict("payment %s is already %s", id, payment.Status)
		}
		payment.Status = models.PaymentFailed
		return s.db.WithTx(tx).Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogPayment("FAIL", id, "payment failed")
	s.publish(ctx, "payment_failed", payment)
	return payment, nil
}

// UpdateStatus routes an explicit status write through the real transitions,
// so the cascade and its guards cannot be bypassed.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.Payment, error) {
	parsed, err := models.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	switch parsed {
	case models.PaymentSuccessful:
		result, err := s.Confirm(ctx, id, "")
		if err != nil {
			return nil, err
		}
		return result.Payment, nil
	case models.PaymentFailed:
		return s.Fail(ctx, id)
	default:
		return nil, errs.Conflict("payment %s cannot move back to %s", id, parsed)
	}
}

// Delete removes a payment that never settled. Successful payments are part
// of the financial record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		payment, err := s.db.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentSuccessful {
			return errs.Conflict("payment %s is successful and cannot be deleted", id)
		}
		return s.db.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.LogPayment("DELETE", id, "payment removed")
	return nil
}

// HandleGatewayEvent applies an asynchronous confirm/fail message from the
// payment gateway. Duplicate deliveries are no-ops, so the consumer can
// safely reprocess.
func (s *Service) HandleGatewayEvent(ctx context.Context, event models.GatewayEvent) error {
	payment, err := s.db.GetByOrderID(ctx, event.OrderID)
	if err != nil {
		return err
	}

	switch event.Status {
	case "succeeded":
		result, err := s.Confirm(ctx, payment.ID, event.Reference)
		if err != nil {
			return err
		}
		if result.AlreadyPaid {
			s.logger.LogPayment("GATEWAY", payment.ID, "duplicate success event ignored")
		}
		return nil
	case "failed":
		if payment.Status == models.PaymentFailed {
			s.logger.LogPayment("GATEWAY", payment.ID, "duplicate failure event ignored")
			return nil
		}
		_, err := s.Fail(ctx, payment.ID)
		return err
	default:
		return errs.Validation("unknown gateway event status %q for order %s", event.Status, event.OrderID)
	}
}

// findClaimableBooking picks the user's most recent active booking on the
// table, no older than the claim window.
func (s *Service) findClaimableBooking(ctx context.Context, tx bun.Tx, userID, tableID string) (*models.Booking, error) {
	bookings, err := s.bookings.WithTx(tx).ListActiveByTable(ctx, tableID)
	if err != nil {
		return nil, errs.Wrap(err, "listing table bookings")
	}
	cutoff := time.Now().Add(-bookingClaimAge)
	for i := range bookings {
		b := &bookings[i]
		if b.UserID != userID {
			continue
		}
		if !b.BookingTime.After(cutoff) {
			continue
		}
		return b, nil
	}
	return nil, nil
}

// releaseTable frees the table unless another active booking still claims it.
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
