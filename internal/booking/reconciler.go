package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/models"
	orderdb "github.com/Leerm14/restaurant-back-end/internal/order/db"
)

// Reconciler sweeps bookings whose grace period has elapsed. A booking left
// Pending or Confirmed past its time plus the grace period is a no-show and
// gets cancelled, unless the table carries an active order, which means the
// party arrived and the booking completes instead.
type Reconciler struct {
	service *Service
	orders  *orderdb.DB
	grace   time.Duration
}

func NewReconciler(service *Service, orders *orderdb.DB, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = 2 * time.Hour
	}
	return &Reconciler{service: service, orders: orders, grace: grace}
}

// Start runs the sweep on the given interval until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	r.service.logger.LogReconciler(fmt.Sprintf("started, interval %s, grace period %s", interval, r.grace))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.service.logger.LogReconciler("stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Each overdue booking is resolved in its
// own transaction; a failure on one row is logged and does not stop the
// sweep. Re-running over already-resolved bookings is a no-op.
func (r *Reconciler) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.grace)
	overdue, err := r.service.db.ListOverdue(ctx, cutoff)
	if err != nil {
		r.service.logger.Error("RECONCILER", "listing overdue bookings: "+err.Error())
		return
	}
	if len(overdue) == 0 {
		return
	}

	r.service.logger.LogReconciler(fmt.Sprintf("sweeping %d overdue booking(s)", len(overdue)))
	for _, b := range overdue {
		if err := r.resolve(ctx, b.ID); err != nil {
			r.service.logger.Error("RECONCILER", fmt.Sprintf("booking %s: %v", b.ID, err))
		}
	}
}

func (r *Reconciler) resolve(ctx context.Context, bookingID string) error {
	return r.service.bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		peek, err := r.service.db.WithTx(tx).GetByID(ctx, bookingID)
		if err != nil {
			if errs.IsNotFound(err) {
				return nil // deleted since the sweep listed it
			}
			return err
		}
		table, err := r.service.tables.WithTx(tx).GetByIDForUpdate(ctx, peek.TableID)
		if err != nil {
			return err
		}

		booking, err := r.service.db.WithTx(tx).GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		// Someone else resolved it between the list and the lock.
		if booking.Status.Terminal() {
			return nil
		}

		hasOrder, err := r.orders.WithTx(tx).HasActiveOrderForTable(ctx, booking.TableID)
		if err != nil {
			return errs.Wrap(err, "checking table orders")
		}

		terminal := models.BookingCancelled
		outcome := "no-show, cancelled"
		if hasOrder {
			terminal = models.BookingCompleted
			outcome = "active order found, completed"
		}
		if err := r.service.db.WithTx(tx).UpdateStatus(ctx, bookingID, terminal); err != nil {
			return err
		}
		// The table is released only on the no-show branch. An active order
		// means the party is using it, and a Used table means a party is
		// physically seated; either way the order and payment flow releases
		// it when the visit ends.
		if !hasOrder && table.Status != models.TableUsed {
			if err := r.service.releaseTable(ctx, tx, booking.TableID); err != nil {
				return err
			}
		}

		r.service.logger.LogReconciler(fmt.Sprintf("booking %s: %s", bookingID, outcome))
		return nil
	})
}
