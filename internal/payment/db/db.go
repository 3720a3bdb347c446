package db

import (
	"context"
	"database/sql"
	"errors"

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

func (d *DB) Create(ctx context.Context, payment *models.Payment) error {
	_, err := d.bun.NewInsert().Model(payment).Exec(ctx)
	return err
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := d.bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("payment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) GetByIDForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := d.forUpdate(d.bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("payment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByOrderID fetches the order's payment; at most one exists per order.
func (d *DB) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.bun.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no payment for order %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) Update(ctx context.Context, payment *models.Payment) error {
	res, err := d.bun.NewUpdate().
		Model(payment).
		Column("amount", "method", "status", "transaction_id", "paid_at").
		Where("payment_id = ?", payment.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("payment %s not found", payment.ID)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.bun.NewDelete().
		Model((*models.Payment)(nil)).
		Where("payment_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("payment %s not found", id)
	}
	return nil
}

func (d *DB) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	err := d.bun.NewSelect().
		Model(&payments).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (d *DB) List(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	q := d.bun.NewSelect().
		Model(&payments).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return payments, nil
}
