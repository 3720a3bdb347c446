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

// Create inserts an order together with its items.
func (d *DB) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if _, err := d.bun.NewInsert().Model(order).Exec(ctx); err != nil {
		return err
	}
	if len(items) > 0 {
		if _, err := d.bun.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.forUpdate(d.bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("menu_item_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceItems discards the order's item set and inserts the new one.
// Items are replaced wholesale on update, never diffed.
func (d *DB) ReplaceItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	if _, err := d.bun.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("order_id = ?", orderID).
		Exec(ctx); err != nil {
		return err
	}
	if len(items) > 0 {
		if _, err := d.bun.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Update(ctx context.Context, order *models.Order) error {
	res, err := d.bun.NewUpdate().
		Model(order).
		Column("user_id", "table_id", "order_type", "status", "total_amount").
		Where("order_id = ?", order.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("order %s not found", order.ID)
	}
	return nil
}

func (d *DB) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res, err := d.bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Where("order_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("order %s not found", id)
	}
	return nil
}

// Delete removes the order and its items.
func (d *DB) Delete(ctx context.Context, id string) error {
	if _, err := d.bun.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("order_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}
	res, err := d.bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("order_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("order %s not found", id)
	}
	return nil
}

// HasActiveOrderForTable reports whether the table currently carries a
// Pending, Confirmed or Preparing order.
func (d *DB) HasActiveOrderForTable(ctx context.Context, tableID string) (bool, error) {
	return d.bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("table_id = ?", tableID).
		Where("status IN (?)", bun.In([]models.OrderStatus{
			models.OrderPending, models.OrderConfirmed, models.OrderPreparing,
		})).
		Exists(ctx)
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) ListByTable(ctx context.Context, tableID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.bun.NewSelect().
		Model(&orders).
		Where("table_id = ?", tableID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := d.bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	q := d.bun.NewSelect().
		Model(&orders).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}
