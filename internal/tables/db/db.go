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

// WithTx returns a copy bound to the given transaction.
func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{bun: tx, pg: d.pg}
}

// forUpdate adds a row lock on Postgres; the SQLite test dialect has no
// FOR UPDATE and serializes writers anyway.
func (d *DB) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if d.pg {
		return q.For("UPDATE")
	}
	return q
}

func (d *DB) Create(ctx context.Context, table *models.Table) error {
	_, err := d.bun.NewInsert().Model(table).Exec(ctx)
	return err
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Table, error) {
	var table models.Table
	err := d.bun.NewSelect().
		Model(&table).
		Where("table_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("table %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// GetByIDForUpdate locks the table row for the duration of the enclosing
// transaction. The table row is acquired before any booking/order row that
// references it, giving one total lock order.
func (d *DB) GetByIDForUpdate(ctx context.Context, id string) (*models.Table, error) {
	var table models.Table
	err := d.forUpdate(d.bun.NewSelect().
		Model(&table).
		Where("table_id = ?", id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("table %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (d *DB) GetByNumber(ctx context.Context, tableNumber int) (*models.Table, error) {
	var table models.Table
	err := d.bun.NewSelect().
		Model(&table).
		Where("table_number = ?", tableNumber).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("table number %d not found", tableNumber)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (d *DB) ExistsByNumber(ctx context.Context, tableNumber int) (bool, error) {
	return d.bun.NewSelect().
		Model((*models.Table)(nil)).
		Where("table_number = ?", tableNumber).
		Exists(ctx)
}

func (d *DB) List(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := d.bun.NewSelect().
		Model(&tables).
		Order("table_number").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (d *DB) ListByStatus(ctx context.Context, status models.TableStatus) ([]models.Table, error) {
	var tables []models.Table
	err := d.bun.NewSelect().
		Model(&tables).
		Where("status = ?", status).
		Order("table_number").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (d *DB) Update(ctx context.Context, table *models.Table) error {
	res, err := d.bun.NewUpdate().
		Model(table).
		Column("table_number", "capacity", "status").
		Where("table_id = ?", table.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("table %s not found", table.ID)
	}
	return nil
}

func (d *DB) UpdateStatus(ctx context.Context, id string, status models.TableStatus) error {
	res, err := d.bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("status = ?", status).
		Where("table_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("table %s not found", id)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.bun.NewDelete().
		Model((*models.Table)(nil)).
		Where("table_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("table %s not found", id)
	}
	return nil
}

func (d *DB) CountByStatus(ctx context.Context) (map[models.TableStatus]int, error) {
	var rows []struct {
		Status models.TableStatus `bun:"status"`
		Count  int                `bun:"count"`
	}
	err := d.bun.NewSelect().
		Model((*models.Table)(nil)).
		ColumnExpr("status, COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.TableStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
