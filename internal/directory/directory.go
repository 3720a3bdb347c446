// Package directory exposes read-only lookups against the user and menu
// catalogs. The core never mutates these records; menu prices are only
// snapshotted into order items.
package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/models"
)

type Directory struct {
	bun bun.IDB
}

func New(b *bun.DB) *Directory {
	return &Directory{bun: b}
}

func (d *Directory) WithTx(tx bun.Tx) *Directory {
	return &Directory{bun: tx}
}

func (d *Directory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.bun.NewSelect().
		Model(&user).
		Where("user_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Directory) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.bun.NewSelect().
		Model(&item).
		Where("menu_item_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("menu item %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *Directory) ListAvailableMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := d.bun.NewSelect().
		Model(&items).
		Where("status = ?", models.MenuItemAvailable).
		Order("name").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}
