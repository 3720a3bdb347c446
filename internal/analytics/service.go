// Package analytics reports over settled payments and orders. Everything
// here is read-only aggregation; nothing feeds back into the lifecycle flows.
package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/Leerm14/restaurant-back-end/internal/errs"
	"github.com/Leerm14/restaurant-back-end/internal/models"
)

type RevenueReport struct {
	From         time.Time                        `json:"from"`
	To           time.Time                        `json:"to"`
	TotalRevenue float64                          `json:"total_revenue"`
	PaymentCount int                              `json:"payment_count"`
	ByMethod     map[models.PaymentMethod]float64 `json:"by_method"`
}

type MonthlyStats struct {
	Month      string  `json:"month"` // "2026-08"
	OrderCount int     `json:"order_count"`
	Revenue    float64 `json:"revenue"`
}

type Service struct {
	bun *bun.DB
}

func NewService(bunDB *bun.DB) *Service {
	return &Service{bun: bunDB}
}

// Revenue sums successful payments settled inside [from, to).
func (s *Service) Revenue(ctx context.Context, from, to time.Time) (*RevenueReport, error) {
	if !to.After(from) {
		return nil, errs.Validation("report range is empty")
	}

	var rows []struct {
		Method models.PaymentMethod `bun:"method"`
		Count  int                  `bun:"count"`
		Total  float64              `bun:"total"`
	}
	err := s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("method, COUNT(*) AS count, SUM(amount) AS total").
		Where("status = ?", models.PaymentSuccessful).
		Where("paid_at >= ?", from).
		Where("paid_at < ?", to).
		Group("method").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errs.Wrap(err, "aggregating revenue")
	}

	report := &RevenueReport{
		From:     from,
		To:       to,
		ByMethod: make(map[models.PaymentMethod]float64, len(rows)),
	}
	for _, row := range rows {
		report.TotalRevenue += row.Total
		report.PaymentCount += row.Count
		report.ByMethod[row.Method] = row.Total
	}
	return report, nil
}

// MonthlyOrderStats breaks a year down into per-month order counts and the
// revenue of their completed payments.
func (s *Service) MonthlyOrderStats(ctx context.Context, year int) ([]MonthlyStats, error) {
	if year < 2000 || year > 2100 {
		return nil, errs.Validation("implausible year %d", year)
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var orders []models.Order
	err := s.bun.NewSelect().
		Model(&orders).
		Where("created_at >= ?", start).
		Where("created_at < ?", end).
		Scan(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "listing orders")
	}

	var payments []models.Payment
	err = s.bun.NewSelect().
		Model(&payments).
		Where("status = ?", models.PaymentSuccessful).
		Where("paid_at >= ?", start).
		Where("paid_at < ?", end).
		Scan(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "listing payments")
	}

	stats := make([]MonthlyStats, 12)
	for i := range stats {
		stats[i].Month = time.Date(year, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	}
	for _, o := range orders {
		stats[o.CreatedAt.UTC().Month()-1].OrderCount++
	}
	for _, p := range payments {
		stats[p.PaidAt.UTC().Month()-1].Revenue += p.Amount
	}
	return stats, nil
}
