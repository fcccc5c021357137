package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/feed"
)

// FilterByPeriod selects sales from an already loaded list. Periods: "Hoy"
// matches the same local day-of-year as now (the year itself is not
// compared, a long-standing quirk kept on purpose), "Semana" is the
// inclusive last 7 days, "Quincena" the inclusive last 15 days, and any
// other value returns the list unfiltered.
func FilterByPeriod(sales []domain.Sale, period string, now time.Time) []domain.Sale {
	switch period {
	case domain.PeriodToday:
		return filterSales(sales, func(ts int64) bool { return sameDayOfYear(ts, now) })
	case domain.PeriodWeek:
		return filterSales(sales, withinDays(now, 7))
	case domain.PeriodFortnight:
		return filterSales(sales, withinDays(now, 15))
	default:
		return sales
	}
}

// Summarize computes today's running total and sale count.
func Summarize(sales []domain.Sale, now time.Time) domain.SalesSummary {
	summary := domain.SalesSummary{Total: decimal.Zero}
	for _, sale := range sales {
		if sameDayOfYear(sale.Timestamp, now) {
			summary.Total = summary.Total.Add(sale.TotalPrice)
			summary.Count++
		}
	}
	return summary
}

// WatchTodaySummary recomputes the daily totals on every change to the sale
// ledger.
func (e *Engine) WatchTodaySummary(ctx context.Context) <-chan domain.SalesSummary {
	in := e.repo.WatchSales(ctx)
	out := make(chan domain.SalesSummary, 1)
	go func() {
		defer close(out)
		for snapshot := range in {
			feed.Send(out, Summarize(snapshot, e.now()))
		}
	}()
	return out
}

func filterSales(sales []domain.Sale, keep func(ts int64) bool) []domain.Sale {
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if keep(sale.Timestamp) {
			filtered = append(filtered, sale)
		}
	}
	return filtered
}

func sameDayOfYear(ts int64, now time.Time) bool {
	return time.UnixMilli(ts).Local().YearDay() == now.Local().YearDay()
}

func withinDays(now time.Time, days int) func(ts int64) bool {
	start := now.AddDate(0, 0, -days).UnixMilli()
	end := now.UnixMilli()
	return func(ts int64) bool {
		return ts >= start && ts <= end
	}
}
