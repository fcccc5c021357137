package sales

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
)

func saleAt(ts time.Time, total int64) domain.Sale {
	return domain.Sale{
		ProductNames: []string{"Torta"},
		Quantities:   []int{1},
		TotalPrice:   decimal.NewFromInt(total),
		Timestamp:    ts.UnixMilli(),
	}
}

func TestFilterByPeriodWeekIsInclusive(t *testing.T) {
	now := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.Local)
	onEdge := saleAt(now.AddDate(0, 0, -7), 10)
	inside := saleAt(now.AddDate(0, 0, -3), 20)
	outside := saleAt(now.AddDate(0, 0, -8), 30)
	future := saleAt(now.Add(time.Hour), 40)

	got := FilterByPeriod([]domain.Sale{onEdge, inside, outside, future}, domain.PeriodWeek, now)
	if len(got) != 2 {
		t.Fatalf("filtered = %d sales, want 2", len(got))
	}
	for _, sale := range got {
		if sale.TotalPrice.Equal(decimal.NewFromInt(30)) || sale.TotalPrice.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("sale %s should have been excluded", sale.TotalPrice)
		}
	}
}

func TestFilterByPeriodFortnightIsInclusive(t *testing.T) {
	now := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.Local)
	onEdge := saleAt(now.AddDate(0, 0, -15), 10)
	outside := saleAt(now.AddDate(0, 0, -16), 20)

	got := FilterByPeriod([]domain.Sale{onEdge, outside}, domain.PeriodFortnight, now)
	if len(got) != 1 || !got[0].TotalPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("filtered = %+v, want only the 15-day-old sale", got)
	}
}

func TestFilterByPeriodTodayIgnoresYear(t *testing.T) {
	now := time.Date(2026, time.March, 20, 18, 0, 0, 0, time.Local)
	sameDay := saleAt(time.Date(2026, time.March, 20, 8, 0, 0, 0, time.Local), 10)
	// Same day-of-year one year earlier still matches. 2026 and 2025 share
	// day-of-year alignment after February since neither is a leap year.
	lastYear := saleAt(time.Date(2025, time.March, 20, 8, 0, 0, 0, time.Local), 20)
	yesterday := saleAt(time.Date(2026, time.March, 19, 8, 0, 0, 0, time.Local), 30)

	got := FilterByPeriod([]domain.Sale{sameDay, lastYear, yesterday}, domain.PeriodToday, now)
	if len(got) != 2 {
		t.Fatalf("filtered = %d sales, want 2 (same day-of-year regardless of year)", len(got))
	}
}

func TestFilterByPeriodUnknownReturnsAll(t *testing.T) {
	now := time.Now()
	all := []domain.Sale{saleAt(now.AddDate(0, 0, -100), 10), saleAt(now, 20)}

	if got := FilterByPeriod(all, domain.PeriodAll, now); len(got) != 2 {
		t.Fatalf("Todo filtered = %d sales, want all 2", len(got))
	}
	if got := FilterByPeriod(all, "whatever", now); len(got) != 2 {
		t.Fatalf("unknown period filtered = %d sales, want all 2", len(got))
	}
}

func TestSummarizeCountsTodayOnly(t *testing.T) {
	now := time.Date(2026, time.March, 20, 18, 0, 0, 0, time.Local)
	list := []domain.Sale{
		saleAt(time.Date(2026, time.March, 20, 9, 0, 0, 0, time.Local), 25),
		saleAt(time.Date(2026, time.March, 20, 14, 0, 0, 0, time.Local), 35),
		saleAt(time.Date(2026, time.March, 19, 14, 0, 0, 0, time.Local), 99),
	}

	summary := Summarize(list, now)
	if summary.Count != 2 {
		t.Fatalf("count = %d, want 2", summary.Count)
	}
	if want := decimal.NewFromInt(60); !summary.Total.Equal(want) {
		t.Fatalf("total = %s, want %s", summary.Total, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, time.Now())
	if summary.Count != 0 || !summary.Total.IsZero() {
		t.Fatalf("summary = %+v, want zero", summary)
	}
}
