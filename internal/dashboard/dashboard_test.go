package dashboard

import (
	"testing"
	"time"

	"ccexpense/internal/core"
)

var testNow = time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

func expense(cents int64, status core.TransactionStatus, date core.Date) core.Transaction {
	return core.Transaction{
		ID:       "t",
		Amount:   core.Money{Cents: cents},
		Type:     core.Expense,
		Status:   status,
		Date:     date,
		Currency: core.BRL,
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, testNow)

	if stats.OpenInvoice.Cents != 0 || stats.ClosedInvoice.Cents != 0 ||
		stats.UsedLimit.Cents != 0 || stats.UpcomingMaturities.Cents != 0 {
		t.Errorf("empty input produced non-zero sums: %+v", stats)
	}
	if stats.FinancialHealth.Status != core.HealthHealthy {
		t.Errorf("empty input health = %s, want HEALTHY", stats.FinancialHealth.Status)
	}
	if stats.FinancialHealth.PercentageDiff != 0 {
		t.Errorf("empty input diff = %f, want 0", stats.FinancialHealth.PercentageDiff)
	}
	if len(stats.MonthlyTrend) != 6 {
		t.Fatalf("trend has %d points, want 6", len(stats.MonthlyTrend))
	}
	for i, p := range stats.MonthlyTrend {
		if p.Amount.Cents != 0 {
			t.Errorf("trend point %d amount = %d, want 0", i, p.Amount.Cents)
		}
	}
}

func TestAggregateInvoices(t *testing.T) {
	txs := []core.Transaction{
		// Pending expenses count toward openInvoice regardless of date.
		expense(10000, core.StatusPending, core.NewDate(2026, 9, 20)),
		expense(5000, core.StatusPending, core.NewDate(2027, 1, 10)),
		// Paid expenses count toward closedInvoice only in the current month.
		expense(3000, core.StatusPaid, core.NewDate(2026, 9, 2)),
		expense(9999, core.StatusPaid, core.NewDate(2026, 8, 2)),
		// Income never touches invoices.
		{ID: "i", Amount: core.Money{Cents: 99999}, Type: core.Income,
			Status: core.StatusPaid, Date: core.NewDate(2026, 9, 5)},
	}

	stats := Aggregate(txs, testNow)

	if stats.OpenInvoice.Cents != 15000 {
		t.Errorf("openInvoice = %d, want 15000", stats.OpenInvoice.Cents)
	}
	if stats.ClosedInvoice.Cents != 3000 {
		t.Errorf("closedInvoice = %d, want 3000", stats.ClosedInvoice.Cents)
	}
	if stats.UsedLimit.Cents != 18000 {
		t.Errorf("usedLimit = %d, want 18000", stats.UsedLimit.Cents)
	}
	if stats.TotalLimit.Cents != totalLimitCents {
		t.Errorf("totalLimit = %d, want fixed constant", stats.TotalLimit.Cents)
	}
}

func TestAggregateUpcomingMaturities(t *testing.T) {
	txs := []core.Transaction{
		expense(1000, core.StatusPending, core.NewDate(2026, 9, 15)), // today, included
		expense(2000, core.StatusPending, core.NewDate(2026, 9, 22)), // day 7, included
		expense(4000, core.StatusPending, core.NewDate(2026, 9, 23)), // past window
		expense(8000, core.StatusPending, core.NewDate(2026, 9, 14)), // already matured
		expense(16000, core.StatusPaid, core.NewDate(2026, 9, 16)),   // paid, excluded
	}

	stats := Aggregate(txs, testNow)
	if stats.UpcomingMaturities.Cents != 3000 {
		t.Errorf("upcomingMaturities = %d, want 3000", stats.UpcomingMaturities.Cents)
	}
}

func TestFinancialHealthClassification(t *testing.T) {
	tests := []struct {
		name        string
		currentCent int64
		wantStatus  core.HealthStatus
		wantDiff    float64
	}{
		// Trailing months below each total 1000.00/month.
		{"exactly +10 percent is WARNING", 110000, core.HealthWarning, 10.0},
		{"above +10 percent is DANGER", 110001, core.HealthDanger, 10.001},
		{"-10 percent is HEALTHY", 90000, core.HealthHealthy, -10.0},
		{"equal to average is HEALTHY", 100000, core.HealthHealthy, 0},
		{"slightly above is WARNING", 100500, core.HealthWarning, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []core.Transaction{
				expense(100000, core.StatusPaid, core.NewDate(2026, 8, 10)),
				expense(100000, core.StatusPaid, core.NewDate(2026, 7, 10)),
				expense(100000, core.StatusPaid, core.NewDate(2026, 6, 10)),
				expense(tt.currentCent, core.StatusPaid, core.NewDate(2026, 9, 10)),
			}
			h := Aggregate(txs, testNow).FinancialHealth

			if h.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s (diff=%f)", h.Status, tt.wantStatus, h.PercentageDiff)
			}
			if diff := h.PercentageDiff - tt.wantDiff; diff > 0.01 || diff < -0.01 {
				t.Errorf("percentageDiff = %f, want %f", h.PercentageDiff, tt.wantDiff)
			}
			if h.AverageLast3Months.Cents != 100000 {
				t.Errorf("average = %d, want 100000", h.AverageLast3Months.Cents)
			}
			if h.Message == "" {
				t.Error("missing health message")
			}
		})
	}
}

func TestFinancialHealthSkipsEmptyMonths(t *testing.T) {
	// Only one of the three trailing months has activity, so the divisor is 1.
	txs := []core.Transaction{
		expense(90000, core.StatusPaid, core.NewDate(2026, 8, 10)),
		expense(90000, core.StatusPaid, core.NewDate(2026, 9, 10)),
	}
	h := Aggregate(txs, testNow).FinancialHealth

	if h.AverageLast3Months.Cents != 90000 {
		t.Errorf("average = %d, want 90000 (single active month)", h.AverageLast3Months.Cents)
	}
	if h.Status != core.HealthHealthy {
		t.Errorf("status = %s, want HEALTHY at diff 0", h.Status)
	}
}

func TestFinancialHealthNoHistoryFallback(t *testing.T) {
	// No trailing activity at all: the average falls back to the current
	// month total, so the diff is zero and the status HEALTHY.
	txs := []core.Transaction{
		expense(50000, core.StatusPaid, core.NewDate(2026, 9, 10)),
	}
	h := Aggregate(txs, testNow).FinancialHealth

	if h.AverageLast3Months.Cents != 50000 {
		t.Errorf("average = %d, want fallback to current month 50000", h.AverageLast3Months.Cents)
	}
	if h.PercentageDiff != 0 {
		t.Errorf("diff = %f, want 0", h.PercentageDiff)
	}
	if h.Status != core.HealthHealthy {
		t.Errorf("status = %s, want HEALTHY", h.Status)
	}
}

func TestMonthlyTrend(t *testing.T) {
	txs := []core.Transaction{
		expense(10000, core.StatusPaid, core.NewDate(2026, 4, 5)),
		expense(20000, core.StatusPaid, core.NewDate(2026, 7, 5)),
		expense(30000, core.StatusPending, core.NewDate(2026, 9, 5)),
		// Outside the 6-month window.
		expense(70000, core.StatusPaid, core.NewDate(2026, 3, 5)),
	}

	trend := Aggregate(txs, testNow).MonthlyTrend

	wantMonths := []string{"Apr", "May", "Jun", "Jul", "Aug", "Sep"}
	wantAmounts := []int64{10000, 0, 0, 20000, 0, 30000}
	if len(trend) != 6 {
		t.Fatalf("trend has %d points, want 6", len(trend))
	}
	for i, p := range trend {
		if p.Month != wantMonths[i] {
			t.Errorf("point %d month = %q, want %q", i, p.Month, wantMonths[i])
		}
		if p.Amount.Cents != wantAmounts[i] {
			t.Errorf("point %d amount = %d, want %d", i, p.Amount.Cents, wantAmounts[i])
		}
		if p.Average != trend[0].Average {
			t.Error("trend average must be constant across points")
		}
	}
}

func TestShiftMonthAcrossYear(t *testing.T) {
	y, m := shiftMonth(2026, time.January, -1)
	if y != 2025 || m != time.December {
		t.Errorf("Jan 2026 - 1 = %s %d, want December 2025", m, y)
	}
	y, m = shiftMonth(2026, time.March, -3)
	if y != 2025 || m != time.December {
		t.Errorf("Mar 2026 - 3 = %s %d, want December 2025", m, y)
	}
}
