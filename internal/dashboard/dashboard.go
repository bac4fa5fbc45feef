// Package dashboard derives point-in-time summaries from the full transaction
// set. Aggregation is pure and recomputed on every request; there is no
// incremental or cached state.
package dashboard

import (
	"fmt"
	"time"

	"ccexpense/internal/core"
)

const (
	// totalLimitCents is a fixed placeholder; the design deliberately does
	// not derive it from the actual card limits.
	totalLimitCents = 6500000

	// upcomingWindowDays is the inclusive maturity lookahead.
	upcomingWindowDays = 7

	trendMonths    = 6
	trailingMonths = 3

	dangerThreshold = 10.0 // percentageDiff above this is DANGER
)

// Aggregate computes the dashboard snapshot for the given transaction set at
// the given moment. An empty set yields zero sums, a HEALTHY classification
// and a six-point trend of zeros.
func Aggregate(txs []core.Transaction, now time.Time) core.DashboardStats {
	today := core.DateOf(now)
	windowEnd := today.AddDays(upcomingWindowDays)

	var open, closed, upcoming int64
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		switch tx.Status {
		case core.StatusPending:
			// Running "currently owed" total, not scoped to this month.
			open += tx.Amount.Cents
			if !tx.Date.Before(today.Time) && !tx.Date.After(windowEnd.Time) {
				upcoming += tx.Amount.Cents
			}
		case core.StatusPaid:
			if tx.Date.InMonth(now.Year(), now.Month()) {
				closed += tx.Amount.Cents
			}
		}
	}

	health := financialHealth(txs, now)

	return core.DashboardStats{
		OpenInvoice:        core.Money{Cents: open},
		ClosedInvoice:      core.Money{Cents: closed},
		TotalLimit:         core.Money{Cents: totalLimitCents},
		UsedLimit:          core.Money{Cents: open + closed},
		UpcomingMaturities: core.Money{Cents: upcoming},
		MonthlyTrend:       monthlyTrend(txs, now, health.AverageLast3Months),
		FinancialHealth:    health,
	}
}

// shiftMonth steps a calendar month by delta without the day-of-month
// normalization surprises of time.AddDate (Mar 31 - 1 month must be Feb).
func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	m := year*12 + int(month) - 1 + delta
	return m / 12, time.Month(m%12 + 1)
}

// monthExpenseTotal sums EXPENSE amounts, regardless of status, in one
// calendar month.
func monthExpenseTotal(txs []core.Transaction, year int, month time.Month) int64 {
	var sum int64
	for _, tx := range txs {
		if tx.Type == core.Expense && tx.Date.InMonth(year, month) {
			sum += tx.Amount.Cents
		}
	}
	return sum
}

func financialHealth(txs []core.Transaction, now time.Time) core.FinancialHealth {
	current := monthExpenseTotal(txs, now.Year(), now.Month())

	// Each of the three preceding calendar months is summed independently;
	// only months with activity count toward the averaging divisor.
	var sumLast3 int64
	var countMonths int64
	for i := 1; i <= trailingMonths; i++ {
		y, m := shiftMonth(now.Year(), now.Month(), -i)
		monthTotal := monthExpenseTotal(txs, y, m)
		sumLast3 += monthTotal
		if monthTotal > 0 {
			countMonths++
		}
	}

	// Literal fallback chain: divide by active months, else the raw trailing
	// sum (zero when no months were active), else the current month total.
	// This degrades 0/0 to "no change" instead of NaN.
	var average int64
	switch {
	case countMonths > 0:
		average = sumLast3 / countMonths
	case sumLast3 != 0:
		average = sumLast3
	default:
		average = current
	}

	var diff float64
	if average > 0 {
		diff = (float64(current) - float64(average)) / float64(average) * 100
	}

	var status core.HealthStatus
	switch {
	case diff > dangerThreshold:
		status = core.HealthDanger
	case diff > 0:
		status = core.HealthWarning
	default:
		status = core.HealthHealthy
	}

	return core.FinancialHealth{
		Status:             status,
		CurrentMonthTotal:  core.Money{Cents: current},
		AverageLast3Months: core.Money{Cents: average},
		PercentageDiff:     diff,
		Message:            healthMessage(status, diff),
	}
}

func healthMessage(status core.HealthStatus, diff float64) string {
	switch status {
	case core.HealthDanger:
		return fmt.Sprintf("Spending is %.1f%% above your 3-month average. Time to slow down.", diff)
	case core.HealthWarning:
		return fmt.Sprintf("Spending is %.1f%% above your 3-month average. Keep an eye on it.", diff)
	default:
		if diff < 0 {
			return fmt.Sprintf("Spending is %.1f%% below your 3-month average. Well done.", -diff)
		}
		return "Spending is in line with your 3-month average."
	}
}

// monthlyTrend reports the six calendar months ending at the current one,
// oldest first. The average is the trailing 3-month value repeated on every
// point; the UI draws it as a constant reference line.
func monthlyTrend(txs []core.Transaction, now time.Time, average core.Money) []core.TrendPoint {
	points := make([]core.TrendPoint, 0, trendMonths)
	for i := trendMonths - 1; i >= 0; i-- {
		y, m := shiftMonth(now.Year(), now.Month(), -i)
		points = append(points, core.TrendPoint{
			Month:   m.String()[:3],
			Amount:  core.Money{Cents: monthExpenseTotal(txs, y, m)},
			Average: average,
		})
	}
	return points
}
