package core

import "time"

const (
	HealthHealthy HealthStatus = "HEALTHY"
	HealthWarning HealthStatus = "WARNING"
	HealthDanger  HealthStatus = "DANGER"
)

type (
	HealthStatus string

	// FinancialHealth compares current-month spending against the trailing
	// three-month average.
	FinancialHealth struct {
		Status             HealthStatus `json:"status"`
		CurrentMonthTotal  Money        `json:"currentMonthTotal"`
		AverageLast3Months Money        `json:"averageLast3Months"`
		PercentageDiff     float64      `json:"percentageDiff"`
		Message            string       `json:"message"`
	}

	// TrendPoint is one month of the six-month spending series. Average is
	// the same trailing-average value on every point, drawn as a reference
	// line by the UI.
	TrendPoint struct {
		Month   string `json:"month"`
		Amount  Money  `json:"amount"`
		Average Money  `json:"average"`
	}

	// DashboardStats is a point-in-time snapshot derived from the full
	// transaction set. Never persisted, recomputed on every request.
	DashboardStats struct {
		OpenInvoice        Money           `json:"openInvoice"`
		ClosedInvoice      Money           `json:"closedInvoice"`
		TotalLimit         Money           `json:"totalLimit"`
		UsedLimit          Money           `json:"usedLimit"`
		UpcomingMaturities Money           `json:"upcomingMaturities"`
		MonthlyTrend       []TrendPoint    `json:"monthlyTrend"`
		FinancialHealth    FinancialHealth `json:"financialHealth"`
	}

	// Backup is the full exportable state of one user's ledger.
	Backup struct {
		Version      string        `json:"version"`
		Timestamp    time.Time     `json:"timestamp"`
		User         UserProfile   `json:"user"`
		Transactions []Transaction `json:"transactions"`
		Cards        []CreditCard  `json:"cards"`
		Budgets      []Budget      `json:"budgets"`
	}
)
