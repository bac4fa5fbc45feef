package core

import (
	"errors"
	"strings"
)

const (
	Expense TransactionType = "EXPENSE"
	Income  TransactionType = "INCOME"

	StatusPaid    TransactionStatus = "PAID"
	StatusPending TransactionStatus = "PENDING"

	Monthly RecurrenceFrequency = "MONTHLY"
	Weekly  RecurrenceFrequency = "WEEKLY"
	Yearly  RecurrenceFrequency = "YEARLY"

	BRL Currency = "BRL"
	USD Currency = "USD"
	EUR Currency = "EUR"

	// BaseCurrency is what every persisted amount is normalized into.
	BaseCurrency = BRL

	// CategoryUncategorized is the sentinel that triggers auto-categorization.
	CategoryUncategorized = "Uncategorized"

	// MaxInstallments is the upper bound enforced at the validation layer.
	MaxInstallments = 24
)

type (
	TransactionType     string
	TransactionStatus   string
	RecurrenceFrequency string
	Currency            string

	// Transaction is the atomic persisted record. A user submission may
	// materialize into several of these (installment or recurring series).
	Transaction struct {
		ID          string            `json:"id"`
		Description string            `json:"description"`
		Amount      Money             `json:"amount"`
		Currency    Currency          `json:"currency"`

		// Pre-conversion values, present only for foreign submissions.
		OriginalAmount   *Money   `json:"originalAmount,omitempty"`
		OriginalCurrency Currency `json:"originalCurrency,omitempty"`
		ExchangeRate     float64  `json:"exchangeRate,omitempty"`

		Date     Date              `json:"date"`
		Type     TransactionType   `json:"type"`
		Status   TransactionStatus `json:"status"`
		CardID   string            `json:"cardId,omitempty"`
		Category string            `json:"category"`
		Tags     []string          `json:"tags"`

		IsInstallment     bool   `json:"isInstallment"`
		InstallmentID     string `json:"installmentId,omitempty"`
		InstallmentNumber int    `json:"installmentNumber,omitempty"`
		TotalInstallments int    `json:"totalInstallments,omitempty"`

		IsRecurring         bool                `json:"isRecurring"`
		RecurrenceFrequency RecurrenceFrequency `json:"recurrenceFrequency,omitempty"`
		RecurrenceEndDate   Date                `json:"recurrenceEndDate,omitempty"`
	}

	// TransactionDraft is a submission before expansion: a Transaction minus
	// the identifiers the engine assigns.
	TransactionDraft struct {
		Description string
		Amount      Money
		Currency    Currency
		Date        Date
		Type        TransactionType
		Status      TransactionStatus // empty means "use the type default"
		CardID      string
		Category    string
		Tags        []string

		IsInstallment     bool
		InstallmentNumber int // >1 resumes an existing plan mid-way
		TotalInstallments int

		IsRecurring         bool
		RecurrenceFrequency RecurrenceFrequency
		RecurrenceEndDate   Date
	}

	// CreditCard is a billing account referenced by transactions.
	CreditCard struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Last4Digits string `json:"last4Digits"`
		Limit       Money  `json:"limit"`
		ClosingDay  int    `json:"closingDay"`
		DueDay      int    `json:"dueDay"`
		Color       string `json:"color"`
	}

	// Budget is a monthly spending cap for one category.
	Budget struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
		Period   string `json:"period"` // fixed to MONTHLY
	}

	// BudgetUsage is a Budget with current-month consumption, computed on
	// read and never persisted.
	BudgetUsage struct {
		Budget
		Spent      Money   `json:"spent"`
		Remaining  Money   `json:"remaining"`
		Percentage float64 `json:"percentage"`
	}

	// UserProfile identifies the backup owner.
	UserProfile struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid transaction status")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")
	ErrInstallmentCount = errors.New("installment count out of range")
	ErrNotFound         = errors.New("not found")
)

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (s TransactionStatus) Valid() bool {
	return s == StatusPaid || s == StatusPending
}

func (f RecurrenceFrequency) Valid() bool {
	return f == Monthly || f == Weekly || f == Yearly
}

func (c Currency) Valid() bool {
	return c == BRL || c == USD || c == EUR
}

func (d TransactionDraft) Validate() error {
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if d.Status != "" && !d.Status.Valid() {
		return ErrInvalidStatus
	}
	if d.Currency != "" && !d.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if d.IsInstallment {
		if d.TotalInstallments < 1 || d.TotalInstallments > MaxInstallments {
			return ErrInstallmentCount
		}
		if d.InstallmentNumber > d.TotalInstallments {
			return ErrInstallmentCount
		}
	}
	if d.IsRecurring && d.RecurrenceFrequency != "" && !d.RecurrenceFrequency.Valid() {
		return ErrInvalidFrequency
	}
	if !d.RecurrenceEndDate.IsZero() && d.RecurrenceEndDate.Before(d.Date.Time) {
		return errors.New("recurrence end date before start date")
	}
	return nil
}

func (c CreditCard) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return errors.New("empty card name")
	}
	if len(c.Last4Digits) != 4 {
		return errors.New("last 4 digits must be exactly 4 characters")
	}
	for _, r := range c.Last4Digits {
		if r < '0' || r > '9' {
			return errors.New("last 4 digits must be numeric")
		}
	}
	if err := c.Limit.Validate(); err != nil {
		return err
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return errors.New("closing day must be between 1 and 31")
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return errors.New("due day must be between 1 and 31")
	}
	return nil
}

func (b Budget) Validate() error {
	if len(strings.TrimSpace(b.Category)) == 0 {
		return errors.New("empty budget category")
	}
	return b.Amount.Validate()
}
