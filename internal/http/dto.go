package http

import (
	"ccexpense/internal/core"
)

type transactionRequest struct {
	Description string   `json:"description" validate:"required,max=200"`
	Amount      float64  `json:"amount" validate:"required,gt=0"`
	Currency    string   `json:"currency" validate:"omitempty,oneof=BRL USD EUR"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	Type        string   `json:"type" validate:"required,oneof=EXPENSE INCOME"`
	Status      string   `json:"status" validate:"omitempty,oneof=PAID PENDING"`
	CardID      string   `json:"cardId"`
	Category    string   `json:"category" validate:"max=100"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`

	IsInstallment     bool `json:"isInstallment"`
	InstallmentNumber int  `json:"installmentNumber" validate:"omitempty,min=1,max=24"`
	TotalInstallments int  `json:"totalInstallments" validate:"omitempty,min=1,max=24"`

	IsRecurring         bool   `json:"isRecurring"`
	RecurrenceFrequency string `json:"recurrenceFrequency" validate:"omitempty,oneof=MONTHLY WEEKLY YEARLY"`
	RecurrenceEndDate   string `json:"recurrenceEndDate" validate:"omitempty,datetime=2006-01-02"`
}

func (req transactionRequest) toDraft() (core.TransactionDraft, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.TransactionDraft{}, err
	}

	draft := core.TransactionDraft{
		Description:       sanitizeInput(req.Description),
		Amount:            core.MoneyFromFloat(req.Amount),
		Currency:          core.Currency(req.Currency),
		Date:              date,
		Type:              core.TransactionType(req.Type),
		Status:            core.TransactionStatus(req.Status),
		CardID:            req.CardID,
		Category:          sanitizeInput(req.Category),
		Tags:              req.Tags,
		IsInstallment:     req.IsInstallment,
		InstallmentNumber: req.InstallmentNumber,
		TotalInstallments: req.TotalInstallments,
		IsRecurring:       req.IsRecurring,
	}
	if req.RecurrenceFrequency != "" {
		draft.RecurrenceFrequency = core.RecurrenceFrequency(req.RecurrenceFrequency)
	}
	if req.RecurrenceEndDate != "" {
		end, err := core.ParseDate(req.RecurrenceEndDate)
		if err != nil {
			return core.TransactionDraft{}, err
		}
		draft.RecurrenceEndDate = end
	}
	return draft, nil
}

// transactionUpdateRequest covers the fields a user can change on one
// persisted record. Expansion metadata is immutable after creation.
type transactionUpdateRequest struct {
	Description string   `json:"description" validate:"required,max=200"`
	Amount      float64  `json:"amount" validate:"required,gt=0"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	Status      string   `json:"status" validate:"required,oneof=PAID PENDING"`
	CardID      string   `json:"cardId"`
	Category    string   `json:"category" validate:"max=100"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}

type cardRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Last4Digits string  `json:"last4Digits" validate:"required,len=4,numeric"`
	Limit       float64 `json:"limit" validate:"required,gt=0"`
	ClosingDay  int     `json:"closingDay" validate:"required,min=1,max=31"`
	DueDay      int     `json:"dueDay" validate:"required,min=1,max=31"`
	Color       string  `json:"color" validate:"omitempty,hexcolor"`
}

func (req cardRequest) toCard() core.CreditCard {
	return core.CreditCard{
		Name:        sanitizeInput(req.Name),
		Last4Digits: req.Last4Digits,
		Limit:       core.MoneyFromFloat(req.Limit),
		ClosingDay:  req.ClosingDay,
		DueDay:      req.DueDay,
		Color:       req.Color,
	}
}

type budgetRequest struct {
	Category string  `json:"category" validate:"required,max=100"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
}

type importResponse struct {
	Imported int `json:"imported"`
}
