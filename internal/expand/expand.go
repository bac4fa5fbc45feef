// Package expand implements the transaction expansion engine: it turns one
// submitted draft into the set of records to persist. An installment purchase
// becomes one record per part, a recurring template becomes a bounded series
// of future-dated occurrences, anything else becomes a single record.
package expand

import (
	"context"

	"github.com/google/uuid"

	"ccexpense/internal/core"
)

// RecurrenceCap bounds how many occurrences one recurring submission
// materializes. Further occurrences are never generated by a background job;
// the user resubmits when the series runs out.
const RecurrenceCap = 6

// RateSource yields the multiplier from a currency into the base currency.
// Implementations fall back internally and never fail (see internal/exchange).
type RateSource interface {
	Rate(ctx context.Context, from core.Currency) float64
}

// CategoryResolver derives a category from a transaction description.
type CategoryResolver interface {
	Categorize(description string) string
}

// Engine expands drafts into persistable transactions.
type Engine struct {
	rates      RateSource
	categories CategoryResolver
	newID      func() string
}

func NewEngine(rates RateSource, categories CategoryResolver) *Engine {
	return &Engine{
		rates:      rates,
		categories: categories,
		newID:      uuid.NewString,
	}
}

// Expand materializes a draft into one or more transactions. The result is
// never empty and every element is fully populated and ready for persistence.
// The only side effect is the rate lookup; re-running with the same draft
// yields an equivalent set with fresh IDs.
func (e *Engine) Expand(ctx context.Context, draft core.TransactionDraft, base core.Date) []core.Transaction {
	if !draft.Date.IsZero() {
		base = draft.Date
	}

	// Currency normalization happens exactly once, before any splitting, so
	// installment and recurrence math operate in base-currency cents.
	head := core.Transaction{
		Description: draft.Description,
		Amount:      draft.Amount,
		Currency:    core.BaseCurrency,
		Date:        base,
		Type:        draft.Type,
		CardID:      draft.CardID,
		Category:    draft.Category,
		Tags:        draft.Tags,
	}
	if head.Tags == nil {
		head.Tags = []string{}
	}
	if draft.Currency != "" && draft.Currency != core.BaseCurrency {
		rate := e.rates.Rate(ctx, draft.Currency)
		original := draft.Amount
		head.Amount = original.Mul(rate)
		head.OriginalAmount = &original
		head.OriginalCurrency = draft.Currency
		head.ExchangeRate = rate
	}

	if head.Category == "" || head.Category == core.CategoryUncategorized {
		head.Category = e.categories.Categorize(head.Description)
	}

	// Income defaults to PAID, expenses to PENDING. Only the first generated
	// record of a plan keeps this; later parts/occurrences are not yet due.
	status := draft.Status
	if status == "" {
		if draft.Type == core.Income {
			status = core.StatusPaid
		} else {
			status = core.StatusPending
		}
	}

	switch {
	case draft.IsInstallment && draft.TotalInstallments > 1 && draft.Type == core.Expense:
		return e.expandInstallments(draft, head, base, status)
	case draft.IsRecurring:
		return e.expandRecurring(draft, head, base, status)
	default:
		head.ID = e.newID()
		head.Status = status
		return []core.Transaction{head}
	}
}

// expandInstallments splits the total into equal cent parts, one record per
// installment number, each a calendar month after the previous. The integer
// division remainder lands on the first generated record so the parts sum to
// the submitted total exactly.
func (e *Engine) expandInstallments(draft core.TransactionDraft, head core.Transaction, base core.Date, status core.TransactionStatus) []core.Transaction {
	total := draft.TotalInstallments
	part, remainder := head.Amount.Split(total)

	start := draft.InstallmentNumber
	if start < 1 {
		start = 1
	}

	groupID := e.newID()
	out := make([]core.Transaction, 0, total-start+1)
	for num := start; num <= total; num++ {
		offset := num - start // position among generated records, not the plan
		tx := head
		tx.ID = e.newID()
		tx.Date = base.AddMonths(offset)
		tx.IsInstallment = true
		tx.InstallmentID = groupID
		tx.InstallmentNumber = num
		tx.TotalInstallments = total
		if offset == 0 {
			tx.Amount = part.Add(remainder)
			tx.Status = status
		} else {
			tx.Amount = part
			tx.Status = core.StatusPending
		}
		out = append(out, tx)
	}
	return out
}

// expandRecurring generates up to RecurrenceCap occurrences, each carrying
// the full amount. Generation stops at the first occurrence dated past the
// recurrence end date, excluding that occurrence.
func (e *Engine) expandRecurring(draft core.TransactionDraft, head core.Transaction, base core.Date, status core.TransactionStatus) []core.Transaction {
	freq := draft.RecurrenceFrequency
	if freq == "" {
		freq = core.Monthly
	}

	out := make([]core.Transaction, 0, RecurrenceCap)
	for i := 0; i < RecurrenceCap; i++ {
		var date core.Date
		switch freq {
		case core.Weekly:
			date = base.AddDays(7 * i)
		case core.Yearly:
			date = base.AddYears(i)
		default:
			date = base.AddMonths(i)
		}

		if !draft.RecurrenceEndDate.IsZero() && date.After(draft.RecurrenceEndDate.Time) {
			break
		}

		tx := head
		tx.ID = e.newID()
		tx.Date = date
		tx.IsRecurring = true
		tx.RecurrenceFrequency = freq
		tx.RecurrenceEndDate = draft.RecurrenceEndDate
		if i == 0 {
			tx.Status = status
		} else {
			tx.Status = core.StatusPending
		}
		out = append(out, tx)
	}

	if len(out) == 0 {
		// An end date before the base date never reaches here through the
		// service layer (draft validation rejects it); for direct callers the
		// head occurrence is still emitted to keep Expand's non-empty
		// contract.
		tx := head
		tx.ID = e.newID()
		tx.IsRecurring = true
		tx.RecurrenceFrequency = freq
		tx.RecurrenceEndDate = draft.RecurrenceEndDate
		tx.Status = status
		out = append(out, tx)
	}
	return out
}
