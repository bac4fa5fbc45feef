package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ccexpense/internal/core"
	"ccexpense/internal/storage"
)

// BudgetService manages monthly category caps and derives their consumption
// on read. Usage figures are never persisted.
type BudgetService struct {
	budgets      BudgetStore
	transactions TransactionStore
	now          func() time.Time
}

func NewBudgetService(budgets BudgetStore, transactions TransactionStore) *BudgetService {
	return &BudgetService{
		budgets:      budgets,
		transactions: transactions,
		now:          time.Now,
	}
}

func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("validate budget: %w", err)
	}
	b.ID = uuid.NewString()
	b.Period = "MONTHLY"
	if err := s.budgets.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, id string) error {
	return s.budgets.DeleteBudget(ctx, id)
}

// Usage reports each budget with its current-month spend. Categories match
// case-insensitively; the percentage is capped at 100 for display.
func (s *BudgetService) Usage(ctx context.Context) ([]core.BudgetUsage, error) {
	budgets, err := s.budgets.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	now := s.now()
	txs, err := s.transactions.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	usage := make([]core.BudgetUsage, 0, len(budgets))
	for _, b := range budgets {
		var spent int64
		for _, tx := range txs {
			if tx.Type != core.Expense || !tx.Date.InMonth(now.Year(), now.Month()) {
				continue
			}
			if strings.EqualFold(tx.Category, b.Category) {
				spent += tx.Amount.Cents
			}
		}

		percentage := 0.0
		if b.Amount.Cents > 0 {
			percentage = float64(spent) / float64(b.Amount.Cents) * 100
			if percentage > 100 {
				percentage = 100
			}
		}

		usage = append(usage, core.BudgetUsage{
			Budget:     b,
			Spent:      core.Money{Cents: spent},
			Remaining:  core.Money{Cents: b.Amount.Cents - spent},
			Percentage: percentage,
		})
	}
	return usage, nil
}
