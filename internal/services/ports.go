// Package services orchestrates the engines, storage and messaging: it is
// the layer request handlers talk to.
package services

import (
	"context"

	"ccexpense/internal/amqp"
	"ccexpense/internal/core"
	"ccexpense/internal/storage"
)

// TransactionStore is the persistence surface the transaction service needs.
// *storage.SQLiteRepository implements it; tests substitute an in-memory fake.
type TransactionStore interface {
	CreateTransactions(ctx context.Context, txs []core.Transaction) error
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

type CardStore interface {
	CreateCard(ctx context.Context, card core.CreditCard) error
	ListCards(ctx context.Context) ([]core.CreditCard, error)
	UpdateCard(ctx context.Context, card core.CreditCard) error
	DeleteCard(ctx context.Context, id string) error
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) error
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context) (core.UserProfile, error)
	SaveProfile(ctx context.Context, p core.UserProfile) error
}

// LedgerStore is the full surface the backup service needs.
type LedgerStore interface {
	TransactionStore
	CardStore
	BudgetStore
	ProfileStore
	ReplaceAll(ctx context.Context, txs []core.Transaction, cards []core.CreditCard, budgets []core.Budget) error
}

// EventPublisher announces ledger changes. May be absent (nil-guarded by the
// services); a broker outage never fails a user request.
type EventPublisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
}
