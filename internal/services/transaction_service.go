package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ccexpense/internal/amqp"
	"ccexpense/internal/core"
	"ccexpense/internal/dashboard"
	"ccexpense/internal/expand"
	"ccexpense/internal/storage"
)

// TransactionService runs drafts through the expansion engine, persists the
// resulting batch atomically and announces the change.
type TransactionService struct {
	store  TransactionStore
	engine *expand.Engine
	events EventPublisher
	now    func() time.Time
}

func NewTransactionService(store TransactionStore, engine *expand.Engine, events EventPublisher) *TransactionService {
	return &TransactionService{
		store:  store,
		engine: engine,
		events: events,
		now:    time.Now,
	}
}

// Create expands a draft into its record set and persists it all-or-nothing.
// A failed batch leaves zero new records behind.
func (s *TransactionService) Create(ctx context.Context, draft core.TransactionDraft) ([]core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("validate draft: %w", err)
	}

	txs := s.engine.Expand(ctx, draft, core.DateOf(s.now()))

	if err := s.store.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("persist transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions created",
		"count", len(txs),
		"type", draft.Type,
		"installment", draft.IsInstallment,
		"recurring", draft.IsRecurring)

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeCreated, ids...))

	return txs, nil
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeUpdated, tx.ID))
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeDeleted, id))
	return nil
}

// Stats reads the full current set and derives the dashboard snapshot.
func (s *TransactionService) Stats(ctx context.Context) (core.DashboardStats, error) {
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		return core.DashboardStats{}, fmt.Errorf("load transactions: %w", err)
	}
	return dashboard.Aggregate(txs, s.now()), nil
}

func (s *TransactionService) publish(ctx context.Context, msg *amqp.LedgerChangeMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerChange(ctx, msg); err != nil {
		// The record is already persisted; losing the event only delays the
		// next backup snapshot.
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"change", msg.Change, "error", err)
	}
}
