package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ccexpense/internal/amqp"
	"ccexpense/internal/core"
	"ccexpense/internal/storage"
)

// BackupVersion is the snapshot document version written into every export.
const BackupVersion = "1.0"

var (
	// ErrBackupInvalid means the document is not parseable JSON.
	ErrBackupInvalid = errors.New("invalid backup document")
	// ErrBackupMissingTransactions means the document has no transactions array.
	ErrBackupMissingTransactions = errors.New("backup missing transactions array")
	// ErrBackupMissingUser means the document has no user object with an email.
	ErrBackupMissingUser = errors.New("backup missing user email")
)

// BackupService exports the full ledger as a JSON document and restores it
// whole. A restore either replaces everything or touches nothing.
type BackupService struct {
	store  LedgerStore
	events EventPublisher
	now    func() time.Time
}

func NewBackupService(store LedgerStore, events EventPublisher) *BackupService {
	return &BackupService{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// EnsureProfile seeds the backup-owner profile when none is stored yet. The
// profile is what makes a generated backup restorable (Restore requires a
// user email), so every install must have one before the first snapshot.
// An already-saved profile is never overwritten.
func EnsureProfile(ctx context.Context, store ProfileStore, fallback core.UserProfile) error {
	existing, err := store.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if existing.Email != "" {
		return nil
	}
	if err := store.SaveProfile(ctx, fallback); err != nil {
		return fmt.Errorf("seed profile: %w", err)
	}
	slog.InfoContext(ctx, "Seeded backup owner profile", "email", fallback.Email)
	return nil
}

// Generate assembles a snapshot of the current ledger.
func (s *BackupService) Generate(ctx context.Context) (core.Backup, error) {
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		return core.Backup{}, fmt.Errorf("load transactions: %w", err)
	}
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return core.Backup{}, fmt.Errorf("load cards: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return core.Backup{}, fmt.Errorf("load budgets: %w", err)
	}
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return core.Backup{}, fmt.Errorf("load profile: %w", err)
	}

	return core.Backup{
		Version:      BackupVersion,
		Timestamp:    s.now().UTC(),
		User:         profile,
		Transactions: txs,
		Cards:        cards,
		Budgets:      budgets,
	}, nil
}

// Restore validates the document shape before touching storage: a transactions
// array and a user object with an email must be present, otherwise the whole
// restore is rejected with nothing applied.
func (s *BackupService) Restore(ctx context.Context, raw []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupInvalid, err)
	}

	txsRaw, ok := doc["transactions"]
	if !ok {
		return ErrBackupMissingTransactions
	}
	var txs []core.Transaction
	if err := json.Unmarshal(txsRaw, &txs); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupMissingTransactions, err)
	}

	userRaw, ok := doc["user"]
	if !ok {
		return ErrBackupMissingUser
	}
	var profile core.UserProfile
	if err := json.Unmarshal(userRaw, &profile); err != nil || profile.Email == "" {
		return ErrBackupMissingUser
	}

	var cards []core.CreditCard
	if cardsRaw, ok := doc["cards"]; ok {
		if err := json.Unmarshal(cardsRaw, &cards); err != nil {
			return fmt.Errorf("parse cards: %w", err)
		}
	}
	var budgets []core.Budget
	if budgetsRaw, ok := doc["budgets"]; ok {
		if err := json.Unmarshal(budgetsRaw, &budgets); err != nil {
			return fmt.Errorf("parse budgets: %w", err)
		}
	}

	if err := s.store.ReplaceAll(ctx, txs, cards, budgets); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	slog.InfoContext(ctx, "Ledger restored from backup",
		"transactions", len(txs), "cards", len(cards), "budgets", len(budgets))

	if s.events != nil {
		msg := amqp.NewLedgerChangeMessage(amqp.ChangeRestored)
		if err := s.events.PublishLedgerChange(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish restore event", "error", err)
		}
	}
	return nil
}
