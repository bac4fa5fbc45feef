package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"ccexpense/internal/amqp"
	"ccexpense/internal/core"
	"ccexpense/internal/expand"
	"ccexpense/internal/storage"
)

// memStore is an in-memory LedgerStore for service tests.
type memStore struct {
	txs     []core.Transaction
	cards   []core.CreditCard
	budgets []core.Budget
	profile core.UserProfile
}

func (m *memStore) CreateTransactions(_ context.Context, txs []core.Transaction) error {
	m.txs = append(m.txs, txs...)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, _ storage.TransactionFilter) ([]core.Transaction, error) {
	return m.txs, nil
}

func (m *memStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	for _, tx := range m.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (m *memStore) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	for i := range m.txs {
		if m.txs[i].ID == tx.ID {
			m.txs[i] = tx
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memStore) DeleteTransaction(_ context.Context, id string) error {
	for i := range m.txs {
		if m.txs[i].ID == id {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memStore) CreateCard(_ context.Context, card core.CreditCard) error {
	m.cards = append(m.cards, card)
	return nil
}

func (m *memStore) ListCards(_ context.Context) ([]core.CreditCard, error) {
	return m.cards, nil
}

func (m *memStore) UpdateCard(_ context.Context, card core.CreditCard) error {
	for i := range m.cards {
		if m.cards[i].ID == card.ID {
			m.cards[i] = card
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memStore) DeleteCard(_ context.Context, id string) error {
	for i := range m.cards {
		if m.cards[i].ID == id {
			m.cards = append(m.cards[:i], m.cards[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memStore) CreateBudget(_ context.Context, b core.Budget) error {
	m.budgets = append(m.budgets, b)
	return nil
}

func (m *memStore) ListBudgets(_ context.Context) ([]core.Budget, error) {
	return m.budgets, nil
}

func (m *memStore) DeleteBudget(_ context.Context, id string) error {
	for i := range m.budgets {
		if m.budgets[i].ID == id {
			m.budgets = append(m.budgets[:i], m.budgets[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memStore) GetProfile(_ context.Context) (core.UserProfile, error) {
	return m.profile, nil
}

func (m *memStore) SaveProfile(_ context.Context, p core.UserProfile) error {
	m.profile = p
	return nil
}

func (m *memStore) ReplaceAll(_ context.Context, txs []core.Transaction, cards []core.CreditCard, budgets []core.Budget) error {
	m.txs = txs
	m.cards = cards
	m.budgets = budgets
	return nil
}

type capturePublisher struct {
	msgs []*amqp.LedgerChangeMessage
	err  error
}

func (p *capturePublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fixedRates struct{ rate float64 }

func (f fixedRates) Rate(_ context.Context, from core.Currency) float64 {
	if from == core.BaseCurrency {
		return 1
	}
	return f.rate
}

type fixedCategories struct{ category string }

func (f fixedCategories) Categorize(string) string { return f.category }

func newTestEngine() *expand.Engine {
	return expand.NewEngine(fixedRates{rate: 5}, fixedCategories{category: "General"})
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestTransactionServiceCreateInstallments(t *testing.T) {
	store := &memStore{}
	events := &capturePublisher{}
	svc := NewTransactionService(store, newTestEngine(), events)

	draft := core.TransactionDraft{
		Description:       "Notebook",
		Amount:            core.Money{Cents: 10000},
		Currency:          core.BRL,
		Date:              mustDate(t, "2026-01-15"),
		Type:              core.Expense,
		Category:          "Electronics",
		IsInstallment:     true,
		TotalInstallments: 3,
	}

	created, err := svc.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 records, got %d", len(created))
	}
	if len(store.txs) != 3 {
		t.Fatalf("expected 3 persisted records, got %d", len(store.txs))
	}

	var sum int64
	for _, tx := range created {
		sum += tx.Amount.Cents
	}
	if sum != 10000 {
		t.Errorf("installment sum = %d, want 10000", sum)
	}

	if len(events.msgs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.msgs))
	}
	msg := events.msgs[0]
	if msg.Change != amqp.ChangeCreated {
		t.Errorf("event change = %q, want %q", msg.Change, amqp.ChangeCreated)
	}
	if len(msg.TransactionIDs) != 3 {
		t.Errorf("event carries %d ids, want 3", len(msg.TransactionIDs))
	}
}

func TestTransactionServiceCreateRejectsInvalidDraft(t *testing.T) {
	store := &memStore{}
	events := &capturePublisher{}
	svc := NewTransactionService(store, newTestEngine(), events)

	draft := core.TransactionDraft{
		Description: "   ",
		Amount:      core.Money{Cents: 500},
		Date:        mustDate(t, "2026-01-15"),
		Type:        core.Expense,
	}

	if _, err := svc.Create(context.Background(), draft); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("Create error = %v, want ErrEmptyDescription", err)
	}
	if len(store.txs) != 0 {
		t.Errorf("rejected draft persisted %d records", len(store.txs))
	}
	if len(events.msgs) != 0 {
		t.Errorf("rejected draft published %d events", len(events.msgs))
	}
}

func TestTransactionServiceCreateSurvivesPublishFailure(t *testing.T) {
	store := &memStore{}
	events := &capturePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, newTestEngine(), events)

	draft := core.TransactionDraft{
		Description: "Coffee",
		Amount:      core.Money{Cents: 800},
		Currency:    core.BRL,
		Date:        mustDate(t, "2026-02-01"),
		Type:        core.Expense,
		Category:    "Food",
	}

	created, err := svc.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || len(store.txs) != 1 {
		t.Errorf("expected 1 persisted record despite broker failure")
	}
}

func TestTransactionServiceDeletePublishes(t *testing.T) {
	store := &memStore{txs: []core.Transaction{{ID: "tx-1"}}}
	events := &capturePublisher{}
	svc := NewTransactionService(store, newTestEngine(), events)

	if err := svc.Delete(context.Background(), "tx-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(events.msgs) != 1 || events.msgs[0].Change != amqp.ChangeDeleted {
		t.Fatalf("expected one deleted event, got %+v", events.msgs)
	}

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Delete(missing) = %v, want ErrNotFound", err)
	}
	if len(events.msgs) != 1 {
		t.Errorf("failed delete must not publish")
	}
}

func TestImportCSVSkipsMalformedLines(t *testing.T) {
	store := &memStore{}
	svc := NewImportService(NewTransactionService(store, newTestEngine(), nil))

	input := strings.Join([]string{
		"Date,Description,Amount,Category",
		"2026-03-01,Market run,-45.90,Groceries",
		"not-a-date,Broken,-1.00,Food",
		"2026-03-05,Salary,3000.00,",
		"",
		"2026-03-07,Mystery,abc,Food",
	}, "\n")

	created, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if len(store.txs) != 2 {
		t.Fatalf("persisted %d records, want 2", len(store.txs))
	}

	expense := store.txs[0]
	if expense.Type != core.Expense {
		t.Errorf("negative amount imported as %s, want EXPENSE", expense.Type)
	}
	if expense.Amount.Cents != 4590 {
		t.Errorf("expense cents = %d, want 4590", expense.Amount.Cents)
	}
	if len(expense.Tags) != 1 || expense.Tags[0] != ImportedTag {
		t.Errorf("expense tags = %v, want [%s]", expense.Tags, ImportedTag)
	}

	income := store.txs[1]
	if income.Type != core.Income {
		t.Errorf("positive amount imported as %s, want INCOME", income.Type)
	}
	if income.Category != "General" {
		t.Errorf("missing category resolved to %q, want auto-assigned General", income.Category)
	}
}

func TestImportOFX(t *testing.T) {
	store := &memStore{}
	svc := NewImportService(NewTransactionService(store, newTestEngine(), nil))

	input := `OFXHEADER:100
<OFX><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260310120000
<TRNAMT>-25.50
<MEMO>Bus ticket
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260312
<TRNAMT>150.00
<NAME>Refund
</STMTTRN>
<STMTTRN>
<TRNAMT>-1.00
<MEMO>No date
</STMTTRN>
</BANKTRANLIST></OFX>`

	created, err := svc.ImportOFX(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportOFX: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	first := store.txs[0]
	if first.Description != "Bus ticket" || first.Type != core.Expense || first.Amount.Cents != 2550 {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Date.String() != "2026-03-10" {
		t.Errorf("first date = %s, want 2026-03-10", first.Date)
	}

	second := store.txs[1]
	if second.Description != "Refund" || second.Type != core.Income {
		t.Errorf("unexpected second record: %+v", second)
	}
}

func TestBackupGenerate(t *testing.T) {
	store := &memStore{
		txs:     []core.Transaction{{ID: "tx-1"}},
		cards:   []core.CreditCard{{ID: "card-1"}},
		profile: core.UserProfile{Name: "Ana", Email: "ana@example.com"},
	}
	svc := NewBackupService(store, nil)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }

	backup, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if backup.Version != BackupVersion {
		t.Errorf("version = %q, want %q", backup.Version, BackupVersion)
	}
	if backup.User.Email != "ana@example.com" {
		t.Errorf("user email = %q", backup.User.Email)
	}
	if len(backup.Transactions) != 1 || len(backup.Cards) != 1 {
		t.Errorf("backup content incomplete: %+v", backup)
	}
}

func TestEnsureProfile(t *testing.T) {
	fallback := core.UserProfile{Name: "Local User", Email: "user@localhost"}

	store := &memStore{}
	if err := EnsureProfile(context.Background(), store, fallback); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if store.profile != fallback {
		t.Errorf("fresh store profile = %+v, want %+v", store.profile, fallback)
	}

	existing := core.UserProfile{Name: "Ana", Email: "ana@example.com"}
	store = &memStore{profile: existing}
	if err := EnsureProfile(context.Background(), store, fallback); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if store.profile != existing {
		t.Errorf("existing profile overwritten: %+v", store.profile)
	}
}

// A backup generated right after install, before any profile was saved, must
// still pass Restore's own validation once the owner profile is seeded.
func TestBackupRoundTripOnFreshInstall(t *testing.T) {
	source := &memStore{}
	if err := EnsureProfile(context.Background(), source, core.UserProfile{Name: "Local User", Email: "user@localhost"}); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	backup, err := NewBackupService(source, nil).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	raw, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("marshal backup: %v", err)
	}

	target := &memStore{txs: []core.Transaction{{ID: "old"}}}
	if err := NewBackupService(target, nil).Restore(context.Background(), raw); err != nil {
		t.Fatalf("restoring a freshly generated backup failed: %v", err)
	}
	if len(target.txs) != 0 {
		t.Errorf("restore kept stale transactions: %+v", target.txs)
	}
	if target.profile.Email != "user@localhost" {
		t.Errorf("restored profile = %+v", target.profile)
	}
}

func TestBackupRestoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{
			name:    "missing transactions",
			raw:     `{"user":{"name":"Ana","email":"ana@example.com"}}`,
			wantErr: ErrBackupMissingTransactions,
		},
		{
			name:    "missing user",
			raw:     `{"transactions":[]}`,
			wantErr: ErrBackupMissingUser,
		},
		{
			name:    "user without email",
			raw:     `{"transactions":[],"user":{"name":"Ana"}}`,
			wantErr: ErrBackupMissingUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{txs: []core.Transaction{{ID: "keep-me"}}}
			svc := NewBackupService(store, nil)

			err := svc.Restore(context.Background(), []byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Restore error = %v, want %v", err, tt.wantErr)
			}
			if len(store.txs) != 1 || store.txs[0].ID != "keep-me" {
				t.Errorf("rejected restore modified storage: %+v", store.txs)
			}
		})
	}
}

func TestBackupRestoreReplacesLedger(t *testing.T) {
	store := &memStore{
		txs:     []core.Transaction{{ID: "old-1"}, {ID: "old-2"}},
		budgets: []core.Budget{{ID: "old-budget"}},
	}
	events := &capturePublisher{}
	svc := NewBackupService(store, events)

	raw := `{
		"version": "1.0",
		"user": {"name": "Ana", "email": "ana@example.com"},
		"transactions": [{"id": "new-1", "description": "Rent", "amount": 1200.00, "currency": "BRL", "date": "2026-04-01", "type": "EXPENSE", "status": "PAID", "category": "Housing", "tags": []}],
		"cards": [{"id": "card-1", "name": "Main", "last4Digits": "1234", "limit": 5000.00, "closingDay": 5, "dueDay": 12, "color": "#334455"}]
	}`

	if err := svc.Restore(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(store.txs) != 1 || store.txs[0].ID != "new-1" {
		t.Errorf("transactions not replaced: %+v", store.txs)
	}
	if len(store.cards) != 1 || store.cards[0].Last4Digits != "1234" {
		t.Errorf("cards not replaced: %+v", store.cards)
	}
	if len(store.budgets) != 0 {
		t.Errorf("absent budgets section must clear budgets, got %+v", store.budgets)
	}
	if store.profile.Email != "ana@example.com" {
		t.Errorf("profile not saved: %+v", store.profile)
	}
	if len(events.msgs) != 1 || events.msgs[0].Change != amqp.ChangeRestored {
		t.Errorf("expected one restored event, got %+v", events.msgs)
	}
}

func TestBudgetUsage(t *testing.T) {
	now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		budgets: []core.Budget{
			{ID: "b1", Category: "Food", Amount: core.Money{Cents: 50000}, Period: "MONTHLY"},
			{ID: "b2", Category: "Transport", Amount: core.Money{Cents: 10000}, Period: "MONTHLY"},
		},
		txs: []core.Transaction{
			{ID: "1", Type: core.Expense, Category: "food", Amount: core.Money{Cents: 20000}, Date: mustDate(t, "2026-09-03")},
			{ID: "2", Type: core.Expense, Category: "Food", Amount: core.Money{Cents: 10000}, Date: mustDate(t, "2026-09-10")},
			{ID: "3", Type: core.Expense, Category: "Food", Amount: core.Money{Cents: 99900}, Date: mustDate(t, "2026-08-10")},
			{ID: "4", Type: core.Income, Category: "Food", Amount: core.Money{Cents: 5000}, Date: mustDate(t, "2026-09-05")},
			{ID: "5", Type: core.Expense, Category: "Transport", Amount: core.Money{Cents: 15000}, Date: mustDate(t, "2026-09-08")},
		},
	}

	svc := NewBudgetService(store, store)
	svc.now = func() time.Time { return now }

	usage, err := svc.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected 2 usage rows, got %d", len(usage))
	}

	food := usage[0]
	if food.Spent.Cents != 30000 {
		t.Errorf("food spent = %d, want 30000 (case-insensitive, current month, expenses only)", food.Spent.Cents)
	}
	if food.Remaining.Cents != 20000 {
		t.Errorf("food remaining = %d, want 20000", food.Remaining.Cents)
	}
	if food.Percentage != 60 {
		t.Errorf("food percentage = %v, want 60", food.Percentage)
	}

	transport := usage[1]
	if transport.Percentage != 100 {
		t.Errorf("overspent percentage = %v, want capped at 100", transport.Percentage)
	}
	if transport.Remaining.Cents != -5000 {
		t.Errorf("overspent remaining = %d, want -5000", transport.Remaining.Cents)
	}
}

func TestCardServiceAssignsID(t *testing.T) {
	store := &memStore{}
	svc := NewCardService(store)

	card, err := svc.Create(context.Background(), core.CreditCard{
		Name:        "Main",
		Last4Digits: "9876",
		Limit:       core.Money{Cents: 650000},
		ClosingDay:  5,
		DueDay:      12,
		Color:       "#112233",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if card.ID == "" {
		t.Error("created card has no id")
	}
	if len(store.cards) != 1 {
		t.Fatalf("persisted %d cards, want 1", len(store.cards))
	}
}
