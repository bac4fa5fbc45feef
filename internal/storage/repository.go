// Package storage persists the ledger in SQLite. All multi-record writes go
// through a single SQL transaction so a failed batch leaves nothing behind.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ccexpense/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, description, amount_cents, currency,
	original_amount_cents, original_currency, exchange_rate, date, type,
	status, card_id, category, tags, is_installment, installment_id,
	installment_number, total_installments, is_recurring,
	recurrence_frequency, recurrence_end_date`

const insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	From core.Date
	To   core.Date
	Type core.TransactionType
}

// CreateTransactions persists a batch atomically. An expanded installment or
// recurrence plan either lands whole or not at all.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx, insertArgs(tx)...); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved", "count", len(txs))
	return nil
}

func insertArgs(tx core.Transaction) []any {
	var originalCents sql.NullInt64
	if tx.OriginalAmount != nil {
		originalCents = sql.NullInt64{Int64: tx.OriginalAmount.Cents, Valid: true}
	}
	endDate := ""
	if !tx.RecurrenceEndDate.IsZero() {
		endDate = tx.RecurrenceEndDate.String()
	}
	return []any{
		tx.ID, tx.Description, tx.Amount.Cents, string(tx.Currency),
		originalCents, string(tx.OriginalCurrency), tx.ExchangeRate,
		tx.Date.String(), string(tx.Type), string(tx.Status), tx.CardID,
		tx.Category, marshalTags(tx.Tags), tx.IsInstallment, tx.InstallmentID,
		tx.InstallmentNumber, tx.TotalInstallments, tx.IsRecurring,
		string(tx.RecurrenceFrequency), endDate,
	}
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx            core.Transaction
		currency      string
		origCurrency  string
		txType        string
		status        string
		frequency     string
		dateStr       string
		endDateStr    string
		tagsJSON      string
		originalCents sql.NullInt64
	)
	err := row.Scan(&tx.ID, &tx.Description, &tx.Amount.Cents, &currency,
		&originalCents, &origCurrency, &tx.ExchangeRate, &dateStr, &txType,
		&status, &tx.CardID, &tx.Category, &tagsJSON, &tx.IsInstallment,
		&tx.InstallmentID, &tx.InstallmentNumber, &tx.TotalInstallments,
		&tx.IsRecurring, &frequency, &endDateStr)
	if err != nil {
		return tx, err
	}

	tx.Currency = core.Currency(currency)
	tx.OriginalCurrency = core.Currency(origCurrency)
	tx.Type = core.TransactionType(txType)
	tx.Status = core.TransactionStatus(status)
	tx.RecurrenceFrequency = core.RecurrenceFrequency(frequency)

	if originalCents.Valid {
		tx.OriginalAmount = &core.Money{Cents: originalCents.Int64}
	}
	if tx.Date, err = core.ParseDate(dateStr); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if endDateStr != "" {
		if tx.RecurrenceEndDate, err = core.ParseDate(endDateStr); err != nil {
			return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(tagsJSON), &tx.Tags); err != nil || tx.Tags == nil {
		tx.Tags = []string{}
	}
	return tx, nil
}

// ListTransactions returns the (optionally filtered) set sorted by date
// descending, newest insertions first within a date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tx, core.ErrNotFound
	}
	if err != nil {
		return tx, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	endDate := ""
	if !tx.RecurrenceEndDate.IsZero() {
		endDate = tx.RecurrenceEndDate.String()
	}
	var originalCents sql.NullInt64
	if tx.OriginalAmount != nil {
		originalCents = sql.NullInt64{Int64: tx.OriginalAmount.Cents, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		description = ?, amount_cents = ?, currency = ?,
		original_amount_cents = ?, original_currency = ?, exchange_rate = ?,
		date = ?, type = ?, status = ?, card_id = ?, category = ?, tags = ?,
		is_installment = ?, installment_id = ?, installment_number = ?,
		total_installments = ?, is_recurring = ?, recurrence_frequency = ?,
		recurrence_end_date = ?
		WHERE id = ?`,
		tx.Description, tx.Amount.Cents, string(tx.Currency),
		originalCents, string(tx.OriginalCurrency), tx.ExchangeRate,
		tx.Date.String(), string(tx.Type), string(tx.Status), tx.CardID,
		tx.Category, marshalTags(tx.Tags), tx.IsInstallment, tx.InstallmentID,
		tx.InstallmentNumber, tx.TotalInstallments, tx.IsRecurring,
		string(tx.RecurrenceFrequency), endDate, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- cards ---

func (r *SQLiteRepository) CreateCard(ctx context.Context, card core.CreditCard) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (id, name, last4_digits, limit_cents, closing_day, due_day, color)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.Name, card.Last4Digits, card.Limit.Cents,
		card.ClosingDay, card.DueDay, card.Color)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, last4_digits, limit_cents, closing_day, due_day, color
		 FROM cards ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []core.CreditCard
	for rows.Next() {
		var c core.CreditCard
		if err := rows.Scan(&c.ID, &c.Name, &c.Last4Digits, &c.Limit.Cents,
			&c.ClosingDay, &c.DueDay, &c.Color); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *SQLiteRepository) UpdateCard(ctx context.Context, card core.CreditCard) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET name = ?, last4_digits = ?, limit_cents = ?,
		 closing_day = ?, due_day = ?, color = ? WHERE id = ?`,
		card.Name, card.Last4Digits, card.Limit.Cents,
		card.ClosingDay, card.DueDay, card.Color, card.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return requireRow(res)
}

// DeleteCard removes the card only. Referencing transactions keep their
// cardId; cascade semantics are deliberately left undefined upstream.
func (r *SQLiteRepository) DeleteCard(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return requireRow(res)
}

// --- budgets ---

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, category, amount_cents, period) VALUES (?, ?, ?, ?)`,
		b.ID, b.Category, b.Amount.Cents, b.Period)
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, period FROM budgets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Amount.Cents, &b.Period); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res)
}

// --- profile ---

func (r *SQLiteRepository) GetProfile(ctx context.Context) (core.UserProfile, error) {
	var p core.UserProfile
	err := r.db.QueryRowContext(ctx,
		`SELECT name, email FROM profile WHERE id = 1`).Scan(&p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profile (id, name, email) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// --- restore ---

// ReplaceAll swaps the entire ledger in one SQL transaction, for backup
// restore. Nothing is applied if any insert fails.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, txs []core.Transaction, cards []core.CreditCard, budgets []core.Budget) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer dbTx.Rollback()

	for _, table := range []string{"transactions", "cards", "budgets"} {
		if _, err := dbTx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmt, err := dbTx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx, insertArgs(tx)...); err != nil {
			return fmt.Errorf("restore transaction %s: %w", tx.ID, err)
		}
	}

	for _, card := range cards {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO cards (id, name, last4_digits, limit_cents, closing_day, due_day, color)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			card.ID, card.Name, card.Last4Digits, card.Limit.Cents,
			card.ClosingDay, card.DueDay, card.Color); err != nil {
			return fmt.Errorf("restore card %s: %w", card.ID, err)
		}
	}

	for _, b := range budgets {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO budgets (id, category, amount_cents, period) VALUES (?, ?, ?, ?)`,
			b.ID, b.Category, b.Amount.Cents, b.Period); err != nil {
			return fmt.Errorf("restore budget %s: %w", b.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	slog.InfoContext(ctx, "Ledger restored from backup",
		"transactions", len(txs), "cards", len(cards), "budgets", len(budgets))
	return nil
}
