package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ccexpense/internal/core"
)

// ImportedTag marks records that came in through a statement import rather
// than the form.
const ImportedTag = "Imported"

// ImportRow is the normalized tuple a statement parser produces per line:
// signed amount, negative meaning expense.
type ImportRow struct {
	Date        core.Date
	Description string
	Amount      core.Money // absolute value
	IsExpense   bool
	Category    string
}

// ImportService feeds parsed statement rows through the standard creation
// path, so imported records get the same expansion, categorization and
// status defaults as manual submissions.
type ImportService struct {
	transactions *TransactionService
}

func NewImportService(transactions *TransactionService) *ImportService {
	return &ImportService{transactions: transactions}
}

// ImportRows creates one transaction per row and returns how many were
// persisted. A failing row is skipped, not fatal.
func (s *ImportService) ImportRows(ctx context.Context, rows []ImportRow) int {
	created := 0
	for _, row := range rows {
		draft := core.TransactionDraft{
			Description: row.Description,
			Amount:      row.Amount,
			Currency:    core.BaseCurrency,
			Date:        row.Date,
			Type:        core.Income,
			Category:    row.Category,
			Tags:        []string{ImportedTag},
		}
		if row.IsExpense {
			draft.Type = core.Expense
		}

		if _, err := s.transactions.Create(ctx, draft); err != nil {
			slog.WarnContext(ctx, "Skipping import row",
				"description", row.Description, "error", err)
			continue
		}
		created++
	}
	return created
}

// ImportCSV reads "Date,Description,Amount,Category" lines, header included.
// Malformed lines are skipped and counted out, never fatal.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	var rows []ImportRow
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || lineNo == 1 {
			continue // header or blank
		}

		row, err := parseCSVLine(line)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed CSV line", "line", lineNo, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}

	return s.ImportRows(ctx, rows), nil
}

func parseCSVLine(line string) (ImportRow, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return ImportRow{}, fmt.Errorf("expected at least 3 fields, got %d", len(parts))
	}

	date, err := core.ParseDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return ImportRow{}, err
	}

	desc := strings.TrimSpace(parts[1])
	if desc == "" {
		return ImportRow{}, core.ErrEmptyDescription
	}

	amountStr := strings.TrimSpace(parts[2])
	isExpense := strings.HasPrefix(amountStr, "-")
	amount, err := core.ParseAmount(strings.TrimPrefix(amountStr, "-"))
	if err != nil {
		return ImportRow{}, err
	}

	category := core.CategoryUncategorized
	if len(parts) >= 4 && strings.TrimSpace(parts[3]) != "" {
		category = strings.TrimSpace(parts[3])
	}

	return ImportRow{
		Date:        date,
		Description: desc,
		Amount:      amount,
		IsExpense:   isExpense,
		Category:    category,
	}, nil
}

// ImportOFX extracts STMTTRN blocks from an OFX statement. Only the fields
// of the normalized row contract are read; malformed blocks are skipped.
func (s *ImportService) ImportOFX(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read ofx: %w", err)
	}

	var rows []ImportRow
	content := string(data)
	for {
		start := strings.Index(content, "<STMTTRN>")
		if start < 0 {
			break
		}
		end := strings.Index(content[start:], "</STMTTRN>")
		if end < 0 {
			break
		}
		block := content[start : start+end]
		content = content[start+end+len("</STMTTRN>"):]

		row, err := parseOFXBlock(block)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed OFX block", "error", err)
			continue
		}
		rows = append(rows, row)
	}

	return s.ImportRows(ctx, rows), nil
}

func parseOFXBlock(block string) (ImportRow, error) {
	dateStr := ofxField(block, "DTPOSTED")
	if len(dateStr) < 8 {
		return ImportRow{}, fmt.Errorf("missing or short DTPOSTED")
	}
	// OFX dates are YYYYMMDD with an optional time suffix.
	date, err := core.ParseDate(dateStr[:4] + "-" + dateStr[4:6] + "-" + dateStr[6:8])
	if err != nil {
		return ImportRow{}, err
	}

	desc := ofxField(block, "MEMO")
	if desc == "" {
		desc = ofxField(block, "NAME")
	}
	if desc == "" {
		return ImportRow{}, core.ErrEmptyDescription
	}

	amountStr := ofxField(block, "TRNAMT")
	isExpense := strings.HasPrefix(amountStr, "-")
	amount, err := core.ParseAmount(strings.TrimPrefix(amountStr, "-"))
	if err != nil {
		return ImportRow{}, err
	}

	return ImportRow{
		Date:        date,
		Description: desc,
		Amount:      amount,
		IsExpense:   isExpense,
		Category:    core.CategoryUncategorized,
	}, nil
}

// ofxField pulls the value following <TAG>. SGML-style OFX has no closing
// tags; the value runs to the next tag or line break.
func ofxField(block, tag string) string {
	idx := strings.Index(block, "<"+tag+">")
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(tag)+2:]
	if cut := strings.IndexAny(rest, "<\r\n"); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.TrimSpace(rest)
}
