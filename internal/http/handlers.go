package http

import (
	"errors"
	"io"
	"net/http"

	"ccexpense/internal/core"
	"ccexpense/internal/services"
	"ccexpense/internal/storage"
)

// maxImportBytes bounds statement uploads.
const maxImportBytes = 5 << 20

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	txs, err := s.transactions.Create(r.Context(), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txs)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var filter storage.TransactionFilter

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		from, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		filter.To = to
	}
	if v := q.Get("type"); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid type filter")
			return
		}
		filter.Type = t
	}

	txs, err := s.transactions.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionUpdateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	// Load the stored record first so expansion metadata survives the update.
	tx, err := s.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx.Description = sanitizeInput(req.Description)
	tx.Amount = core.MoneyFromFloat(req.Amount)
	tx.Date = date
	tx.Status = core.TransactionStatus(req.Status)
	tx.CardID = req.CardID
	tx.Category = sanitizeInput(req.Category)
	tx.Tags = req.Tags

	updated, err := s.transactions.Update(r.Context(), tx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.transactions.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	card, err := s.cards.Create(r.Context(), req.toCard())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cards.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if cards == nil {
		cards = []core.CreditCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	card := req.toCard()
	card.ID = r.PathValue("id")
	updated, err := s.cards.Update(r.Context(), card)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.cards.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	budget, err := s.budgets.Create(r.Context(), core.Budget{
		Category: sanitizeInput(req.Category),
		Amount:   core.MoneyFromFloat(req.Amount),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, budget)
}

func (s *Server) handleBudgetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.budgets.Usage(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if usage == nil {
		usage = []core.BudgetUsage{}
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	count, err := s.imports.ImportCSV(r.Context(), io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: count})
}

func (s *Server) handleImportOFX(w http.ResponseWriter, r *http.Request) {
	count, err := s.imports.ImportOFX(r.Context(), io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: count})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := s.backups.Generate(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	if err := s.backups.Restore(r.Context(), raw); err != nil {
		switch {
		case errors.Is(err, services.ErrBackupInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrBackupMissingTransactions), errors.Is(err, services.ErrBackupMissingUser):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeDomainError(w, r, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
