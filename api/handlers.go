/*
handlers.go - HTTP API handlers for the expense engine

PURPOSE:
  Exposes each user's expenses, budgets and reports via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the finance,
  persist and transfer packages.

ENDPOINTS (all under /api/users/{username}):
  Expenses:
    GET    /expenses                 List (filters: category, from, to, month)
    POST   /expenses                 Add expense
    GET    /expenses/{index}         Get expense at position
    PUT    /expenses/{index}         Replace expense at position
    DELETE /expenses/{index}         Delete expense at position

  Budgets & reports:
    GET    /budgets?month=           Budget entries of a month
    PUT    /budgets                  Set one budget
    GET    /utilization?month=       Utilization per predefined category
    GET    /spending?month=          Category-wise spending and totals
    GET    /report?month=            Plain-text monthly report
    GET    /months                   Months with budgets or expenses

  Transfer & maintenance:
    POST   /import                   Import transaction lines (text body)
    GET    /export                   Export all expenses as text
    POST   /backup                   Copy the data file to its backup
    DELETE /                         Delete the user's data (and credential)

ARCHITECTURE:
  Handler holds one finance.Session per user, loaded lazily from the
  repository on first access. Every successful mutation is saved before
  the response is written. When a Publisher is configured, each loaded
  session forwards its change events to it.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Expense index out of range, nothing to back up
  - 422: Import that added nothing
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The username in the path selects the data file.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/notify"
	"github.com/warp/expense-engine/persist"
	"github.com/warp/expense-engine/transfer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo persist.Repository

	// Files enables backups and credential removal; nil for other backends.
	Files *persist.FileStore

	// Publisher receives change events; nil disables publishing.
	Publisher notify.Publisher

	// Now seeds new sessions and defaults the month query parameter.
	Now func() time.Time

	log *logging.Logger

	mu       sync.Mutex
	sessions map[string]*userSession
}

type userSession struct {
	session *finance.Session
	stop    func()
}

// NewHandler creates a new handler backed by repo.
func NewHandler(repo persist.Repository, logger *logging.Logger) *Handler {
	return &Handler{
		Repo:     repo,
		Now:      time.Now,
		log:      logging.OrNop(logger).WithComponent(logging.ComponentHTTP),
		sessions: make(map[string]*userSession),
	}
}

// session returns the cached session for username, loading it on first use.
// Callers must hold h.mu.
func (h *Handler) session(ctx context.Context, username string) (*finance.Session, error) {
	if us, ok := h.sessions[username]; ok {
		return us.session, nil
	}

	s := finance.NewSessionAt(h.Now())
	result, err := h.Repo.Load(ctx, persist.User{Username: username}, s)
	if err != nil {
		return nil, fmt.Errorf("failed to load data for %s: %w", username, err)
	}
	if len(result.Skipped) > 0 {
		h.log.WarnContext(ctx, "skipped stored lines",
			logging.FieldUser, username, "count", len(result.Skipped))
	}

	us := &userSession{session: s, stop: func() {}}
	if h.Publisher != nil {
		us.stop = notify.Forward(s, username, h.Publisher, h.log)
	}
	h.sessions[username] = us
	return s, nil
}

func (h *Handler) save(ctx context.Context, username string, s *finance.Session) error {
	if err := h.Repo.Save(ctx, persist.User{Username: username}, s); err != nil {
		h.log.ErrorContext(ctx, "failed to save", logging.FieldUser, username, logging.FieldError, err)
		return err
	}
	return nil
}

// LoadedUsers returns the usernames with a cached session, sorted.
func (h *Handler) LoadedUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]string, 0, len(h.sessions))
	for u := range h.sessions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Close stops event forwarding for every cached session.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for u, us := range h.sessions {
		us.stop()
		delete(h.sessions, u)
	}
}

// withSession resolves the user, locks the handler and runs fn with the
// user's session. Load failures are answered here.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(username string, s *finance.Session)) {
	username := chi.URLParam(r, "username")
	if !persist.ValidUsername(username) {
		writeError(w, http.StatusBadRequest, "Invalid username", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.session(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user data", err)
		return
	}
	fn(username, s)
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns the user's expenses, optionally filtered.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		q := r.URL.Query()
		expenses := s.Expenses().All()

		if c := q.Get("category"); c != "" {
			expenses = s.Expenses().FilterByCategory(c)
		}
		if m := q.Get("month"); m != "" {
			month, err := finance.ParseMonth(m)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid month", err)
				return
			}
			expenses = keep(expenses, func(e finance.Expense) bool { return month.Contains(e.Date) })
		}
		if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
			start, end, err := parseRange(from, to)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid date range", err)
				return
			}
			expenses = keep(expenses, func(e finance.Expense) bool {
				return e.Date.AfterOrEqual(start) && e.Date.BeforeOrEqual(end)
			})
		}

		dtos := make([]ExpenseDTO, 0, len(expenses))
		for _, e := range expenses {
			i, _ := s.Expenses().IndexOf(e.ID)
			dtos = append(dtos, toExpenseDTO(i, e))
		}
		writeJSON(w, http.StatusOK, dtos)
	})
}

// CreateExpense adds an expense.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(username string, s *finance.Session) {
		e, ok := decodeExpense(w, r)
		if !ok {
			return
		}

		id := s.Expenses().Add(e)
		if err := h.save(r.Context(), username, s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save expense", err)
			return
		}

		i, _ := s.Expenses().IndexOf(id)
		stored, _ := s.Expenses().Get(i)
		writeJSON(w, http.StatusCreated, toExpenseDTO(i, stored))
	})
}

// GetExpense returns the expense at an index.
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		i, ok := parseIndex(w, r)
		if !ok {
			return
		}
		e, err := s.Expenses().Get(i)
		if err != nil {
			writeFinanceError(w, "Expense not found", err)
			return
		}
		writeJSON(w, http.StatusOK, toExpenseDTO(i, e))
	})
}

// UpdateExpense replaces the expense at an index, keeping its ID.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(username string, s *finance.Session) {
		i, ok := parseIndex(w, r)
		if !ok {
			return
		}
		e, ok := decodeExpense(w, r)
		if !ok {
			return
		}

		if err := s.Expenses().Edit(i, e); err != nil {
			writeFinanceError(w, "Failed to edit expense", err)
			return
		}
		if err := h.save(r.Context(), username, s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save expense", err)
			return
		}

		stored, _ := s.Expenses().Get(i)
		writeJSON(w, http.StatusOK, toExpenseDTO(i, stored))
	})
}

// DeleteExpense removes the expense at an index.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(username string, s *finance.Session) {
		i, ok := parseIndex(w, r)
		if !ok {
			return
		}
		if err := s.Expenses().Delete(i); err != nil {
			writeFinanceError(w, "Failed to delete expense", err)
			return
		}
		if err := h.save(r.Context(), username, s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// =============================================================================
// BUDGET & REPORT HANDLERS
// =============================================================================

// GetBudgets returns the budget entries of a month.
func (h *Handler) GetBudgets(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		month, ok := h.monthParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, BudgetsDTO{
			Month:   month.String(),
			Budgets: amountMap(s.Budgets().AllBudgets(month)),
			Total:   finance.FormatAmount(s.Reports().TotalBudget(month)),
		})
	})
}

// SetBudget sets one category budget for a month.
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(username string, s *finance.Session) {
		var req SetBudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}

		month, err := finance.ParseMonth(req.Month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		category, err := finance.ParseCategory(req.Category)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category", err)
			return
		}
		if err := s.Budgets().SetBudget(category, req.Amount, month); err != nil {
			writeFinanceError(w, "Failed to set budget", err)
			return
		}
		if err := h.save(r.Context(), username, s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save budget", err)
			return
		}

		writeJSON(w, http.StatusOK, BudgetsDTO{
			Month:   month.String(),
			Budgets: amountMap(s.Budgets().AllBudgets(month)),
			Total:   finance.FormatAmount(s.Reports().TotalBudget(month)),
		})
	})
}

// GetUtilization returns utilization percentages for a month.
func (h *Handler) GetUtilization(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		month, ok := h.monthParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, UtilizationDTO{
			Month:       month.String(),
			Utilization: amountMap(s.Budgets().Utilization(month)),
		})
	})
}

// GetSpending returns category-wise spending and totals for a month.
func (h *Handler) GetSpending(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		month, ok := h.monthParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, SpendingDTO{
			Month:         month.String(),
			Categories:    amountMap(s.Reports().CategoryWiseSpending(month)),
			TotalExpenses: finance.FormatAmount(s.Reports().TotalExpenses(month)),
			TotalBudget:   finance.FormatAmount(s.Reports().TotalBudget(month)),
		})
	})
}

// GetReport returns the plain-text monthly report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		month, ok := h.monthParam(w, r)
		if !ok {
			return
		}
		writeText(w, http.StatusOK, s.Reports().MonthlySummary(month))
	})
}

// ListMonths returns every month with budgets or expenses.
func (h *Handler) ListMonths(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		months := s.Budgets().AvailableMonths()
		out := make([]string, len(months))
		for i, m := range months {
			out[i] = m.String()
		}
		writeJSON(w, http.StatusOK, MonthsDTO{Months: out})
	})
}

// =============================================================================
// TRANSFER & MAINTENANCE HANDLERS
// =============================================================================

// ImportTransactions imports the transaction lines in the request body.
func (h *Handler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(username string, s *finance.Session) {
		result, err := transfer.Import(r.Body, s)
		resp := ImportResponse{Imported: result.Imported, Errors: []string{}, Summary: result.Summary()}
		for _, le := range result.Errors {
			resp.Errors = append(resp.Errors, le.String())
		}

		switch {
		case errors.Is(err, transfer.ErrNothingImported):
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "Failed to import", err)
			return
		}

		if err := h.save(r.Context(), username, s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save import", err)
			return
		}
		h.log.InfoContext(r.Context(), "transactions imported",
			logging.FieldUser, username, logging.FieldOperation, "import",
			"imported", result.Imported, "errors", len(result.Errors))
		writeJSON(w, http.StatusOK, resp)
	})
}

// ExportTransactions returns every expense in transaction-line form.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ string, s *finance.Session) {
		var b strings.Builder
		if err := transfer.Export(&b, s.Expenses().All()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to export", err)
			return
		}
		writeText(w, http.StatusOK, b.String())
	})
}

// BackupUser copies the user's saved data file to its backup.
func (h *Handler) BackupUser(w http.ResponseWriter, r *http.Request) {
	if h.Files == nil {
		writeError(w, http.StatusNotImplemented, "Backups require the file backend", nil)
		return
	}
	username := chi.URLParam(r, "username")
	if !persist.ValidUsername(username) {
		writeError(w, http.StatusBadRequest, "Invalid username", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.Files.Backup(r.Context(), persist.User{Username: username})
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "No saved data to back up", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to back up", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteUser removes the user's stored data and drops the cached session.
// With the file backend, hash and salt query parameters also remove the
// user's credential line.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !persist.ValidUsername(username) {
		writeError(w, http.StatusBadRequest, "Invalid username", nil)
		return
	}
	user := persist.User{
		Username:     username,
		PasswordHash: r.URL.Query().Get("hash"),
		Salt:         r.URL.Query().Get("salt"),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Repo.DeleteUserData(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete user data", err)
		return
	}
	if h.Files != nil && user.PasswordHash != "" {
		if err := h.Files.DeleteUserCredential(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete user credential", err)
			return
		}
	}
	if us, ok := h.sessions[username]; ok {
		us.stop()
		delete(h.sessions, username)
	}

	h.log.InfoContext(r.Context(), "user deleted", logging.FieldUser, username)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeExpense(w http.ResponseWriter, r *http.Request) (finance.Expense, bool) {
	var req ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return finance.Expense{}, false
	}

	date, err := finance.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return finance.Expense{}, false
	}
	category, err := finance.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return finance.Expense{}, false
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return finance.Expense{}, false
	}
	return finance.NewExpense(date, category, req.Amount, req.Description), true
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expense index", err)
		return 0, false
	}
	return i, true
}

func parseRange(from, to string) (finance.Date, finance.Date, error) {
	start := finance.NewDate(1, time.January, 1)
	end := finance.NewDate(9999, time.December, 31)
	var err error
	if from != "" {
		if start, err = finance.ParseDate(from); err != nil {
			return start, end, err
		}
	}
	if to != "" {
		if end, err = finance.ParseDate(to); err != nil {
			return start, end, err
		}
	}
	return start, end, nil
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) monthParam(w http.ResponseWriter, r *http.Request) (finance.Month, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return finance.MonthOf(h.Now()), true
	}
	m, err := finance.ParseMonth(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return finance.Month{}, false
	}
	return m, true
}

func keep(in []finance.Expense, fn func(finance.Expense) bool) []finance.Expense {
	out := []finance.Expense{}
	for _, e := range in {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}

func writeFinanceError(w http.ResponseWriter, message string, err error) {
	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case finance.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
