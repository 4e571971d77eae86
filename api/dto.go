/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  finance package types. Amounts are rendered as strings with two
  decimals so clients never see binary floating point.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
)

// =============================================================================
// EXPENSES
// =============================================================================

// ExpenseDTO represents an expense in API responses. Index is its current
// position in the user's store.
type ExpenseDTO struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// ExpenseRequest is the body of expense create and edit calls. Amount
// accepts a JSON number or a numeric string.
type ExpenseRequest struct {
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func toExpenseDTO(index int, e finance.Expense) ExpenseDTO {
	return ExpenseDTO{
		Index:       index,
		ID:          string(e.ID),
		Date:        e.Date.String(),
		Category:    string(e.Category),
		Amount:      finance.FormatAmount(e.Amount),
		Description: e.Description,
	}
}

// =============================================================================
// BUDGETS & REPORTS
// =============================================================================

// SetBudgetRequest is the body of PUT /budgets.
type SetBudgetRequest struct {
	Month    string          `json:"month"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// BudgetsDTO lists the budget entries of one month.
type BudgetsDTO struct {
	Month   string            `json:"month"`
	Budgets map[string]string `json:"budgets"`
	Total   string            `json:"total"`
}

// UtilizationDTO maps each predefined category to its percentage.
type UtilizationDTO struct {
	Month       string            `json:"month"`
	Utilization map[string]string `json:"utilization"`
}

// SpendingDTO is the category breakdown of one month.
type SpendingDTO struct {
	Month         string            `json:"month"`
	Categories    map[string]string `json:"categories"`
	TotalExpenses string            `json:"total_expenses"`
	TotalBudget   string            `json:"total_budget"`
}

// MonthsDTO lists the months with budgets or expenses.
type MonthsDTO struct {
	Months []string `json:"months"`
}

func amountMap(in map[finance.Category]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(in))
	for c, v := range in {
		out[string(c)] = finance.FormatAmount(v)
	}
	return out
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResponse reports an import that added at least one expense, or
// (with status 422) one that added none.
type ImportResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
	Summary  string   `json:"summary"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
