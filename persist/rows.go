package persist

import (
	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
)

// =============================================================================
// ROWS - Flat records for table- and map-backed repositories
// =============================================================================

// BudgetRow is one (month, category) budget entry.
type BudgetRow struct {
	Month    finance.Month
	Category finance.Category
	Amount   decimal.Decimal
}

// Snapshot flattens session in the same order Encode writes it.
func Snapshot(session *finance.Session) ([]BudgetRow, []finance.Expense) {
	budgets := session.Budgets()
	var rows []BudgetRow
	for _, month := range budgets.AvailableMonths() {
		for _, c := range budgets.SortedCategories(month) {
			rows = append(rows, BudgetRow{Month: month, Category: c, Amount: budgets.Budget(c, month)})
		}
	}
	return rows, session.Expenses().All()
}

// Apply adds rows to session the way Decode does: budgets overwrite,
// expenses append, one EventLoaded for the whole batch. Rows the session
// rejects are reported as skipped with their 1-based position.
func Apply(session *finance.Session, budgets []BudgetRow, expenses []finance.Expense) LoadResult {
	var result LoadResult
	session.Events().Batch(finance.EventLoaded, func() error {
		for i, b := range budgets {
			if err := session.Budgets().SetBudget(b.Category, b.Amount, b.Month); err != nil {
				result.Skipped = append(result.Skipped, SkippedLine{
					Line: i + 1, Section: sectionBudgets, Reason: err.Error(),
				})
				continue
			}
			result.Budgets++
		}
		for _, e := range expenses {
			session.Expenses().Add(e)
			result.Expenses++
		}
		return nil
	})
	return result
}
