package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT ENGINE - Read-only aggregation over both stores
// =============================================================================

// ReportEngine produces monthly summaries. It holds references to its inputs
// and no state of its own.
type ReportEngine struct {
	budgets  *BudgetStore
	expenses *ExpenseStore
}

func NewReportEngine(budgets *BudgetStore, expenses *ExpenseStore) *ReportEngine {
	return &ReportEngine{budgets: budgets, expenses: expenses}
}

// CategorySection is one category's slice of a monthly report.
type CategorySection struct {
	Category    Category
	Expenses    []Expense
	Budget      decimal.Decimal
	Spent       decimal.Decimal
	Utilization decimal.Decimal
}

// Report is the structured monthly summary; Text renders it.
type Report struct {
	Month         Month
	Sections      []CategorySection
	TotalBudget   decimal.Decimal
	TotalExpenses decimal.Decimal
}

// Build assembles the report for month, sections in the fixed category order.
func (r *ReportEngine) Build(month Month) Report {
	monthly := r.expenses.ForMonth(month)

	report := Report{
		Month:         month,
		TotalBudget:   r.TotalBudget(month),
		TotalExpenses: r.TotalExpenses(month),
	}
	for _, c := range predefinedCategories {
		section := CategorySection{
			Category: c,
			Expenses: []Expense{},
			Budget:   r.budgets.Budget(c, month),
			Spent:    r.budgets.TotalExpensesByCategory(c, month),
		}
		for _, e := range monthly {
			if e.Category == c {
				section.Expenses = append(section.Expenses, e)
			}
		}
		section.Utilization = UtilizationPercent(section.Spent, section.Budget)
		report.Sections = append(report.Sections, section)
	}
	return report
}

// Text renders the report. Identical inputs produce identical bytes.
func (rep Report) Text() string {
	var sb strings.Builder
	sb.WriteString("Monthly Report for ")
	sb.WriteString(rep.Month.String())
	sb.WriteString("\n\n")

	for _, s := range rep.Sections {
		sb.WriteString(string(s.Category))
		sb.WriteString("\n")
		for _, e := range s.Expenses {
			sb.WriteString(e.String())
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(string(s.Category) + " Budget: " + FormatAmount(s.Budget))
		sb.WriteString(" | ")
		sb.WriteString(string(s.Category) + " Expenses: " + FormatAmount(s.Spent))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Total Budget: " + FormatAmount(rep.TotalBudget))
	sb.WriteString(" | Total Expenses: " + FormatAmount(rep.TotalExpenses))
	return sb.String()
}

// MonthlySummary returns the text report for month.
func (r *ReportEngine) MonthlySummary(month Month) string {
	return r.Build(month).Text()
}

// TotalExpenses sums every expense dated in month, whatever its category.
func (r *ReportEngine) TotalExpenses(month Month) decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.expenses.ForMonth(month) {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalBudget sums every budget entry of month.
func (r *ReportEngine) TotalBudget(month Month) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range r.budgets.AllBudgets(month) {
		total = total.Add(amount)
	}
	return total
}

// CategoryWiseSpending returns spent amounts for all predefined categories,
// zero-filled.
func (r *ReportEngine) CategoryWiseSpending(month Month) map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal, len(predefinedCategories))
	for _, c := range predefinedCategories {
		out[c] = r.budgets.TotalExpensesByCategory(c, month)
	}
	return out
}
