package finance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultBudget is seeded for every predefined category of the current month.
var DefaultBudget = decimal.NewFromInt(1000)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// BUDGET STORE - (month, category) -> amount
// =============================================================================

// BudgetStore keeps one budget amount per (month, category) and derives
// utilization from the expenses it is linked to.
type BudgetStore struct {
	budgets  map[Month]map[Category]decimal.Decimal
	expenses *ExpenseStore
	events   *Notifier
}

// NewBudgetStore creates a store seeded with DefaultBudget for every
// predefined category of current. No other month is seeded.
func NewBudgetStore(expenses *ExpenseStore, events *Notifier, current Month) *BudgetStore {
	if events == nil {
		events = NewNotifier()
	}
	b := &BudgetStore{
		budgets:  make(map[Month]map[Category]decimal.Decimal),
		expenses: expenses,
		events:   events,
	}
	seed := make(map[Category]decimal.Decimal, len(predefinedCategories))
	for _, c := range predefinedCategories {
		seed[c] = DefaultBudget
	}
	b.budgets[current] = seed
	return b
}

// SetBudget inserts or overwrites the budget for (month, category).
func (b *BudgetStore) SetBudget(category Category, amount decimal.Decimal, month Month) error {
	if amount.IsNegative() {
		return &ValidationError{Field: "amount", Value: amount.String(), Err: ErrInvalidAmount}
	}
	entries, ok := b.budgets[month]
	if !ok {
		entries = make(map[Category]decimal.Decimal)
		b.budgets[month] = entries
	}
	entries[category] = amount
	b.events.Publish(Event{Kind: EventBudgetSet, Month: month, Category: category})
	return nil
}

// Budget returns the amount for (month, category), zero when unset.
func (b *BudgetStore) Budget(category Category, month Month) decimal.Decimal {
	if amount, ok := b.budgets[month][category]; ok {
		return amount
	}
	return decimal.Zero
}

// AllBudgets returns a copy of the category -> amount entries for month.
// An unknown month yields an empty, non-nil map.
func (b *BudgetStore) AllBudgets(month Month) map[Category]decimal.Decimal {
	entries := b.budgets[month]
	out := make(map[Category]decimal.Decimal, len(entries))
	for c, amount := range entries {
		out[c] = amount
	}
	return out
}

// TotalExpensesByCategory sums expenses whose category equals category
// exactly and whose date falls in month.
func (b *BudgetStore) TotalExpensesByCategory(category Category, month Month) decimal.Decimal {
	if b.expenses == nil {
		return decimal.Zero
	}
	return b.expenses.MonthlyExpensesByCategory(category, month)
}

// Utilization returns, per predefined category, spent/budget*100, or zero
// when the budget is zero. Values above 100 are not clamped.
func (b *BudgetStore) Utilization(month Month) map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal, len(predefinedCategories))
	for _, c := range predefinedCategories {
		out[c] = UtilizationPercent(b.TotalExpensesByCategory(c, month), b.Budget(c, month))
	}
	return out
}

// UtilizationPercent is spent/budget*100, zero for a non-positive budget.
func UtilizationPercent(spent, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(budget).Mul(hundred)
}

// Months returns the months that have at least one budget entry, sorted.
func (b *BudgetStore) Months() []Month {
	out := make([]Month, 0, len(b.budgets))
	for m := range b.budgets {
		out = append(out, m)
	}
	sortMonths(out)
	return out
}

// AvailableMonths returns the sorted, duplicate-free union of budget months
// and months containing at least one expense.
func (b *BudgetStore) AvailableMonths() []Month {
	seen := make(map[Month]struct{}, len(b.budgets))
	out := make([]Month, 0, len(b.budgets))
	for m := range b.budgets {
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if b.expenses != nil {
		for _, m := range b.expenses.Months() {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sortMonths(out)
	return out
}

// SortedCategories returns the categories budgeted in month: predefined ones
// first in their fixed order, then any others alphabetically.
func (b *BudgetStore) SortedCategories(month Month) []Category {
	entries := b.budgets[month]
	out := make([]Category, 0, len(entries))
	for _, c := range predefinedCategories {
		if _, ok := entries[c]; ok {
			out = append(out, c)
		}
	}
	var extra []Category
	for c := range entries {
		if !IsPredefined(string(c)) {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func sortMonths(ms []Month) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Before(ms[j]) })
}
