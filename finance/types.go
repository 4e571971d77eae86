/*
Package finance provides the expense and budget engine.

PURPOSE:
  This package holds the domain model for a personal-finance tracker:
  dated, categorized expenses, monthly per-category budgets, and the
  aggregations built on top of both (utilization, spending breakdowns,
  monthly summary reports). Presentation and persistence live elsewhere;
  everything here is in-memory and side-effect free apart from change
  notifications.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category: one of five fixed labels (Food, Transportation, ...)
  - Expense: a dated, categorized amount with a free-text description
  - ExpenseID: stable identity of an expense, independent of its position

DESIGN PRINCIPLES:
  1. Precision: Amounts are decimal.Decimal, never float64
  2. Closed category set: Aggregations always iterate the five categories
     in a fixed order, so reports are byte-for-byte reproducible
  3. Permissive storage: Category text is not validated on the record
     itself; only bulk import enforces membership

USAGE:
  session := finance.NewSession()
  session.Expenses().Add(finance.Expense{
      Date:     finance.NewDate(2024, time.January, 5),
      Category: finance.CategoryFood,
      Amount:   decimal.RequireFromString("50.00"),
  })
  fmt.Println(session.Reports().MonthlySummary(finance.NewMonth(2024, time.January)))

SEE ALSO:
  - budget.go: Budget store and utilization math
  - expense.go: Expense store, filtering and aggregation
  - report.go: Monthly summary report
  - session.go: Aggregate owning both stores
*/
package finance

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY - Closed set of expense classifications
// =============================================================================

// Category labels an expense or a budget entry.
// Any text is representable; only the five predefined values take part in
// aggregations that iterate "all categories".
type Category string

const (
	CategoryFood           Category = "Food"
	CategoryTransportation Category = "Transportation"
	CategoryEntertainment  Category = "Entertainment"
	CategoryUtilities      Category = "Utilities"
	CategoryMiscellaneous  Category = "Miscellaneous"
)

var predefinedCategories = [...]Category{
	CategoryFood,
	CategoryTransportation,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryMiscellaneous,
}

// Categories returns the predefined categories in their fixed order.
// The returned slice is a copy.
func Categories() []Category {
	out := make([]Category, len(predefinedCategories))
	copy(out, predefinedCategories[:])
	return out
}

// IsPredefined reports whether name is exactly one of the predefined categories.
func IsPredefined(name string) bool {
	for _, c := range predefinedCategories {
		if string(c) == name {
			return true
		}
	}
	return false
}

// ParseCategory returns the predefined category matching name exactly.
func ParseCategory(name string) (Category, error) {
	if !IsPredefined(name) {
		return "", &ValidationError{Field: "category", Value: name, Err: ErrInvalidCategory}
	}
	return Category(name), nil
}

func (c Category) String() string { return string(c) }

// =============================================================================
// EXPENSE - A single recorded spend
// =============================================================================

// ExpenseID identifies an expense independently of its position in the store.
type ExpenseID string

// NewExpenseID returns a fresh random identifier.
func NewExpenseID() ExpenseID {
	return ExpenseID(uuid.NewString())
}

type Expense struct {
	ID          ExpenseID
	Date        Date
	Category    Category
	Amount      decimal.Decimal
	Description string
}

// NewExpense builds an expense without an ID; the store assigns one on Add.
func NewExpense(date Date, category Category, amount decimal.Decimal, description string) Expense {
	return Expense{
		Date:        date,
		Category:    category,
		Amount:      amount,
		Description: description,
	}
}

// Month returns the month key the expense falls in.
func (e Expense) Month() Month { return e.Date.Month() }

// String renders the expense the way report lines show it.
func (e Expense) String() string {
	return fmt.Sprintf("%s - %s - $%s - %s", e.Date, e.Category, FormatAmount(e.Amount), e.Description)
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
