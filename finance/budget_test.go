package finance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-engine/finance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// Sessions in tests are anchored far from the months under test so the
// current-month seeding does not leak into their totals.
var anchor = time.Date(2030, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestSession() *finance.Session {
	return finance.NewSessionAt(anchor)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func jan2024() finance.Month { return finance.NewMonth(2024, time.January) }

func expense(date string, category finance.Category, amount, description string) finance.Expense {
	d, err := finance.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return finance.NewExpense(d, category, amt(amount), description)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

// =============================================================================
// SEEDING
// =============================================================================

func TestBudgetStore_SeedsCurrentMonthOnly(t *testing.T) {
	// GIVEN: A fresh session created in June 2030
	s := newTestSession()
	current := finance.MonthOf(anchor)

	// THEN: All five categories of June 2030 are budgeted at 1000
	all := s.Budgets().AllBudgets(current)
	require.Len(t, all, 5)
	for _, c := range finance.Categories() {
		assertAmount(t, "1000.00", all[c])
	}

	// AND: No other month is seeded
	assert.Empty(t, s.Budgets().AllBudgets(current.AddMonths(-1)))
	assert.Empty(t, s.Budgets().AllBudgets(current.AddMonths(1)))
	assert.Equal(t, []finance.Month{current}, s.Budgets().Months())
}

func TestBudgetStore_UnknownMonth_EmptyAndZero(t *testing.T) {
	s := newTestSession()

	all := s.Budgets().AllBudgets(jan2024())
	assert.NotNil(t, all)
	assert.Empty(t, all)
	assert.True(t, s.Budgets().Budget(finance.CategoryFood, jan2024()).IsZero())
}

// =============================================================================
// SET / GET
// =============================================================================

func TestBudgetStore_SetBudget_Overwrites(t *testing.T) {
	s := newTestSession()
	b := s.Budgets()

	require.NoError(t, b.SetBudget(finance.CategoryFood, amt("200"), jan2024()))
	require.NoError(t, b.SetBudget(finance.CategoryFood, amt("300"), jan2024()))

	assertAmount(t, "300.00", b.Budget(finance.CategoryFood, jan2024()))
	assert.Len(t, b.AllBudgets(jan2024()), 1)
}

func TestBudgetStore_SetBudget_NotifiesSubscribers(t *testing.T) {
	s := newTestSession()
	var got []finance.Event
	s.Subscribe(func(ev finance.Event) { got = append(got, ev) })

	require.NoError(t, s.Budgets().SetBudget(finance.CategoryUtilities, amt("80"), jan2024()))

	require.Len(t, got, 1)
	assert.Equal(t, finance.EventBudgetSet, got[0].Kind)
	assert.Equal(t, jan2024(), got[0].Month)
	assert.Equal(t, finance.CategoryUtilities, got[0].Category)
}

func TestBudgetStore_SetBudget_NegativeRejected(t *testing.T) {
	// GIVEN: A subscriber counting notifications
	s := newTestSession()
	calls := 0
	s.Subscribe(func(finance.Event) { calls++ })

	// WHEN: Setting a negative budget
	err := s.Budgets().SetBudget(finance.CategoryFood, amt("-1"), jan2024())

	// THEN: Validation error, nothing stored, nobody notified
	require.Error(t, err)
	assert.True(t, finance.IsValidation(err))
	assert.True(t, errors.Is(err, finance.ErrInvalidAmount))
	assert.Empty(t, s.Budgets().AllBudgets(jan2024()))
	assert.Equal(t, 0, calls)
}

func TestBudgetStore_AllBudgets_ReturnsCopy(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Budgets().SetBudget(finance.CategoryFood, amt("200"), jan2024()))

	all := s.Budgets().AllBudgets(jan2024())
	all[finance.CategoryFood] = amt("1")
	all[finance.CategoryUtilities] = amt("5")

	assertAmount(t, "200.00", s.Budgets().Budget(finance.CategoryFood, jan2024()))
	assert.Len(t, s.Budgets().AllBudgets(jan2024()), 1)
}

// =============================================================================
// UTILIZATION
// =============================================================================

func TestBudgetStore_Utilization_HalfSpent(t *testing.T) {
	// GIVEN: Food budget 200 and 100 spent on food in January
	s := newTestSession()
	require.NoError(t, s.Budgets().SetBudget(finance.CategoryFood, amt("200"), jan2024()))
	s.Expenses().Add(expense("2024-01-10", finance.CategoryFood, "60", "Groceries"))
	s.Expenses().Add(expense("2024-01-22", finance.CategoryFood, "40", "Market"))

	// WHEN: Computing utilization
	u := s.Budgets().Utilization(jan2024())

	// THEN: Food is at 50%, every category is present
	require.Len(t, u, 5)
	assertAmount(t, "50.00", u[finance.CategoryFood])
	assertAmount(t, "0.00", u[finance.CategoryTransportation])
}

func TestBudgetStore_Utilization_ZeroBudgetIsZero(t *testing.T) {
	// GIVEN: Spending on a category with no budget
	s := newTestSession()
	s.Expenses().Add(expense("2024-01-03", finance.CategoryEntertainment, "45", "Cinema"))

	u := s.Budgets().Utilization(jan2024())

	// THEN: Utilization is 0, not a division error
	assertAmount(t, "0.00", u[finance.CategoryEntertainment])
}

func TestBudgetStore_Utilization_NotClamped(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Budgets().SetBudget(finance.CategoryFood, amt("100"), jan2024()))
	s.Expenses().Add(expense("2024-01-10", finance.CategoryFood, "150", "Party"))

	assertAmount(t, "150.00", s.Budgets().Utilization(jan2024())[finance.CategoryFood])
}

func TestBudgetStore_TotalExpensesByCategory_ExactMatch(t *testing.T) {
	s := newTestSession()
	s.Expenses().Add(expense("2024-01-10", finance.CategoryFood, "10", "a"))
	s.Expenses().Add(expense("2024-01-11", "food", "20", "b"))
	s.Expenses().Add(expense("2024-02-01", finance.CategoryFood, "40", "c"))

	assertAmount(t, "10.00", s.Budgets().TotalExpensesByCategory(finance.CategoryFood, jan2024()))
}

// =============================================================================
// MONTHS
// =============================================================================

func TestBudgetStore_AvailableMonths_Union(t *testing.T) {
	// GIVEN: A budget in month M and an expense in M+1
	s := newTestSession()
	m := jan2024()
	require.NoError(t, s.Budgets().SetBudget(finance.CategoryFood, amt("100"), m))
	s.Expenses().Add(expense("2024-02-14", finance.CategoryFood, "12", "Flowers"))

	// WHEN/THEN: Both months appear once, in order (plus the seeded month)
	got := s.Budgets().AvailableMonths()
	assert.Equal(t, []finance.Month{m, m.AddMonths(1), finance.MonthOf(anchor)}, got)
}

func TestBudgetStore_AvailableMonths_Deduplicated(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Budgets().SetBudget(finance.CategoryFood, amt("100"), jan2024()))
	s.Expenses().Add(expense("2024-01-14", finance.CategoryFood, "12", "x"))
	s.Expenses().Add(expense("2024-01-15", finance.CategoryFood, "12", "y"))

	assert.Equal(t, []finance.Month{jan2024(), finance.MonthOf(anchor)}, s.Budgets().AvailableMonths())
}

func TestBudgetStore_SortedCategories(t *testing.T) {
	s := newTestSession()
	b := s.Budgets()
	require.NoError(t, b.SetBudget("Travel", amt("1"), jan2024()))
	require.NoError(t, b.SetBudget(finance.CategoryUtilities, amt("1"), jan2024()))
	require.NoError(t, b.SetBudget("Books", amt("1"), jan2024()))
	require.NoError(t, b.SetBudget(finance.CategoryFood, amt("1"), jan2024()))

	assert.Equal(t,
		[]finance.Category{finance.CategoryFood, finance.CategoryUtilities, "Books", "Travel"},
		b.SortedCategories(jan2024()))
}
