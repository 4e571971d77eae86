package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EXPENSE STORE - Ordered collection of expenses
// =============================================================================

// ExpenseStore holds expenses in insertion order. Position is the identity
// used by Edit and Delete; every expense also carries a stable ExpenseID.
//
// INVARIANTS:
//   - Index operations require 0 <= index < Len(); otherwise *IndexError,
//     no mutation and no notification.
//   - Query results never alias internal storage.
type ExpenseStore struct {
	items  []Expense
	events *Notifier
}

func NewExpenseStore(events *Notifier) *ExpenseStore {
	if events == nil {
		events = NewNotifier()
	}
	return &ExpenseStore{events: events}
}

// Add appends e and returns its ID (generated when e.ID is empty).
func (s *ExpenseStore) Add(e Expense) ExpenseID {
	if e.ID == "" {
		e.ID = NewExpenseID()
	}
	s.items = append(s.items, e)
	s.events.Publish(Event{Kind: EventExpenseAdded, Month: e.Month(), Category: e.Category, ExpenseID: e.ID})
	return e.ID
}

// Edit replaces the expense at index. The slot keeps its ID unless e carries one.
func (s *ExpenseStore) Edit(index int, e Expense) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = s.items[index].ID
	}
	s.items[index] = e
	s.events.Publish(Event{Kind: EventExpenseEdited, Month: e.Month(), Category: e.Category, ExpenseID: e.ID})
	return nil
}

// Delete removes the expense at index.
func (s *ExpenseStore) Delete(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	removed := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.events.Publish(Event{Kind: EventExpenseDeleted, Month: removed.Month(), Category: removed.Category, ExpenseID: removed.ID})
	return nil
}

// EditByID replaces the expense with the given ID, wherever it sits.
func (s *ExpenseStore) EditByID(id ExpenseID, e Expense) error {
	i, ok := s.IndexOf(id)
	if !ok {
		return &ValidationError{Field: "id", Value: string(id), Err: ErrUnknownExpense}
	}
	e.ID = id
	return s.Edit(i, e)
}

// DeleteByID removes the expense with the given ID.
func (s *ExpenseStore) DeleteByID(id ExpenseID) error {
	i, ok := s.IndexOf(id)
	if !ok {
		return &ValidationError{Field: "id", Value: string(id), Err: ErrUnknownExpense}
	}
	return s.Delete(i)
}

// Get returns the expense at index.
func (s *ExpenseStore) Get(index int) (Expense, error) {
	if err := s.checkIndex(index); err != nil {
		return Expense{}, err
	}
	return s.items[index], nil
}

// Find returns the expense with the given ID.
func (s *ExpenseStore) Find(id ExpenseID) (Expense, bool) {
	i, ok := s.IndexOf(id)
	if !ok {
		return Expense{}, false
	}
	return s.items[i], true
}

// IndexOf returns the current position of id.
func (s *ExpenseStore) IndexOf(id ExpenseID) (int, bool) {
	for i, e := range s.items {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *ExpenseStore) Len() int { return len(s.items) }

// All returns every expense in store order.
func (s *ExpenseStore) All() []Expense {
	out := make([]Expense, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ExpenseStore) checkIndex(index int) error {
	if index < 0 || index >= len(s.items) {
		return &IndexError{Index: index, Len: len(s.items)}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// FilterByCategory matches categories case-insensitively.
func (s *ExpenseStore) FilterByCategory(category string) []Expense {
	return s.filter(func(e Expense) bool {
		return strings.EqualFold(string(e.Category), category)
	})
}

// FilterByDateRange returns expenses with start <= date <= end.
func (s *ExpenseStore) FilterByDateRange(start, end Date) []Expense {
	return s.filter(func(e Expense) bool {
		return e.Date.AfterOrEqual(start) && e.Date.BeforeOrEqual(end)
	})
}

// ForMonth returns the expenses dated within month.
func (s *ExpenseStore) ForMonth(month Month) []Expense {
	return s.filter(func(e Expense) bool { return month.Contains(e.Date) })
}

// MonthlyExpensesByCategory sums expenses of exactly category within month.
func (s *ExpenseStore) MonthlyExpensesByCategory(category Category, month Month) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.items {
		if e.Category == category && month.Contains(e.Date) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// MonthlyTotalsByCategory returns a total for every predefined category,
// zero where nothing was spent.
func (s *ExpenseStore) MonthlyTotalsByCategory(month Month) map[Category]decimal.Decimal {
	totals := make(map[Category]decimal.Decimal, len(predefinedCategories))
	for _, c := range predefinedCategories {
		totals[c] = s.MonthlyExpensesByCategory(c, month)
	}
	return totals
}

// Months returns the distinct months that contain at least one expense, unsorted.
func (s *ExpenseStore) Months() []Month {
	seen := make(map[Month]struct{})
	var out []Month
	for _, e := range s.items {
		m := e.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (s *ExpenseStore) filter(keep func(Expense) bool) []Expense {
	out := []Expense{}
	for _, e := range s.items {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
