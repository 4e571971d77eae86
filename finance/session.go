package finance

import "time"

// =============================================================================
// SESSION - One user's expenses, budgets and reports
// =============================================================================

// Session owns the stores of one user and the notifier they share.
// Codecs receive a Session per call and never keep it.
//
// A Session is not safe for concurrent use; callers that share one across
// goroutines must serialize access themselves.
type Session struct {
	events   *Notifier
	expenses *ExpenseStore
	budgets  *BudgetStore
	reports  *ReportEngine
}

// NewSession creates a session whose budgets are seeded for the current month.
func NewSession() *Session {
	return NewSessionAt(time.Now())
}

// NewSessionAt creates a session seeded for the month containing now.
func NewSessionAt(now time.Time) *Session {
	events := NewNotifier()
	expenses := NewExpenseStore(events)
	budgets := NewBudgetStore(expenses, events, MonthOf(now))
	return &Session{
		events:   events,
		expenses: expenses,
		budgets:  budgets,
		reports:  NewReportEngine(budgets, expenses),
	}
}

func (s *Session) Expenses() *ExpenseStore { return s.expenses }
func (s *Session) Budgets() *BudgetStore   { return s.budgets }
func (s *Session) Reports() *ReportEngine  { return s.reports }
func (s *Session) Events() *Notifier       { return s.events }

// Subscribe registers fn for every budget and expense mutation.
func (s *Session) Subscribe(fn Subscriber) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}
