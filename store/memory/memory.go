// Package memory provides an in-memory persist.Repository (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/persist"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu    sync.RWMutex
	users map[string]snapshot
}

type snapshot struct {
	budgets  []persist.BudgetRow
	expenses []finance.Expense
}

var _ persist.Repository = (*Store)(nil)

func New() *Store {
	return &Store{users: make(map[string]snapshot)}
}

// Save replaces everything held for the user with a copy of session.
func (m *Store) Save(_ context.Context, user persist.User, session *finance.Session) error {
	budgets, expenses := persist.Snapshot(session)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Username] = snapshot{budgets: budgets, expenses: expenses}
	return nil
}

// Load applies a copy of the user's snapshot to session.
func (m *Store) Load(_ context.Context, user persist.User, session *finance.Session) (persist.LoadResult, error) {
	m.mu.RLock()
	snap, ok := m.users[user.Username]
	var budgets []persist.BudgetRow
	var expenses []finance.Expense
	if ok {
		budgets = append(budgets, snap.budgets...)
		expenses = append(expenses, snap.expenses...)
	}
	m.mu.RUnlock()

	if !ok {
		return persist.LoadResult{}, nil
	}
	return persist.Apply(session, budgets, expenses), nil
}

func (m *Store) DeleteUserData(_ context.Context, user persist.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, user.Username)
	return nil
}

// Users returns the usernames with saved data, sorted.
func (m *Store) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.users))
	for name := range m.users {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
