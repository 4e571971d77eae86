/*
Package sqlite provides a SQLite-backed persist.Repository.

PURPOSE:
  Stores every user's budgets and expenses in two tables keyed by
  username, as an alternative to one text file per user. The engine
  semantics are identical: Save overwrites a user's data, Load appends
  to the session and overwrites matching budgets.

KEY TABLES:
  budgets:  (username, month, category) -> amount, with write order
  expenses: (username, id) -> date, category, amount, description,
            with store position
  saves:    last save time per user

SCHEMA:
  Versioned migrations under migrations/ are embedded and applied with
  golang-migrate on New().

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases survive between calls.

USAGE:
  store, err := sqlite.New("./data/expenses.db", logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.Save(ctx, persist.User{Username: "alice"}, session)

SEE ALSO:
  - persist/repository.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/persist"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements persist.Repository using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logging.Logger
}

var _ persist.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, logger *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:  db,
		log: logging.OrNop(logger).WithComponent(logging.ComponentStorage),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations. The migrate instance is not
// closed because that would close the shared *sql.DB.
func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// =============================================================================
// REPOSITORY (persist.Repository interface)
// =============================================================================

// Save replaces all rows of the user in a single transaction.
func (s *Store) Save(ctx context.Context, user persist.User, session *finance.Session) error {
	budgets, expenses := persist.Snapshot(session)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteUser(ctx, tx, user.Username); err != nil {
		return err
	}

	for i, b := range budgets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (username, month, category, amount, position) VALUES (?, ?, ?, ?, ?)`,
			user.Username, b.Month.String(), string(b.Category), b.Amount.String(), i,
		)
		if err != nil {
			return fmt.Errorf("failed to save budget: %w", err)
		}
	}

	for i, e := range expenses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (username, id, position, expense_date, category, amount, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.Username, string(e.ID), i, e.Date.String(), string(e.Category), e.Amount.String(), e.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to save expense: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO saves (username, saved_at) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET saved_at = excluded.saved_at`,
		user.Username, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record save: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	s.log.DebugContext(ctx, "data saved", logging.FieldUser, user.Username,
		"budgets", len(budgets), "expenses", len(expenses))
	return nil
}

// Load applies the user's rows to session. Rows that no longer parse are
// reported as skipped.
func (s *Store) Load(ctx context.Context, user persist.User, session *finance.Session) (persist.LoadResult, error) {
	s.mu.RLock()
	budgets, badBudgets, err := s.loadBudgets(ctx, user.Username)
	if err != nil {
		s.mu.RUnlock()
		return persist.LoadResult{}, err
	}
	expenses, badExpenses, err := s.loadExpenses(ctx, user.Username)
	s.mu.RUnlock()
	if err != nil {
		return persist.LoadResult{}, err
	}

	result := persist.Apply(session, budgets, expenses)
	result.Skipped = append(result.Skipped, badBudgets...)
	result.Skipped = append(result.Skipped, badExpenses...)

	for _, sk := range result.Skipped {
		s.log.WarnContext(ctx, "skipped malformed row", logging.FieldUser, user.Username,
			"section", sk.Section, "reason", sk.Reason)
	}
	s.log.InfoContext(ctx, "data loaded", logging.FieldUser, user.Username,
		"budgets", result.Budgets, "expenses", result.Expenses, "skipped", len(result.Skipped))
	return result, nil
}

// DeleteUserData removes all rows of the user.
func (s *Store) DeleteUserData(ctx context.Context, user persist.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteUser(ctx, tx, user.Username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM saves WHERE username = ?`, user.Username); err != nil {
		return fmt.Errorf("failed to delete save record: %w", err)
	}
	return tx.Commit()
}

func deleteUser(ctx context.Context, tx *sql.Tx, username string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete budgets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete expenses: %w", err)
	}
	return nil
}

func (s *Store) loadBudgets(ctx context.Context, username string) ([]persist.BudgetRow, []persist.SkippedLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, category, amount, position FROM budgets WHERE username = ? ORDER BY position ASC`,
		username,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var out []persist.BudgetRow
	var skipped []persist.SkippedLine
	for rows.Next() {
		var month, category, amount string
		var position int
		if err := rows.Scan(&month, &category, &amount, &position); err != nil {
			return nil, nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		m, err := finance.ParseMonth(month)
		if err != nil {
			skipped = append(skipped, persist.SkippedLine{Line: position + 1, Section: "BUDGETS", Reason: err.Error()})
			continue
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			skipped = append(skipped, persist.SkippedLine{Line: position + 1, Section: "BUDGETS", Reason: finance.ErrInvalidAmount.Error()})
			continue
		}
		out = append(out, persist.BudgetRow{Month: m, Category: finance.Category(category), Amount: value})
	}
	return out, skipped, rows.Err()
}

func (s *Store) loadExpenses(ctx context.Context, username string) ([]finance.Expense, []persist.SkippedLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, expense_date, category, amount, description
		 FROM expenses WHERE username = ? ORDER BY position ASC`,
		username,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []finance.Expense
	var skipped []persist.SkippedLine
	for rows.Next() {
		var id, date, category, amount, description string
		var position int
		if err := rows.Scan(&id, &position, &date, &category, &amount, &description); err != nil {
			return nil, nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		d, err := finance.ParseDate(date)
		if err != nil {
			skipped = append(skipped, persist.SkippedLine{Line: position + 1, Section: "EXPENSES", Reason: err.Error()})
			continue
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			skipped = append(skipped, persist.SkippedLine{Line: position + 1, Section: "EXPENSES", Reason: finance.ErrInvalidAmount.Error()})
			continue
		}
		e := finance.NewExpense(d, finance.Category(category), value, description)
		e.ID = finance.ExpenseID(id)
		out = append(out, e)
	}
	return out, skipped, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Users returns every username with saved data.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT username FROM saves ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, name)
	}
	return users, rows.Err()
}

// LastSaved returns when the user's data was last saved, zero if never.
func (s *Store) LastSaved(ctx context.Context, username string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM saves WHERE username = ?`, username).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query save time: %w", err)
	}
	return time.Parse(time.RFC3339, savedAt)
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"budgets", "expenses", "saves"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
