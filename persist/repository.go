/*
Package persist saves and restores a user's expenses and budgets.

PURPOSE:
  The on-disk format is a small sectioned text file, one per user:

    [BUDGETS]
    2024-01,Food,200.00
    [EXPENSES]
    2024-01-05,Food,50.00,Groceries; bread

  Commas in descriptions are written as semicolons. On reload every
  semicolon becomes a comma again, so a description that really contained
  a semicolon does not survive a round trip unchanged.

KEY CONCEPTS:
  - Repository: what the rest of the system needs from a backend
  - FileStore: the text-file backend plus backup and account removal
  - LoadResult: counts of applied records and the lines that were skipped

SEE ALSO:
  - codec.go: Encode / Decode
  - file.go: FileStore
  - store/memory, store/sqlite: alternative Repository implementations
*/
package persist

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/warp/expense-engine/finance"
)

// =============================================================================
// REPOSITORY - Backend-neutral persistence contract
// =============================================================================

// Repository persists one Session per user.
type Repository interface {
	// Save overwrites everything stored for the user.
	Save(ctx context.Context, user User, session *finance.Session) error

	// Load applies whatever is stored for the user to session. Nothing
	// stored is not an error.
	Load(ctx context.Context, user User, session *finance.Session) (LoadResult, error)

	// DeleteUserData removes the user's stored data. Nothing stored is not
	// an error.
	DeleteUserData(ctx context.Context, user User) error
}

// ErrInvalidUsername is returned for a username that cannot name a data file.
var ErrInvalidUsername = errors.New("invalid username")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidUsername reports whether name is safe to use as a file name prefix:
// a letter or digit followed by letters, digits, '_', '.' or '-'.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// User identifies whose data is being stored. The hash and salt are opaque
// and only used to match the user's line in the credential file.
type User struct {
	Username     string
	PasswordHash string
	Salt         string
}

// Validate rejects a username that ValidUsername does not accept.
func (u User) Validate() error {
	if !ValidUsername(u.Username) {
		return &finance.ValidationError{Field: "username", Value: u.Username, Err: ErrInvalidUsername}
	}
	return nil
}

// CredentialLine renders the user the way the credential file stores it.
func (u User) CredentialLine() string {
	return fmt.Sprintf("%s:%s:%s", u.Username, u.PasswordHash, u.Salt)
}

// LoadResult reports what a load applied.
type LoadResult struct {
	Budgets  int
	Expenses int
	Skipped  []SkippedLine
}

// SkippedLine is a data line that could not be applied.
type SkippedLine struct {
	Line    int
	Section string
	Text    string
	Reason  string
}

func (s SkippedLine) String() string {
	return fmt.Sprintf("line %d: %s", s.Line, s.Reason)
}
