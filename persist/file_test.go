package persist_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/persist"
)

func newFileStore(t *testing.T) *persist.FileStore {
	t.Helper()
	store, err := persist.NewFileStore(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	return store
}

var alice = persist.User{Username: "alice", PasswordHash: "h4sh", Salt: "s4lt"}

func TestFileStore_CreatesDirectory(t *testing.T) {
	store := newFileStore(t)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileStore_SaveLoad_RoundTrip(t *testing.T) {
	// GIVEN: A saved session
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, alice, populated(t)))
	assert.FileExists(t, filepath.Join(store.Dir(), "alice_data.txt"))

	// WHEN: Loading into a fresh session
	s := finance.NewSessionAt(anchor)
	result, err := store.Load(ctx, alice, s)

	// THEN: Data is restored
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expenses)
	assert.Equal(t, 2, s.Expenses().Len())
	e, err := s.Expenses().Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Groceries, bread", e.Description)
}

func TestFileStore_Save_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, alice, populated(t)))
	require.NoError(t, store.Save(ctx, alice, finance.NewSessionAt(anchor)))

	s := finance.NewSessionAt(anchor)
	result, err := store.Load(ctx, alice, s)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expenses)
	assert.Equal(t, 5, result.Budgets)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_Load_MissingFileIsNoop(t *testing.T) {
	store := newFileStore(t)
	s := finance.NewSessionAt(anchor)

	result, err := store.Load(context.Background(), alice, s)

	require.NoError(t, err)
	assert.Equal(t, persist.LoadResult{}, result)
	assert.Equal(t, 0, s.Expenses().Len())
}

func TestFileStore_Backup(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, alice, populated(t)))

	require.NoError(t, store.Backup(ctx, alice))

	original, err := os.ReadFile(store.Path("alice"))
	require.NoError(t, err)
	backup, err := os.ReadFile(store.BackupPath("alice"))
	require.NoError(t, err)
	assert.Equal(t, original, backup)
	assert.Equal(t, store.Path("alice")+".backup", store.BackupPath("alice"))
}

func TestFileStore_Backup_MissingSourceIsIOError(t *testing.T) {
	store := newFileStore(t)

	err := store.Backup(context.Background(), alice)

	require.Error(t, err)
	assert.True(t, finance.IsIO(err))
}

func TestFileStore_DeleteUserData(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	require.NoError(t, store.Save(ctx, alice, populated(t)))

	require.NoError(t, store.DeleteUserData(ctx, alice))
	assert.NoFileExists(t, store.Path("alice"))

	// Second delete finds nothing and is still fine
	require.NoError(t, store.DeleteUserData(ctx, alice))
}

func TestFileStore_DeleteUserCredential(t *testing.T) {
	// GIVEN: A credential file with alice among others
	ctx := context.Background()
	store := newFileStore(t)
	content := "bob:x:y\n  alice:h4sh:s4lt  \ncarol:p:q\nalice:other:salt\n"
	require.NoError(t, os.WriteFile(store.CredentialsPath(), []byte(content), 0o600))

	// WHEN: Removing alice's credential
	require.NoError(t, store.DeleteUserCredential(ctx, alice))

	// THEN: Only the exact triple is gone
	got, err := os.ReadFile(store.CredentialsPath())
	require.NoError(t, err)
	assert.Equal(t, "bob:x:y\ncarol:p:q\nalice:other:salt\n", string(got))
}

func TestFileStore_DeleteUserCredential_MissingFile(t *testing.T) {
	store := newFileStore(t)
	assert.NoError(t, store.DeleteUserCredential(context.Background(), alice))
}

func TestUser_CredentialLine(t *testing.T) {
	assert.Equal(t, "alice:h4sh:s4lt", alice.CredentialLine())
}

func TestFileStore_RejectsUnsafeUsernames(t *testing.T) {
	// GIVEN: A data file outside the store directory
	ctx := context.Background()
	store := newFileStore(t)
	parent := filepath.Dir(store.Dir())
	victim := filepath.Join(parent, "victim_data.txt")
	require.NoError(t, os.WriteFile(victim, []byte("[BUDGETS]\n"), 0o600))
	escape := persist.User{Username: "../victim"}

	// WHEN / THEN: Every file operation refuses the name
	_, err := store.Load(ctx, escape, finance.NewSessionAt(anchor))
	assert.ErrorIs(t, err, persist.ErrInvalidUsername)
	assert.True(t, finance.IsValidation(err))

	assert.ErrorIs(t, store.Save(ctx, escape, populated(t)), persist.ErrInvalidUsername)
	assert.ErrorIs(t, store.Backup(ctx, escape), persist.ErrInvalidUsername)
	assert.ErrorIs(t, store.DeleteUserData(ctx, escape), persist.ErrInvalidUsername)
	assert.ErrorIs(t, store.DeleteUserCredential(ctx, escape), persist.ErrInvalidUsername)

	// AND: Nothing outside the directory was touched
	assert.FileExists(t, victim)
	assert.NoFileExists(t, victim+".backup")
}

func TestValidUsername(t *testing.T) {
	for _, name := range []string{"alice", "bob.smith", "u_1-2", "9lives"} {
		assert.True(t, persist.ValidUsername(name), name)
	}
	for _, name := range []string{"", "../x", "a/b", ".hidden", "-flag", `a\b`, "al ice"} {
		assert.False(t, persist.ValidUsername(name), name)
	}
}
