package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/persist"
	"github.com/warp/expense-engine/store/memory"
)

var (
	anchor = time.Date(2030, time.June, 15, 0, 0, 0, 0, time.UTC)
	bob    = persist.User{Username: "bob"}
)

func TestMemory_SaveLoad(t *testing.T) {
	// GIVEN: A session with one budget and one expense
	ctx := context.Background()
	store := memory.New()
	src := finance.NewSessionAt(anchor)
	jan := finance.NewMonth(2024, time.January)
	require.NoError(t, src.Budgets().SetBudget(finance.CategoryFood, decimal.NewFromInt(200), jan))
	id := src.Expenses().Add(finance.NewExpense(finance.NewDate(2024, time.January, 5), finance.CategoryFood, decimal.NewFromInt(50), "Groceries"))

	// WHEN: Saving and loading into a fresh session
	require.NoError(t, store.Save(ctx, bob, src))
	dst := finance.NewSessionAt(anchor)
	result, err := store.Load(ctx, bob, dst)

	// THEN: Everything is restored, IDs included
	require.NoError(t, err)
	assert.Equal(t, 6, result.Budgets)
	assert.Equal(t, 1, result.Expenses)
	assert.Equal(t, "200", dst.Budgets().Budget(finance.CategoryFood, jan).String())
	got, ok := dst.Expenses().Find(id)
	require.True(t, ok)
	assert.Equal(t, "Groceries", got.Description)
}

func TestMemory_SaveIsCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	src := finance.NewSessionAt(anchor)
	require.NoError(t, store.Save(ctx, bob, src))

	// Mutating the source after save does not reach the store
	src.Expenses().Add(finance.NewExpense(finance.NewDate(2024, time.January, 5), finance.CategoryFood, decimal.NewFromInt(1), "late"))

	dst := finance.NewSessionAt(anchor)
	result, err := store.Load(ctx, bob, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expenses)
}

func TestMemory_UnknownUserAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	result, err := store.Load(ctx, bob, finance.NewSessionAt(anchor))
	require.NoError(t, err)
	assert.Equal(t, persist.LoadResult{}, result)

	require.NoError(t, store.Save(ctx, bob, finance.NewSessionAt(anchor)))
	assert.Equal(t, []string{"bob"}, store.Users())

	require.NoError(t, store.DeleteUserData(ctx, bob))
	assert.Empty(t, store.Users())
	require.NoError(t, store.DeleteUserData(ctx, bob))
}
