/*
handlers_test.go - HTTP tests for the expense API

Tests run the full router against an in-memory repository, except where a
file-backed store is needed for backups and credential removal.
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/notify"
	"github.com/warp/expense-engine/persist"
	"github.com/warp/expense-engine/store/memory"
)

var fixedNow = time.Date(2030, time.June, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	repo    *memory.Store
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := memory.New()
	h := NewHandler(repo, nil)
	h.Now = func() time.Time { return fixedNow }
	return &testServer{handler: h, repo: repo, router: NewRouter(h, []string{"*"})}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const alicePath = "/api/users/alice"

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestCreateExpense(t *testing.T) {
	// GIVEN: A fresh user
	ts := newTestServer(t)

	// WHEN: Adding an expense
	rec := ts.do(t, http.MethodPost, alicePath+"/expenses",
		`{"date":"2024-01-05","category":"Food","amount":"50","description":"Groceries"}`)

	// THEN: It is created at index 0 and saved
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[ExpenseDTO](t, rec)
	assert.Equal(t, 0, got.Index)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "2024-01-05", got.Date)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, "50.00", got.Amount)
	assert.Equal(t, []string{"alice"}, ts.repo.Users())
}

func TestCreateExpense_AcceptsNumericAmount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, alicePath+"/expenses",
		`{"date":"2024-01-05","category":"Utilities","amount":12.5,"description":"Water"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "12.50", decode[ExpenseDTO](t, rec).Amount)
}

func TestCreateExpense_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad date", `{"date":"05/01/2024","category":"Food","amount":"1"}`, "Invalid date"},
		{"unknown category", `{"date":"2024-01-05","category":"Rent","amount":"1"}`, "Invalid category"},
		{"zero amount", `{"date":"2024-01-05","category":"Food","amount":"0"}`, "Amount must be positive"},
		{"negative amount", `{"date":"2024-01-05","category":"Food","amount":"-3"}`, "Amount must be positive"},
		{"malformed body", `{"date":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPost, alicePath+"/expenses", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestInvalidUsername(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/users/..evil/expenses", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedExpenses(t *testing.T, ts *testServer) {
	t.Helper()
	for _, body := range []string{
		`{"date":"2024-01-05","category":"Food","amount":"50","description":"Groceries"}`,
		`{"date":"2024-01-10","category":"Transportation","amount":"130","description":"Bus pass"}`,
		`{"date":"2024-02-01","category":"Food","amount":"20","description":"Snacks"}`,
	} {
		rec := ts.do(t, http.MethodPost, alicePath+"/expenses", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestListExpenses_Filters(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	tests := []struct {
		name  string
		query string
		want  []int
	}{
		{"all", "", []int{0, 1, 2}},
		{"category is case-insensitive", "?category=food", []int{0, 2}},
		{"month", "?month=2024-01", []int{0, 1}},
		{"date range", "?from=2024-01-06&to=2024-02-01", []int{1, 2}},
		{"open-ended range", "?from=2024-01-10", []int{1, 2}},
		{"no match", "?category=Utilities", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, alicePath+"/expenses"+tt.query, "")

			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[[]ExpenseDTO](t, rec)
			indexes := []int{}
			for _, e := range got {
				indexes = append(indexes, e.Index)
			}
			assert.Equal(t, tt.want, indexes)
		})
	}
}

func TestListExpenses_BadFilter(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, alicePath+"/expenses?month=2024-13", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, alicePath+"/expenses?from=yesterday", "").Code)
}

func TestGetExpense(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodGet, alicePath+"/expenses/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bus pass", decode[ExpenseDTO](t, rec).Description)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, alicePath+"/expenses/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, alicePath+"/expenses/one", "").Code)
}

func TestUpdateExpense_KeepsID(t *testing.T) {
	// GIVEN: Three expenses
	ts := newTestServer(t)
	seedExpenses(t, ts)
	before := decode[ExpenseDTO](t, ts.do(t, http.MethodGet, alicePath+"/expenses/0", ""))

	// WHEN: Replacing the first
	rec := ts.do(t, http.MethodPut, alicePath+"/expenses/0",
		`{"date":"2024-01-06","category":"Entertainment","amount":"15","description":"Cinema"}`)

	// THEN: The slot has new values and the same ID
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	after := decode[ExpenseDTO](t, rec)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Entertainment", after.Category)
	assert.Equal(t, "15.00", after.Amount)
}

func TestUpdateExpense_OutOfRange(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodPut, alicePath+"/expenses/9",
		`{"date":"2024-01-06","category":"Food","amount":"1","description":"x"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "invalid expense index")
}

func TestDeleteExpense(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodDelete, alicePath+"/expenses/0", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	got := decode[[]ExpenseDTO](t, ts.do(t, http.MethodGet, alicePath+"/expenses", ""))
	require.Len(t, got, 2)
	assert.Equal(t, "Bus pass", got[0].Description)
	assert.Equal(t, 0, got[0].Index)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, alicePath+"/expenses/-1", "").Code)
}

// =============================================================================
// BUDGETS & REPORTS
// =============================================================================

func TestSetBudget_AndUtilization(t *testing.T) {
	// GIVEN: January expenses
	ts := newTestServer(t)
	seedExpenses(t, ts)

	// WHEN: Setting a food budget for January
	rec := ts.do(t, http.MethodPut, alicePath+"/budgets", `{"month":"2024-01","category":"Food","amount":"200"}`)

	// THEN: The budget is listed and utilization reflects it
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	budgets := decode[BudgetsDTO](t, rec)
	assert.Equal(t, map[string]string{"Food": "200.00"}, budgets.Budgets)
	assert.Equal(t, "200.00", budgets.Total)

	util := decode[UtilizationDTO](t, ts.do(t, http.MethodGet, alicePath+"/utilization?month=2024-01", ""))
	assert.Equal(t, "25.00", util.Utilization["Food"])
	assert.Equal(t, "0.00", util.Utilization["Transportation"])
	assert.Len(t, util.Utilization, 5)
}

func TestSetBudget_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative", `{"month":"2024-01","category":"Food","amount":"-1"}`},
		{"bad month", `{"month":"January","category":"Food","amount":"1"}`},
		{"unknown category", `{"month":"2024-01","category":"Rent","amount":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPut, alicePath+"/budgets", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, ts.repo.Users())
		})
	}
}

func TestGetBudgets_DefaultsToCurrentMonth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, alicePath+"/budgets", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[BudgetsDTO](t, rec)
	assert.Equal(t, "2030-06", got.Month)
	assert.Len(t, got.Budgets, 5)
	assert.Equal(t, "1000.00", got.Budgets["Food"])
}

func TestGetSpending(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodGet, alicePath+"/spending?month=2024-01", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[SpendingDTO](t, rec)
	assert.Equal(t, "50.00", got.Categories["Food"])
	assert.Equal(t, "130.00", got.Categories["Transportation"])
	assert.Equal(t, "180.00", got.TotalExpenses)
	assert.Equal(t, "0.00", got.TotalBudget)
}

func TestGetReport(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodGet, alicePath+"/report?month=2024-01", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Monthly Report for 2024-01\n"))
	assert.Contains(t, rec.Body.String(), "2024-01-05 - Food - $50.00 - Groceries")
	assert.NotContains(t, rec.Body.String(), "Snacks")

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, alicePath+"/report?month=24-1", "").Code)
}

func TestListMonths(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodGet, alicePath+"/months", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-01", "2024-02", "2030-06"}, decode[MonthsDTO](t, rec).Months)
}

// =============================================================================
// TRANSFER
// =============================================================================

func TestImport_PartialSuccess(t *testing.T) {
	ts := newTestServer(t)
	body := "2024-01-05,Food,12.50,Lunch; with friends\n" +
		"2024-01-06,Rent,900,Flat\n" +
		"not a line\n"

	rec := ts.do(t, http.MethodPost, alicePath+"/import", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[ImportResponse](t, rec)
	assert.Equal(t, 1, got.Imported)
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "line 2: invalid category - Rent", got.Errors[0])

	list := decode[[]ExpenseDTO](t, ts.do(t, http.MethodGet, alicePath+"/expenses", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "Lunch, with friends", list[0].Description)
}

func TestImport_NothingImported(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, alicePath+"/import", "garbage\n")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	got := decode[ImportResponse](t, rec)
	assert.Equal(t, 0, got.Imported)
	assert.Len(t, got.Errors, 1)
	assert.Empty(t, ts.repo.Users())
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, alicePath+"/expenses",
		`{"date":"2024-01-05","category":"Food","amount":"50","description":"Bread, milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, alicePath+"/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-05,Food,50.00,Bread; milk\n", rec.Body.String())
}

// =============================================================================
// SESSIONS & PERSISTENCE
// =============================================================================

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	got := decode[[]ExpenseDTO](t, ts.do(t, http.MethodGet, "/api/users/bob/expenses", ""))

	assert.Empty(t, got)
	assert.Equal(t, []string{"alice", "bob"}, ts.handler.LoadedUsers())
}

func TestSessionLoadedFromRepository(t *testing.T) {
	// GIVEN: Data saved by one handler
	ts := newTestServer(t)
	seedExpenses(t, ts)

	// WHEN: A new handler over the same repository serves the user
	h := NewHandler(ts.repo, nil)
	h.Now = func() time.Time { return fixedNow }
	other := &testServer{handler: h, repo: ts.repo, router: NewRouter(h, []string{"*"})}

	// THEN: It sees the saved expenses
	got := decode[[]ExpenseDTO](t, other.do(t, http.MethodGet, alicePath+"/expenses", ""))
	assert.Len(t, got, 3)
}

type recordingPublisher struct {
	kinds []string
}

func (r *recordingPublisher) Publish(_ context.Context, msg notify.ChangeMessage) error {
	r.kinds = append(r.kinds, msg.Kind)
	return nil
}

func TestPublisherReceivesChanges(t *testing.T) {
	ts := newTestServer(t)
	pub := &recordingPublisher{}
	ts.handler.Publisher = pub

	seedExpenses(t, ts)
	ts.do(t, http.MethodPost, alicePath+"/import", "2024-01-05,Food,1,a\n2024-01-06,Food,2,b\n")

	assert.Equal(t, []string{"expense_added", "expense_added", "expense_added", "imported"}, pub.kinds)

	ts.handler.Close()
	assert.Empty(t, ts.handler.LoadedUsers())
}

func newFileServer(t *testing.T) (*testServer, *persist.FileStore) {
	t.Helper()
	files, err := persist.NewFileStore(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	h := NewHandler(files, nil)
	h.Files = files
	h.Now = func() time.Time { return fixedNow }
	return &testServer{handler: h, router: NewRouter(h, []string{"*"})}, files
}

func TestBackupUser(t *testing.T) {
	ts, files := newFileServer(t)

	// Nothing saved yet
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, alicePath+"/backup", "").Code)

	seedExpenses(t, ts)
	rec := ts.do(t, http.MethodPost, alicePath+"/backup", "")

	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.FileExists(t, files.BackupPath("alice"))
}

func TestBackupUser_RequiresFileBackend(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotImplemented, ts.do(t, http.MethodPost, alicePath+"/backup", "").Code)
}

func TestDeleteUser(t *testing.T) {
	// GIVEN: A saved user with a credential line
	ts, files := newFileServer(t)
	seedExpenses(t, ts)
	creds := "alice:h4sh:s4lt\nbob:x:y\n"
	require.NoError(t, os.WriteFile(files.CredentialsPath(), []byte(creds), 0o600))

	// WHEN: Deleting alice with her credential
	rec := ts.do(t, http.MethodDelete, alicePath+"?hash=h4sh&salt=s4lt", "")

	// THEN: Data file and credential line are gone, and the cache is dropped
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.NoFileExists(t, files.Path("alice"))
	data, err := os.ReadFile(files.CredentialsPath())
	require.NoError(t, err)
	assert.Equal(t, "bob:x:y\n", string(data))
	assert.Empty(t, ts.handler.LoadedUsers())

	got := decode[[]ExpenseDTO](t, ts.do(t, http.MethodGet, alicePath+"/expenses", ""))
	assert.Empty(t, got)
}

func TestDeleteUser_Memory(t *testing.T) {
	ts := newTestServer(t)
	seedExpenses(t, ts)

	rec := ts.do(t, http.MethodDelete, alicePath, "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ts.repo.Users())

	s := finance.NewSessionAt(fixedNow)
	_, err := ts.repo.Load(context.Background(), persist.User{Username: "alice"}, s)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Expenses().Len())
}
