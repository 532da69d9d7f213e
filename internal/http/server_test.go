package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// memStore implements Store with plain maps, backing the handler tests
// without a database.
type memStore struct {
	accounts   map[string]core.Account
	budgets    map[string]core.Budget
	debts      map[string]core.Debt
	categories map[string]core.Category
	types      map[string]core.Type
	incomes    map[string]core.Income
	expenses   map[string]core.Expense
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[string]core.Account{},
		budgets:    map[string]core.Budget{},
		debts:      map[string]core.Debt{},
		categories: map[string]core.Category{},
		types:      map[string]core.Type{},
		incomes:    map[string]core.Income{},
		expenses:   map[string]core.Expense{},
	}
}

func get[T any](m map[string]T, id string) (*T, error) {
	if v, ok := m[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func list[T any](m map[string]T) ([]T, error) {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out, nil
}

func remove[T any](m map[string]T, id string) error {
	if _, ok := m[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m, id)
	return nil
}

func (m *memStore) CreateAccount(_ context.Context, a core.Account) error {
	m.accounts[a.ID] = a
	return nil
}
func (m *memStore) GetAccount(_ context.Context, id string) (*core.Account, error) {
	return get(m.accounts, id)
}
func (m *memStore) UpdateAccount(_ context.Context, a core.Account) error {
	m.accounts[a.ID] = a
	return nil
}
func (m *memStore) DeleteAccount(_ context.Context, id string) error { return remove(m.accounts, id) }
func (m *memStore) ListAccounts(_ context.Context) ([]core.Account, error) {
	return list(m.accounts)
}

func (m *memStore) CreateBudget(_ context.Context, b core.Budget) error {
	m.budgets[b.ID] = b
	return nil
}
func (m *memStore) GetBudget(_ context.Context, id string) (*core.Budget, error) {
	return get(m.budgets, id)
}
func (m *memStore) UpdateBudget(_ context.Context, b core.Budget) error {
	m.budgets[b.ID] = b
	return nil
}
func (m *memStore) DeleteBudget(_ context.Context, id string) error { return remove(m.budgets, id) }
func (m *memStore) ListBudgets(_ context.Context) ([]core.Budget, error) {
	return list(m.budgets)
}

func (m *memStore) CreateDebt(_ context.Context, d core.Debt) error {
	m.debts[d.ID] = d
	return nil
}
func (m *memStore) GetDebt(_ context.Context, id string) (*core.Debt, error) {
	return get(m.debts, id)
}
func (m *memStore) UpdateDebt(_ context.Context, d core.Debt) error {
	m.debts[d.ID] = d
	return nil
}
func (m *memStore) DeleteDebt(_ context.Context, id string) error { return remove(m.debts, id) }
func (m *memStore) ListDebts(_ context.Context) ([]core.Debt, error) {
	return list(m.debts)
}

func (m *memStore) CreateCategory(_ context.Context, c core.Category) error {
	m.categories[c.ID] = c
	return nil
}
func (m *memStore) GetCategory(_ context.Context, id string) (*core.Category, error) {
	return get(m.categories, id)
}
func (m *memStore) UpdateCategory(_ context.Context, c core.Category) error {
	m.categories[c.ID] = c
	return nil
}
func (m *memStore) DeleteCategory(_ context.Context, id string) error {
	return remove(m.categories, id)
}
func (m *memStore) ListCategories(_ context.Context) ([]core.Category, error) {
	return list(m.categories)
}

func (m *memStore) CreateType(_ context.Context, t core.Type) error {
	m.types[t.ID] = t
	return nil
}
func (m *memStore) GetType(_ context.Context, id string) (*core.Type, error) {
	return get(m.types, id)
}
func (m *memStore) UpdateType(_ context.Context, t core.Type) error {
	m.types[t.ID] = t
	return nil
}
func (m *memStore) DeleteType(_ context.Context, id string) error { return remove(m.types, id) }
func (m *memStore) ListTypes(_ context.Context) ([]core.Type, error) {
	return list(m.types)
}

func (m *memStore) CreateIncome(_ context.Context, i core.Income) error {
	m.incomes[i.ID] = i
	return nil
}
func (m *memStore) GetIncome(_ context.Context, id string) (*core.Income, error) {
	return get(m.incomes, id)
}
func (m *memStore) UpdateIncome(_ context.Context, i core.Income) error {
	m.incomes[i.ID] = i
	return nil
}
func (m *memStore) DeleteIncome(_ context.Context, id string) error { return remove(m.incomes, id) }
func (m *memStore) ListIncomes(_ context.Context) ([]core.Income, error) {
	return list(m.incomes)
}

func (m *memStore) CreateExpense(_ context.Context, e core.Expense) error {
	m.expenses[e.ID] = e
	return nil
}
func (m *memStore) GetExpense(_ context.Context, id string) (*core.Expense, error) {
	return get(m.expenses, id)
}
func (m *memStore) UpdateExpense(_ context.Context, e core.Expense) error {
	m.expenses[e.ID] = e
	return nil
}
func (m *memStore) DeleteExpense(_ context.Context, id string) error { return remove(m.expenses, id) }
func (m *memStore) ListExpenses(_ context.Context) ([]core.Expense, error) {
	return list(m.expenses)
}

func (m *memStore) ApplyPlan(_ context.Context, plan core.Plan) error {
	for _, w := range plan.Writes {
		switch w.Collection {
		case core.CollectionAccounts:
			a := m.accounts[w.ID]
			a.Amount = w.Amount
			m.accounts[w.ID] = a
		case core.CollectionBudgets:
			b := m.budgets[w.ID]
			b.Amount = w.Amount
			m.budgets[w.ID] = b
		}
	}
	return nil
}

func (m *memStore) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	var snap storage.Snapshot
	snap.Accounts, _ = m.ListAccounts(ctx)
	snap.Budgets, _ = m.ListBudgets(ctx)
	snap.Debts, _ = m.ListDebts(ctx)
	snap.Categories, _ = m.ListCategories(ctx)
	snap.Types, _ = m.ListTypes(ctx)
	snap.Incomes, _ = m.ListIncomes(ctx)
	snap.Expenses, _ = m.ListExpenses(ctx)
	return snap, nil
}

func (m *memStore) Restore(ctx context.Context, snap storage.Snapshot) error {
	for _, a := range snap.Accounts {
		if _, ok := m.accounts[a.ID]; ok {
			return fmt.Errorf("restore account %s: id exists", a.ID)
		}
		m.accounts[a.ID] = a
	}
	for _, i := range snap.Incomes {
		m.incomes[i.ID] = i
	}
	for _, e := range snap.Expenses {
		m.expenses[e.ID] = e
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	summary := services.NewSummary(store)
	ledger := services.NewLedger(store, nil, summary)
	srv := NewServer(":0", store, ledger, summary, nil, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestAccountCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "100.005",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body)
	}
	created := decodeBody[core.Account](t, rec)
	if created.ID == "" {
		t.Fatal("id must be assigned")
	}
	if !created.Amount.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("amount = %s, want rounded 100.01", created.Amount)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/accounts/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/accounts/"+created.ID, map[string]any{
		"name": "Main checking", "amount": "80",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d, body %s", rec.Code, rec.Body)
	}
	updated := decodeBody[core.Account](t, rec)
	if updated.Name != "Main checking" {
		t.Fatalf("name = %q", updated.Name)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("update must preserve CreatedAt")
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/accounts/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/accounts/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestAccountValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{"name": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name = %d, want 400", rec.Code)
	}
}

func TestIncomePropagatesToAccount(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "100",
	})
	account := decodeBody[core.Account](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/incomes", map[string]any{
		"name": "Salary", "amount": "25.50", "accountId": account.ID,
		"actionTimestamp": time.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeBody[incomeResponse](t, rec)
	if len(resp.Warnings) != 0 {
		t.Fatalf("warnings = %+v", resp.Warnings)
	}

	if got := store.accounts[account.ID].Amount; !got.Equal(decimal.RequireFromString("125.5")) {
		t.Fatalf("account balance = %s, want 125.5", got)
	}
}

func TestExpenseInsufficientBalanceIs422(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "50",
	})
	account := decodeBody[core.Account](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name": "TV", "amount": "100", "accountId": account.ID,
		"category": "electronics", "rating": "avoidable",
		"actionTimestamp": time.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body)
	}
	body := decodeBody[errorBody](t, rec)
	if body.Error == "" {
		t.Fatal("422 must carry a displayable reason")
	}
}

func TestExpenseWithMissingBudgetWarns(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "50",
	})
	account := decodeBody[core.Account](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name": "Groceries", "amount": "20", "accountId": account.ID,
		"category": "food", "budget": "missing-budget", "rating": "necessary",
		"actionTimestamp": time.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeBody[expenseResponse](t, rec)
	if len(resp.Warnings) != 1 || resp.Warnings[0].Collection != "budgets" {
		t.Fatalf("warnings = %+v", resp.Warnings)
	}
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Now()

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "1000",
	})
	account := decodeBody[core.Account](t, rec)

	doJSON(t, srv, http.MethodPost, "/api/incomes", map[string]any{
		"name": "Salary", "amount": "1000", "accountId": account.ID,
		"actionTimestamp": now.Format(time.RFC3339),
	})
	doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name": "Rent", "amount": "200", "accountId": account.ID,
		"category": "housing", "rating": "necessary",
		"actionTimestamp": now.Format(time.RFC3339),
	})

	rec = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/dashboard?year=%d&month=%d", now.Year(), int(now.Month())), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d, body %s", rec.Code, rec.Body)
	}
	sum := decodeBody[core.MonthSummary](t, rec)
	if !sum.TotalIncome.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("totalIncome = %s", sum.TotalIncome)
	}
	if !sum.TotalExpense.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("totalExpense = %s", sum.TotalExpense)
	}
	if !sum.Balance.Equal(decimal.RequireFromString("800")) {
		t.Fatalf("balance = %s", sum.Balance)
	}
	if len(sum.Recent) != 1 {
		t.Fatalf("recent = %+v", sum.Recent)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/dashboard/months", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("months = %d", rec.Code)
	}
	months := decodeBody[[]core.YearMonth](t, rec)
	if len(months) == 0 {
		t.Fatal("months must include the current month")
	}
}

func TestSnapshotExportImport(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/export/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	snapshot := rec.Body.Bytes()

	// Import into a fresh server.
	srv2, store2 := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/import/snapshot", bytes.NewReader(snapshot))
	rec2 := httptest.NewRecorder()
	srv2.Server.Handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("import = %d, body %s", rec2.Code, rec2.Body)
	}
	if len(store2.accounts) != 1 {
		t.Fatalf("restored accounts = %d, want 1", len(store2.accounts))
	}
}

func TestExportCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Checking", "amount": "100",
	})

	rec := doJSON(t, srv, http.MethodGet, "/export/csv?collection=accounts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Checking")) {
		t.Fatalf("csv body missing record:\n%s", rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/export/csv?collection=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus collection = %d, want 400", rec.Code)
	}
}
