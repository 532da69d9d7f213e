// Package storage persists the record collections in a local SQLite
// database. There is no cross-record transaction guarantee: each mutation
// is a sequence of independent writes, and balance updates from a
// propagation plan are applied best-effort in order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound signals that a record id does not exist in its collection.
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func storeAmount(d decimal.Decimal) string {
	return core.Round2(d).String()
}

func loadAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.Warn("Corrupt amount in store, treating as zero", "value", s, "error", err)
		return decimal.Zero
	}
	return d
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// ApplyPlan executes the balance writes of a propagation plan as
// sequential UPDATEs. Writes are independent by design; a failed write is
// recorded and the rest are still attempted.
func (r *Repository) ApplyPlan(ctx context.Context, plan core.Plan) error {
	var errs []error
	now := toMillis(time.Now())
	for _, w := range plan.Writes {
		var table string
		switch w.Collection {
		case core.CollectionAccounts:
			table = "accounts"
		case core.CollectionBudgets:
			table = "budgets"
		default:
			errs = append(errs, fmt.Errorf("plan write to unsupported collection %q", w.Collection))
			continue
		}
		res, err := r.db.ExecContext(ctx,
			"UPDATE "+table+" SET amount = ?, updated_at = ? WHERE id = ?",
			storeAmount(w.Amount), now, w.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errs = append(errs, fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, ErrNotFound))
			continue
		}
		slog.DebugContext(ctx, "Balance updated",
			"collection", string(w.Collection), "id", w.ID, "amount", w.Amount.StringFixed(2))
	}
	return errors.Join(errs...)
}

// --- accounts ---

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, amount, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, storeAmount(a.Amount), a.Description, toMillis(a.CreatedAt), toMillis(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns nil without error when the id does not exist, so
// callers can treat absence as a weak-reference miss.
func (r *Repository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, amount = ?, description = ?, updated_at = ? WHERE id = ?`,
		a.Name, storeAmount(a.Amount), a.Description, toMillis(a.UpdatedAt), a.ID)
	return execErr("update account", res, err)
}

func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return execErr("delete account", res, err)
}

func (r *Repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- budgets ---

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, name, amount, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, storeAmount(b.Amount), b.Description, toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, id string) (*core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET name = ?, amount = ?, description = ?, updated_at = ? WHERE id = ?`,
		b.Name, storeAmount(b.Amount), b.Description, toMillis(b.UpdatedAt), b.ID)
	return execErr("update budget", res, err)
}

func (r *Repository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	return execErr("delete budget", res, err)
}

func (r *Repository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM budgets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- debts ---

func (r *Repository) CreateDebt(ctx context.Context, d core.Debt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO debts (id, name, amount, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, storeAmount(d.Amount), d.Description, toMillis(d.CreatedAt), toMillis(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create debt: %w", err)
	}
	return nil
}

func (r *Repository) GetDebt(ctx context.Context, id string) (*core.Debt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM debts WHERE id = ?`, id)
	var d core.Debt
	var amount string
	var created, updated int64
	err := row.Scan(&d.ID, &d.Name, &amount, &d.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get debt: %w", err)
	}
	d.Amount, d.CreatedAt, d.UpdatedAt = loadAmount(amount), fromMillis(created), fromMillis(updated)
	return &d, nil
}

func (r *Repository) UpdateDebt(ctx context.Context, d core.Debt) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE debts SET name = ?, amount = ?, description = ?, updated_at = ? WHERE id = ?`,
		d.Name, storeAmount(d.Amount), d.Description, toMillis(d.UpdatedAt), d.ID)
	return execErr("update debt", res, err)
}

func (r *Repository) DeleteDebt(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
	return execErr("delete debt", res, err)
}

func (r *Repository) ListDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, description, created_at, updated_at FROM debts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()
	var out []core.Debt
	for rows.Next() {
		var d core.Debt
		var amount string
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.Name, &amount, &d.Description, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		d.Amount, d.CreatedAt, d.UpdatedAt = loadAmount(amount), fromMillis(created), fromMillis(updated)
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, icon, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Icon, c.Color, toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, icon, color, created_at, updated_at FROM categories WHERE id = ?`, id)
	var c core.Category
	var created, updated int64
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, icon = ?, color = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, c.Icon, c.Color, toMillis(c.UpdatedAt), c.ID)
	return execErr("update category", res, err)
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return execErr("delete category", res, err)
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, icon, color, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- types ---

func (r *Repository) CreateType(ctx context.Context, t core.Type) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO types (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, toMillis(t.CreatedAt), toMillis(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create type: %w", err)
	}
	return nil
}

func (r *Repository) GetType(ctx context.Context, id string) (*core.Type, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM types WHERE id = ?`, id)
	var t core.Type
	var created, updated int64
	err := row.Scan(&t.ID, &t.Name, &t.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get type: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &t, nil
}

func (r *Repository) UpdateType(ctx context.Context, t core.Type) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE types SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Description, toMillis(t.UpdatedAt), t.ID)
	return execErr("update type", res, err)
}

func (r *Repository) DeleteType(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM types WHERE id = ?`, id)
	return execErr("delete type", res, err)
}

func (r *Repository) ListTypes(ctx context.Context) ([]core.Type, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()
	var out []core.Type
	for rows.Next() {
		var t core.Type
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		t.CreatedAt, t.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- incomes ---

func (r *Repository) CreateIncome(ctx context.Context, i core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, name, amount, account_id, description, action_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Name, storeAmount(i.Amount), i.AccountID, i.Description,
		toMillis(i.ActionAt), toMillis(i.CreatedAt), toMillis(i.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	return nil
}

func (r *Repository) GetIncome(ctx context.Context, id string) (*core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, account_id, description, action_at, created_at, updated_at
		 FROM incomes WHERE id = ?`, id)
	i, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	return &i, nil
}

func (r *Repository) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET name = ?, amount = ?, account_id = ?, description = ?, action_at = ?, updated_at = ?
		 WHERE id = ?`,
		i.Name, storeAmount(i.Amount), i.AccountID, i.Description,
		toMillis(i.ActionAt), toMillis(i.UpdatedAt), i.ID)
	return execErr("update income", res, err)
}

func (r *Repository) DeleteIncome(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	return execErr("delete income", res, err)
}

func (r *Repository) ListIncomes(ctx context.Context) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, account_id, description, action_at, created_at, updated_at
		 FROM incomes ORDER BY action_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()
	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// --- expenses ---

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, name, amount, account_id, category_id, budget_id, rating, description, action_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, storeAmount(e.Amount), e.AccountID, e.CategoryID, e.BudgetID,
		string(e.Rating), e.Description, toMillis(e.ActionAt), toMillis(e.CreatedAt), toMillis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, account_id, category_id, budget_id, rating, description, action_at, created_at, updated_at
		 FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET name = ?, amount = ?, account_id = ?, category_id = ?, budget_id = ?, rating = ?, description = ?, action_at = ?, updated_at = ?
		 WHERE id = ?`,
		e.Name, storeAmount(e.Amount), e.AccountID, e.CategoryID, e.BudgetID,
		string(e.Rating), e.Description, toMillis(e.ActionAt), toMillis(e.UpdatedAt), e.ID)
	return execErr("update expense", res, err)
}

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	return execErr("delete expense", res, err)
}

func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, account_id, category_id, budget_id, rating, description, action_at, created_at, updated_at
		 FROM expenses ORDER BY action_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var amount string
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Name, &amount, &a.Description, &created, &updated); err != nil {
		return core.Account{}, err
	}
	a.Amount, a.CreatedAt, a.UpdatedAt = loadAmount(amount), fromMillis(created), fromMillis(updated)
	return a, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var amount string
	var created, updated int64
	if err := row.Scan(&b.ID, &b.Name, &amount, &b.Description, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.Amount, b.CreatedAt, b.UpdatedAt = loadAmount(amount), fromMillis(created), fromMillis(updated)
	return b, nil
}

func scanIncome(row rowScanner) (core.Income, error) {
	var i core.Income
	var amount string
	var action, created, updated int64
	if err := row.Scan(&i.ID, &i.Name, &amount, &i.AccountID, &i.Description, &action, &created, &updated); err != nil {
		return core.Income{}, err
	}
	i.Amount = loadAmount(amount)
	i.ActionAt, i.CreatedAt, i.UpdatedAt = fromMillis(action), fromMillis(created), fromMillis(updated)
	return i, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var amount, rating string
	var action, created, updated int64
	if err := row.Scan(&e.ID, &e.Name, &amount, &e.AccountID, &e.CategoryID, &e.BudgetID,
		&rating, &e.Description, &action, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	e.Amount, e.Rating = loadAmount(amount), core.Rating(rating)
	e.ActionAt, e.CreatedAt, e.UpdatedAt = fromMillis(action), fromMillis(created), fromMillis(updated)
	return e, nil
}

func execErr(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
