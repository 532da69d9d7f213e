package storage

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// Snapshot is the whole-store state: every collection with its records as
// stored, ids and timestamps included. Restoring a snapshot into an empty
// store reproduces identical balances.
type Snapshot struct {
	Accounts   []core.Account  `json:"accounts"`
	Budgets    []core.Budget   `json:"budgets"`
	Debts      []core.Debt     `json:"debts"`
	Categories []core.Category `json:"categories"`
	Types      []core.Type     `json:"types"`
	Incomes    []core.Income   `json:"incomes"`
	Expenses   []core.Expense  `json:"expenses"`
}

func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Accounts, err = r.ListAccounts(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Budgets, err = r.ListBudgets(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Debts, err = r.ListDebts(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Categories, err = r.ListCategories(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Types, err = r.ListTypes(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Incomes, err = r.ListIncomes(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Expenses, err = r.ListExpenses(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Restore inserts every snapshot record with its original id, amounts and
// timestamps. It does not wipe existing data first; importing on top of a
// non-empty store fails on the first id collision.
func (r *Repository) Restore(ctx context.Context, snap Snapshot) error {
	for _, a := range snap.Accounts {
		if err := r.CreateAccount(ctx, a); err != nil {
			return fmt.Errorf("restore account %s: %w", a.ID, err)
		}
	}
	for _, b := range snap.Budgets {
		if err := r.CreateBudget(ctx, b); err != nil {
			return fmt.Errorf("restore budget %s: %w", b.ID, err)
		}
	}
	for _, d := range snap.Debts {
		if err := r.CreateDebt(ctx, d); err != nil {
			return fmt.Errorf("restore debt %s: %w", d.ID, err)
		}
	}
	for _, c := range snap.Categories {
		if err := r.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("restore category %s: %w", c.ID, err)
		}
	}
	for _, t := range snap.Types {
		if err := r.CreateType(ctx, t); err != nil {
			return fmt.Errorf("restore type %s: %w", t.ID, err)
		}
	}
	for _, i := range snap.Incomes {
		if err := r.CreateIncome(ctx, i); err != nil {
			return fmt.Errorf("restore income %s: %w", i.ID, err)
		}
	}
	for _, e := range snap.Expenses {
		if err := r.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("restore expense %s: %w", e.ID, err)
		}
	}
	return nil
}
