package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the propagation engine. ErrReferenceNotFound
// is fatal only for the primary account at expense/income creation; on any
// secondary or stale reference it is downgraded to a Warning.
var (
	ErrReferenceNotFound   = errors.New("reference not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// BalanceWrite is one pending balance update: set the amount of the record
// identified by (Collection, ID) to Amount. Writes are intentionally a
// plain ordered list so the storage layer can apply them sequentially, or
// wrap them in a transaction if it has one.
type BalanceWrite struct {
	Collection Collection
	ID         string
	Amount     decimal.Decimal
}

// Warning records a missing weak reference that was tolerated. The
// propagation to that entity was skipped; the primary operation proceeds.
type Warning struct {
	Collection Collection
	ID         string
	Err        error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s/%s: %v", w.Collection, w.ID, w.Err)
}

// Plan is the full outcome of propagating one transaction mutation.
type Plan struct {
	Writes   []BalanceWrite
	Warnings []Warning
}

func (p *Plan) write(c Collection, id string, amount decimal.Decimal) {
	p.Writes = append(p.Writes, BalanceWrite{Collection: c, ID: id, Amount: Round2(amount)})
}

func (p *Plan) warn(c Collection, id string) {
	p.Warnings = append(p.Warnings, Warning{Collection: c, ID: id, Err: ErrReferenceNotFound})
}

// IncomeCreated posts a new income to its account. The account must exist;
// income has no balance floor, so once the account is found the operation
// always succeeds.
func IncomeCreated(account *Account, inc Income) (Plan, error) {
	var plan Plan
	if account == nil {
		return plan, fmt.Errorf("account %s: %w", inc.AccountID, ErrReferenceNotFound)
	}
	plan.write(CollectionAccounts, account.ID, account.Amount.Add(inc.Amount))
	return plan, nil
}

// IncomeDeleted reverses a deleted income. A missing account is reported
// as a warning: the income record is removed regardless.
func IncomeDeleted(account *Account, inc Income) Plan {
	var plan Plan
	if account == nil {
		plan.warn(CollectionAccounts, inc.AccountID)
		return plan
	}
	plan.write(CollectionAccounts, account.ID, account.Amount.Sub(inc.Amount))
	return plan
}

// IncomeUpdated moves an income between states. With an unchanged account
// reference only the difference is applied; with a changed reference the
// old account loses the income it had gained and the new account gains the
// new amount. Each side tolerates a missing account independently.
func IncomeUpdated(oldAccount, newAccount *Account, old, upd Income) Plan {
	var plan Plan
	if old.AccountID == upd.AccountID {
		if old.Amount.Equal(upd.Amount) {
			return plan
		}
		if oldAccount == nil {
			plan.warn(CollectionAccounts, old.AccountID)
			return plan
		}
		plan.write(CollectionAccounts, oldAccount.ID, oldAccount.Amount.Add(upd.Amount.Sub(old.Amount)))
		return plan
	}
	if oldAccount == nil {
		plan.warn(CollectionAccounts, old.AccountID)
	} else {
		plan.write(CollectionAccounts, oldAccount.ID, oldAccount.Amount.Sub(old.Amount))
	}
	if newAccount == nil {
		plan.warn(CollectionAccounts, upd.AccountID)
	} else {
		plan.write(CollectionAccounts, newAccount.ID, newAccount.Amount.Add(upd.Amount))
	}
	return plan
}

// ExpenseCreated charges a new expense to its account and, when assigned,
// its budget. A missing account is fatal: the expense must not be created.
// The account balance may not go below zero; a budget may.
func ExpenseCreated(account *Account, budget *Budget, exp Expense) (Plan, error) {
	var plan Plan
	if account == nil {
		return plan, fmt.Errorf("account %s: %w", exp.AccountID, ErrReferenceNotFound)
	}
	if Round2(account.Amount).Cmp(Round2(exp.Amount)) < 0 {
		return plan, fmt.Errorf("account %s holds %s, expense is %s: %w",
			account.ID, account.Amount.StringFixed(2), exp.Amount.StringFixed(2), ErrInsufficientBalance)
	}
	plan.write(CollectionAccounts, account.ID, account.Amount.Sub(exp.Amount))
	if exp.BudgetID != "" {
		if budget == nil {
			plan.warn(CollectionBudgets, exp.BudgetID)
		} else {
			plan.write(CollectionBudgets, budget.ID, budget.Amount.Sub(exp.Amount))
		}
	}
	return plan, nil
}

// ExpenseDeleted refunds a deleted expense. Missing references are
// warnings: the expense record is removed regardless.
func ExpenseDeleted(account *Account, budget *Budget, exp Expense) Plan {
	var plan Plan
	if account == nil {
		plan.warn(CollectionAccounts, exp.AccountID)
	} else {
		plan.write(CollectionAccounts, account.ID, account.Amount.Add(exp.Amount))
	}
	if exp.BudgetID != "" {
		if budget == nil {
			plan.warn(CollectionBudgets, exp.BudgetID)
		} else {
			plan.write(CollectionBudgets, budget.ID, budget.Amount.Add(exp.Amount))
		}
	}
	return plan
}

// ExpenseUpdated moves an expense between states. The account effect and
// the budget effect are evaluated as independent same-vs-changed branches.
//
// Balance floor: for an in-place update, reversing the old charge before
// applying the new one must not drive the account negative
// (amount + oldAmount >= newAmount); when the account reference changed,
// the new account must cover the new amount. Either failure aborts before
// any write.
func ExpenseUpdated(oldAccount, newAccount *Account, oldBudget, newBudget *Budget, old, upd Expense) (Plan, error) {
	var plan Plan

	// Account branch.
	if old.AccountID == upd.AccountID {
		if !old.Amount.Equal(upd.Amount) {
			if oldAccount == nil {
				plan.warn(CollectionAccounts, old.AccountID)
			} else {
				if Round2(oldAccount.Amount).Add(Round2(old.Amount)).Cmp(Round2(upd.Amount)) < 0 {
					return Plan{}, fmt.Errorf("account %s holds %s after reversal, expense is %s: %w",
						oldAccount.ID, oldAccount.Amount.Add(old.Amount).StringFixed(2),
						upd.Amount.StringFixed(2), ErrInsufficientBalance)
				}
				plan.write(CollectionAccounts, oldAccount.ID,
					oldAccount.Amount.Sub(upd.Amount.Sub(old.Amount)))
			}
		}
	} else {
		if newAccount != nil && Round2(newAccount.Amount).Cmp(Round2(upd.Amount)) < 0 {
			return Plan{}, fmt.Errorf("account %s holds %s, expense is %s: %w",
				newAccount.ID, newAccount.Amount.StringFixed(2), upd.Amount.StringFixed(2), ErrInsufficientBalance)
		}
		if oldAccount == nil {
			plan.warn(CollectionAccounts, old.AccountID)
		} else {
			plan.write(CollectionAccounts, oldAccount.ID, oldAccount.Amount.Add(old.Amount))
		}
		if newAccount == nil {
			plan.warn(CollectionAccounts, upd.AccountID)
		} else {
			plan.write(CollectionAccounts, newAccount.ID, newAccount.Amount.Sub(upd.Amount))
		}
	}

	// Budget branch, independent of the account branch.
	if old.BudgetID == upd.BudgetID {
		if old.BudgetID != "" && !old.Amount.Equal(upd.Amount) {
			if oldBudget == nil {
				plan.warn(CollectionBudgets, old.BudgetID)
			} else {
				plan.write(CollectionBudgets, oldBudget.ID,
					oldBudget.Amount.Sub(upd.Amount.Sub(old.Amount)))
			}
		}
	} else {
		if old.BudgetID != "" {
			if oldBudget == nil {
				plan.warn(CollectionBudgets, old.BudgetID)
			} else {
				plan.write(CollectionBudgets, oldBudget.ID, oldBudget.Amount.Add(old.Amount))
			}
		}
		if upd.BudgetID != "" {
			if newBudget == nil {
				plan.warn(CollectionBudgets, upd.BudgetID)
			} else {
				plan.write(CollectionBudgets, newBudget.ID, newBudget.Amount.Sub(upd.Amount))
			}
		}
	}

	return plan, nil
}
