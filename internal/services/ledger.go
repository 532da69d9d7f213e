// Package services orchestrates the pure core engines against the entity
// store, the event publisher and the summary cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// ErrNotFound signals that the transaction being updated or deleted does
// not exist (distinct from a dangling weak reference inside it).
var ErrNotFound = errors.New("not found")

// LedgerService runs income/expense mutations end to end: reference
// lookups, propagation planning, the sequential writes, and the
// best-effort change event. Fatal propagation errors abort before any
// write; warnings are logged and handed back to the caller.
type LedgerService struct {
	store   LedgerStore
	events  EventPublisher     // may be nil
	summary SummaryInvalidator // may be nil
}

func NewLedger(store LedgerStore, events EventPublisher, summary SummaryInvalidator) *LedgerService {
	return &LedgerService{store: store, events: events, summary: summary}
}

// CreateIncome posts a new income. The referenced account must exist.
func (s *LedgerService) CreateIncome(ctx context.Context, inc core.Income) (core.Income, []core.Warning, error) {
	inc.Amount = core.Round2(inc.Amount)
	if err := inc.Validate(); err != nil {
		return core.Income{}, nil, err
	}

	account, err := s.store.GetAccount(ctx, inc.AccountID)
	if err != nil {
		return core.Income{}, nil, err
	}
	plan, err := core.IncomeCreated(account, inc)
	if err != nil {
		return core.Income{}, nil, err
	}

	now := time.Now()
	inc.ID = core.NewID()
	inc.CreatedAt = now
	inc.UpdatedAt = now

	if err := s.store.CreateIncome(ctx, inc); err != nil {
		return core.Income{}, nil, err
	}
	s.finish(ctx, core.CollectionIncomes, inc.ID, opCreated, plan, inc.ActionAt)
	return inc, plan.Warnings, nil
}

// UpdateIncome replaces an income and moves the balance difference. A
// missing account on either side is reported, not fatal.
func (s *LedgerService) UpdateIncome(ctx context.Context, upd core.Income) (core.Income, []core.Warning, error) {
	upd.Amount = core.Round2(upd.Amount)
	if err := upd.Validate(); err != nil {
		return core.Income{}, nil, err
	}

	old, err := s.store.GetIncome(ctx, upd.ID)
	if err != nil {
		return core.Income{}, nil, err
	}
	if old == nil {
		return core.Income{}, nil, fmt.Errorf("income %s: %w", upd.ID, ErrNotFound)
	}

	oldAccount, newAccount, err := s.accountPair(ctx, old.AccountID, upd.AccountID)
	if err != nil {
		return core.Income{}, nil, err
	}
	plan := core.IncomeUpdated(oldAccount, newAccount, *old, upd)

	upd.CreatedAt = old.CreatedAt
	upd.UpdatedAt = time.Now()
	if err := s.store.UpdateIncome(ctx, upd); err != nil {
		return core.Income{}, nil, err
	}
	s.finish(ctx, core.CollectionIncomes, upd.ID, opUpdated, plan, old.ActionAt, upd.ActionAt)
	return upd, plan.Warnings, nil
}

// DeleteIncome removes an income and reverses its effect. The record is
// removed even when its account has gone missing.
func (s *LedgerService) DeleteIncome(ctx context.Context, id string) ([]core.Warning, error) {
	old, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("income %s: %w", id, ErrNotFound)
	}

	account, err := s.store.GetAccount(ctx, old.AccountID)
	if err != nil {
		return nil, err
	}
	plan := core.IncomeDeleted(account, *old)

	if err := s.store.DeleteIncome(ctx, id); err != nil {
		return nil, err
	}
	s.finish(ctx, core.CollectionIncomes, id, opDeleted, plan, old.ActionAt)
	return plan.Warnings, nil
}

// CreateExpense charges a new expense. A missing account or an
// insufficient balance aborts before any write; a missing budget does not.
func (s *LedgerService) CreateExpense(ctx context.Context, exp core.Expense) (core.Expense, []core.Warning, error) {
	exp.Amount = core.Round2(exp.Amount)
	if err := exp.Validate(); err != nil {
		return core.Expense{}, nil, err
	}

	account, err := s.store.GetAccount(ctx, exp.AccountID)
	if err != nil {
		return core.Expense{}, nil, err
	}
	budget, err := s.optionalBudget(ctx, exp.BudgetID)
	if err != nil {
		return core.Expense{}, nil, err
	}
	plan, err := core.ExpenseCreated(account, budget, exp)
	if err != nil {
		return core.Expense{}, nil, err
	}

	now := time.Now()
	exp.ID = core.NewID()
	exp.CreatedAt = now
	exp.UpdatedAt = now

	if err := s.store.CreateExpense(ctx, exp); err != nil {
		return core.Expense{}, nil, err
	}
	s.finish(ctx, core.CollectionExpenses, exp.ID, opCreated, plan, exp.ActionAt)
	return exp, plan.Warnings, nil
}

// UpdateExpense replaces an expense, rebalancing account and budget with
// independent same-vs-changed branches.
func (s *LedgerService) UpdateExpense(ctx context.Context, upd core.Expense) (core.Expense, []core.Warning, error) {
	upd.Amount = core.Round2(upd.Amount)
	if err := upd.Validate(); err != nil {
		return core.Expense{}, nil, err
	}

	old, err := s.store.GetExpense(ctx, upd.ID)
	if err != nil {
		return core.Expense{}, nil, err
	}
	if old == nil {
		return core.Expense{}, nil, fmt.Errorf("expense %s: %w", upd.ID, ErrNotFound)
	}

	oldAccount, newAccount, err := s.accountPair(ctx, old.AccountID, upd.AccountID)
	if err != nil {
		return core.Expense{}, nil, err
	}
	oldBudget, err := s.optionalBudget(ctx, old.BudgetID)
	if err != nil {
		return core.Expense{}, nil, err
	}
	newBudget := oldBudget
	if old.BudgetID != upd.BudgetID {
		if newBudget, err = s.optionalBudget(ctx, upd.BudgetID); err != nil {
			return core.Expense{}, nil, err
		}
	}

	plan, err := core.ExpenseUpdated(oldAccount, newAccount, oldBudget, newBudget, *old, upd)
	if err != nil {
		return core.Expense{}, nil, err
	}

	upd.CreatedAt = old.CreatedAt
	upd.UpdatedAt = time.Now()
	if err := s.store.UpdateExpense(ctx, upd); err != nil {
		return core.Expense{}, nil, err
	}
	s.finish(ctx, core.CollectionExpenses, upd.ID, opUpdated, plan, old.ActionAt, upd.ActionAt)
	return upd, plan.Warnings, nil
}

// DeleteExpense removes an expense and refunds account and budget where
// they still exist.
func (s *LedgerService) DeleteExpense(ctx context.Context, id string) ([]core.Warning, error) {
	old, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}

	account, err := s.store.GetAccount(ctx, old.AccountID)
	if err != nil {
		return nil, err
	}
	budget, err := s.optionalBudget(ctx, old.BudgetID)
	if err != nil {
		return nil, err
	}
	plan := core.ExpenseDeleted(account, budget, *old)

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return nil, err
	}
	s.finish(ctx, core.CollectionExpenses, id, opDeleted, plan, old.ActionAt)
	return plan.Warnings, nil
}

const (
	opCreated = "created"
	opUpdated = "updated"
	opDeleted = "deleted"
)

func (s *LedgerService) accountPair(ctx context.Context, oldID, newID string) (*core.Account, *core.Account, error) {
	oldAccount, err := s.store.GetAccount(ctx, oldID)
	if err != nil {
		return nil, nil, err
	}
	if oldID == newID {
		return oldAccount, oldAccount, nil
	}
	newAccount, err := s.store.GetAccount(ctx, newID)
	if err != nil {
		return nil, nil, err
	}
	return oldAccount, newAccount, nil
}

func (s *LedgerService) optionalBudget(ctx context.Context, id string) (*core.Budget, error) {
	if id == "" {
		return nil, nil
	}
	return s.store.GetBudget(ctx, id)
}

// finish applies the balance writes, logs tolerated warnings, invalidates
// affected summary months and publishes the change event. The primary
// record is already written; nothing here fails the operation.
func (s *LedgerService) finish(ctx context.Context, collection core.Collection, id, op string, plan core.Plan, months ...time.Time) {
	if err := s.store.ApplyPlan(ctx, plan); err != nil {
		slog.ErrorContext(ctx, "Balance propagation incomplete",
			"collection", string(collection), "id", id, "op", op, "error", err)
	}
	for _, w := range plan.Warnings {
		slog.WarnContext(ctx, "Dangling reference tolerated",
			"collection", string(w.Collection), "id", w.ID, "op", op)
	}
	if s.summary != nil {
		for _, m := range months {
			s.summary.Invalidate(m.Year(), m.Month())
		}
	}
	if s.events != nil {
		if err := s.events.PublishEntityChange(ctx, collection, id, op); err != nil {
			slog.ErrorContext(ctx, "Failed to publish change event",
				"collection", string(collection), "id", id, "op", op, "error", err)
		}
	}
}
