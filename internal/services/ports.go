package services

import (
	"context"
	"time"

	"bilancio/internal/core"
)

// LedgerStore is what the ledger service needs from the entity store.
// Get* methods return nil without error for a missing id: absence of a
// weak reference is data, not a failure.
type LedgerStore interface {
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	GetBudget(ctx context.Context, id string) (*core.Budget, error)

	CreateIncome(ctx context.Context, i core.Income) error
	GetIncome(ctx context.Context, id string) (*core.Income, error)
	UpdateIncome(ctx context.Context, i core.Income) error
	DeleteIncome(ctx context.Context, id string) error

	CreateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, id string) (*core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error

	ApplyPlan(ctx context.Context, plan core.Plan) error
}

// SummaryStore is what the summary service reads for aggregation.
type SummaryStore interface {
	ListIncomes(ctx context.Context) ([]core.Income, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// EventPublisher announces committed mutations to external subscribers.
type EventPublisher interface {
	PublishEntityChange(ctx context.Context, collection core.Collection, id, op string) error
}

// SummaryInvalidator drops cached summaries for a month whose underlying
// records changed.
type SummaryInvalidator interface {
	Invalidate(year int, month time.Month)
}
