// Package worker mirrors the transaction collections to an external
// spreadsheet. Change events drive incremental appends; a periodic full
// rewrite recovers from missed events and worker downtime.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

// TransactionSource is what the worker reads from the store.
type TransactionSource interface {
	GetIncome(ctx context.Context, id string) (*core.Income, error)
	GetExpense(ctx context.Context, id string) (*core.Expense, error)
	ListIncomes(ctx context.Context) ([]core.Income, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

var backupHeader = []any{
	"type", "id", "name", "amount", "account_id", "category_id",
	"budget_id", "rating", "action_at", "op", "recorded_at",
}

type BackupWorker struct {
	store  TransactionSource
	mirror sheets.Mirror
}

func NewBackupWorker(store TransactionSource, mirror sheets.Mirror) *BackupWorker {
	return &BackupWorker{store: store, mirror: mirror}
}

// HandleEvent appends one row per transaction change. Events for other
// collections are acknowledged without action; the full backup pass covers
// everything the incremental rows miss.
func (w *BackupWorker) HandleEvent(ctx context.Context, ev *amqp.EntityEvent) error {
	switch core.Collection(ev.Collection) {
	case core.CollectionIncomes, core.CollectionExpenses:
	default:
		slog.DebugContext(ctx, "Ignoring non-transaction event",
			"collection", ev.Collection, "id", ev.ID, "op", ev.Op)
		return nil
	}

	row, err := w.eventRow(ctx, ev)
	if err != nil {
		return err
	}
	if err := w.mirror.Append(ctx, row); err != nil {
		return fmt.Errorf("append backup row: %w", err)
	}

	slog.InfoContext(ctx, "Backed up transaction change",
		"collection", ev.Collection, "id", ev.ID, "op", ev.Op)
	return nil
}

func (w *BackupWorker) eventRow(ctx context.Context, ev *amqp.EntityEvent) ([]any, error) {
	recordedAt := time.Now().Format(time.RFC3339)

	if ev.Op == amqp.OpDeleted {
		// The record is gone; a tombstone row preserves the fact.
		return []any{ev.Collection, ev.ID, "", "", "", "", "", "", "", ev.Op, recordedAt}, nil
	}

	switch core.Collection(ev.Collection) {
	case core.CollectionIncomes:
		inc, err := w.store.GetIncome(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("load income %s: %w", ev.ID, err)
		}
		if inc == nil {
			slog.WarnContext(ctx, "Income vanished before backup", "id", ev.ID)
			return []any{ev.Collection, ev.ID, "", "", "", "", "", "", "", ev.Op, recordedAt}, nil
		}
		return incomeRow(*inc, ev.Op, recordedAt), nil
	default:
		exp, err := w.store.GetExpense(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("load expense %s: %w", ev.ID, err)
		}
		if exp == nil {
			slog.WarnContext(ctx, "Expense vanished before backup", "id", ev.ID)
			return []any{ev.Collection, ev.ID, "", "", "", "", "", "", "", ev.Op, recordedAt}, nil
		}
		return expenseRow(*exp, ev.Op, recordedAt), nil
	}
}

func incomeRow(inc core.Income, op, recordedAt string) []any {
	return []any{
		string(core.CollectionIncomes), inc.ID, inc.Name, inc.Amount.StringFixed(2),
		inc.AccountID, "", "", "", inc.ActionAt.Format(time.RFC3339), op, recordedAt,
	}
}

func expenseRow(exp core.Expense, op, recordedAt string) []any {
	return []any{
		string(core.CollectionExpenses), exp.ID, exp.Name, exp.Amount.StringFixed(2),
		exp.AccountID, exp.CategoryID, exp.BudgetID, string(exp.Rating),
		exp.ActionAt.Format(time.RFC3339), op, recordedAt,
	}
}

// FullBackup rewrites the sheet with the complete transaction state.
func (w *BackupWorker) FullBackup(ctx context.Context) error {
	incomes, err := w.store.ListIncomes(ctx)
	if err != nil {
		return fmt.Errorf("list incomes: %w", err)
	}
	expenses, err := w.store.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	recordedAt := time.Now().Format(time.RFC3339)
	rows := make([][]any, 0, len(incomes)+len(expenses))
	for _, inc := range incomes {
		rows = append(rows, incomeRow(inc, "snapshot", recordedAt))
	}
	for _, exp := range expenses {
		rows = append(rows, expenseRow(exp, "snapshot", recordedAt))
	}

	if err := w.mirror.Replace(ctx, backupHeader, rows); err != nil {
		return fmt.Errorf("rewrite backup sheet: %w", err)
	}

	slog.InfoContext(ctx, "Full backup completed",
		"incomes", len(incomes), "expenses", len(expenses))
	return nil
}

// RunPeriodic runs a full backup immediately, then on every tick until ctx
// is cancelled. Failures are logged and retried on the next tick.
func (w *BackupWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := w.FullBackup(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup backup failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping periodic backup", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := w.FullBackup(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "error", err)
			}
		}
	}
}
