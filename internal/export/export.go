// Package export renders store contents for download: per-collection CSV
// for spreadsheets and a JSON snapshot for full backup and restore.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// WriteCSV writes one collection of the snapshot as CSV with a header row.
// Amounts are rendered with two decimals, timestamps in RFC 3339.
func WriteCSV(w io.Writer, snap storage.Snapshot, collection core.Collection) error {
	cw := csv.NewWriter(w)

	switch collection {
	case core.CollectionAccounts:
		writeBalanceRows(cw, accountRows(snap.Accounts))
	case core.CollectionBudgets:
		writeBalanceRows(cw, budgetRows(snap.Budgets))
	case core.CollectionDebts:
		writeBalanceRows(cw, debtRows(snap.Debts))
	case core.CollectionCategories:
		_ = cw.Write([]string{"id", "name", "description", "icon", "color", "created_at"})
		for _, c := range snap.Categories {
			_ = cw.Write([]string{c.ID, c.Name, c.Description, c.Icon, c.Color, stamp(c.CreatedAt)})
		}
	case core.CollectionTypes:
		_ = cw.Write([]string{"id", "name", "description", "created_at"})
		for _, t := range snap.Types {
			_ = cw.Write([]string{t.ID, t.Name, t.Description, stamp(t.CreatedAt)})
		}
	case core.CollectionIncomes:
		_ = cw.Write([]string{"id", "name", "amount", "account_id", "description", "action_at", "created_at"})
		for _, i := range snap.Incomes {
			_ = cw.Write([]string{
				i.ID, i.Name, i.Amount.StringFixed(2), i.AccountID,
				i.Description, stamp(i.ActionAt), stamp(i.CreatedAt),
			})
		}
	case core.CollectionExpenses:
		_ = cw.Write([]string{"id", "name", "amount", "account_id", "category_id", "budget_id", "rating", "description", "action_at", "created_at"})
		for _, e := range snap.Expenses {
			_ = cw.Write([]string{
				e.ID, e.Name, e.Amount.StringFixed(2), e.AccountID, e.CategoryID,
				e.BudgetID, string(e.Rating), e.Description, stamp(e.ActionAt), stamp(e.CreatedAt),
			})
		}
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}

	cw.Flush()
	return cw.Error()
}

type balanceRow struct {
	id, name, amount, description, createdAt string
}

func writeBalanceRows(cw *csv.Writer, rows []balanceRow) {
	_ = cw.Write([]string{"id", "name", "amount", "description", "created_at"})
	for _, r := range rows {
		_ = cw.Write([]string{r.id, r.name, r.amount, r.description, r.createdAt})
	}
}

func accountRows(accounts []core.Account) []balanceRow {
	out := make([]balanceRow, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, balanceRow{a.ID, a.Name, a.Amount.StringFixed(2), a.Description, stamp(a.CreatedAt)})
	}
	return out
}

func budgetRows(budgets []core.Budget) []balanceRow {
	out := make([]balanceRow, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, balanceRow{b.ID, b.Name, b.Amount.StringFixed(2), b.Description, stamp(b.CreatedAt)})
	}
	return out
}

func debtRows(debts []core.Debt) []balanceRow {
	out := make([]balanceRow, 0, len(debts))
	for _, d := range debts {
		out = append(out, balanceRow{d.ID, d.Name, d.Amount.StringFixed(2), d.Description, stamp(d.CreatedAt)})
	}
	return out
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteSnapshotJSON streams the full snapshot as indented JSON.
func WriteSnapshotJSON(w io.Writer, snap storage.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadSnapshotJSON parses a snapshot previously produced by
// WriteSnapshotJSON.
func ReadSnapshotJSON(r io.Reader) (storage.Snapshot, error) {
	var snap storage.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return storage.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Filename suggests a download name for one collection export.
func Filename(collection core.Collection, now time.Time) string {
	return fmt.Sprintf("%s-%s.csv", collection, now.Format("2006-01-02"))
}
