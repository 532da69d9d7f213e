package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

type fakeSource struct {
	incomes  map[string]core.Income
	expenses map[string]core.Expense
}

func (f *fakeSource) GetIncome(_ context.Context, id string) (*core.Income, error) {
	if i, ok := f.incomes[id]; ok {
		return &i, nil
	}
	return nil, nil
}

func (f *fakeSource) GetExpense(_ context.Context, id string) (*core.Expense, error) {
	if e, ok := f.expenses[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (f *fakeSource) ListIncomes(_ context.Context) ([]core.Income, error) {
	var out []core.Income
	for _, i := range f.incomes {
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeSource) ListExpenses(_ context.Context) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		out = append(out, e)
	}
	return out, nil
}

type fakeMirror struct {
	appended [][]any
	header   []any
	replaced [][]any
	replaces int
}

func (m *fakeMirror) Append(_ context.Context, row []any) error {
	m.appended = append(m.appended, row)
	return nil
}

func (m *fakeMirror) Replace(_ context.Context, header []any, rows [][]any) error {
	m.header = header
	m.replaced = rows
	m.replaces++
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHandleEventAppendsIncomeRow(t *testing.T) {
	at := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)
	source := &fakeSource{
		incomes: map[string]core.Income{
			"i1": {ID: "i1", Name: "Salary", Amount: dec("1000"), AccountID: "a1", ActionAt: at},
		},
	}
	mirror := &fakeMirror{}
	w := NewBackupWorker(source, mirror)

	ev := amqp.NewEntityEvent(core.CollectionIncomes, "i1", amqp.OpCreated)
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(mirror.appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(mirror.appended))
	}
	row := mirror.appended[0]
	if row[0] != "incomes" || row[1] != "i1" || row[3] != "1000.00" {
		t.Fatalf("row = %v", row)
	}
}

func TestHandleEventDeleteWritesTombstone(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewBackupWorker(&fakeSource{}, mirror)

	ev := amqp.NewEntityEvent(core.CollectionExpenses, "e1", amqp.OpDeleted)
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(mirror.appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(mirror.appended))
	}
	row := mirror.appended[0]
	if row[1] != "e1" || row[9] != amqp.OpDeleted {
		t.Fatalf("row = %v", row)
	}
}

func TestHandleEventIgnoresOtherCollections(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewBackupWorker(&fakeSource{}, mirror)

	ev := amqp.NewEntityEvent(core.CollectionCategories, "c1", amqp.OpUpdated)
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(mirror.appended) != 0 {
		t.Fatalf("appended %d rows, want 0", len(mirror.appended))
	}
}

func TestFullBackup(t *testing.T) {
	at := time.Now()
	source := &fakeSource{
		incomes: map[string]core.Income{
			"i1": {ID: "i1", Name: "Salary", Amount: dec("1000"), AccountID: "a1", ActionAt: at},
		},
		expenses: map[string]core.Expense{
			"e1": {ID: "e1", Name: "Rent", Amount: dec("600.50"), AccountID: "a1", CategoryID: "housing", Rating: core.RatingNecessary, ActionAt: at},
		},
	}
	mirror := &fakeMirror{}
	w := NewBackupWorker(source, mirror)

	if err := w.FullBackup(context.Background()); err != nil {
		t.Fatalf("full backup: %v", err)
	}
	if mirror.replaces != 1 {
		t.Fatalf("replaces = %d, want 1", mirror.replaces)
	}
	if len(mirror.header) == 0 || mirror.header[0] != "type" {
		t.Fatalf("header = %v", mirror.header)
	}
	if len(mirror.replaced) != 2 {
		t.Fatalf("rows = %d, want 2", len(mirror.replaced))
	}
}
