package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleSnapshot() storage.Snapshot {
	at := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)
	return storage.Snapshot{
		Accounts: []core.Account{
			{ID: "a1", Name: "Checking", Amount: dec("120.50"), CreatedAt: at, UpdatedAt: at},
		},
		Categories: []core.Category{
			{ID: "c1", Name: "Food", Color: "#ff0000", CreatedAt: at, UpdatedAt: at},
		},
		Expenses: []core.Expense{
			{
				ID: "e1", Name: "Groceries", Amount: dec("42.10"), AccountID: "a1",
				CategoryID: "c1", Rating: core.RatingNecessary,
				ActionAt: at, CreatedAt: at, UpdatedAt: at,
			},
		},
	}
}

func TestWriteCSVExpenses(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSnapshot(), core.CollectionExpenses); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1 record", len(rows))
	}
	if rows[0][2] != "amount" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "e1" || rows[1][2] != "42.10" || rows[1][6] != "necessary" {
		t.Fatalf("record = %v", rows[1])
	}
}

func TestWriteCSVAccountsRendersTwoDecimals(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSnapshot(), core.CollectionAccounts); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if !strings.Contains(buf.String(), "120.50") {
		t.Fatalf("expected fixed two-decimal amount, got:\n%s", buf.String())
	}
}

func TestWriteCSVUnknownCollection(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, storage.Snapshot{}, core.Collection("nope")); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	var buf bytes.Buffer
	if err := WriteSnapshotJSON(&buf, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	got, err := ReadSnapshotJSON(&buf)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(got.Accounts) != 1 || got.Accounts[0].ID != "a1" {
		t.Fatalf("accounts = %+v", got.Accounts)
	}
	if !got.Accounts[0].Amount.Equal(dec("120.50")) {
		t.Fatalf("amount = %s, want 120.50", got.Accounts[0].Amount)
	}
	if len(got.Expenses) != 1 || got.Expenses[0].Rating != core.RatingNecessary {
		t.Fatalf("expenses = %+v", got.Expenses)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local)
	if got := Filename(core.CollectionIncomes, now); got != "incomes-2024-03-05.csv" {
		t.Fatalf("Filename = %q", got)
	}
}
