package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func acct(id, amount string) *Account {
	return &Account{ID: id, Name: id, Amount: dec(amount)}
}

func budg(id, amount string) *Budget {
	return &Budget{ID: id, Name: id, Amount: dec(amount)}
}

func income(accountID, amount string) Income {
	return Income{ID: NewID(), Name: "salary", Amount: dec(amount), AccountID: accountID, ActionAt: time.Now()}
}

func expense(accountID, budgetID, amount string) Expense {
	return Expense{
		ID: NewID(), Name: "groceries", Amount: dec(amount),
		AccountID: accountID, CategoryID: "food", BudgetID: budgetID,
		Rating: RatingNecessary, ActionAt: time.Now(),
	}
}

func wantWrite(t *testing.T, plan Plan, c Collection, id, amount string) {
	t.Helper()
	for _, w := range plan.Writes {
		if w.Collection == c && w.ID == id {
			if !w.Amount.Equal(dec(amount)) {
				t.Fatalf("write %s/%s = %s, want %s", c, id, w.Amount, amount)
			}
			return
		}
	}
	t.Fatalf("no write for %s/%s in %+v", c, id, plan.Writes)
}

func TestIncomeCreated(t *testing.T) {
	plan, err := IncomeCreated(acct("a1", "50"), income("a1", "25.50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantWrite(t, plan, CollectionAccounts, "a1", "75.50")

	if _, err := IncomeCreated(nil, income("ghost", "10")); !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("missing account should be fatal, got %v", err)
	}
}

func TestIncomeDeletedMissingAccountIsNonFatal(t *testing.T) {
	plan := IncomeDeleted(nil, income("ghost", "25"))
	if len(plan.Writes) != 0 {
		t.Fatalf("expected no writes, got %+v", plan.Writes)
	}
	if len(plan.Warnings) != 1 || !errors.Is(plan.Warnings[0].Err, ErrReferenceNotFound) {
		t.Fatalf("expected a reference warning, got %+v", plan.Warnings)
	}

	plan = IncomeDeleted(acct("a1", "100"), income("a1", "25"))
	wantWrite(t, plan, CollectionAccounts, "a1", "75")
}

func TestIncomeUpdated(t *testing.T) {
	t.Run("same account, amount changed", func(t *testing.T) {
		a := acct("a1", "100")
		plan := IncomeUpdated(a, a, income("a1", "40"), income("a1", "60"))
		wantWrite(t, plan, CollectionAccounts, "a1", "120")
	})

	t.Run("same account, amount unchanged", func(t *testing.T) {
		a := acct("a1", "100")
		plan := IncomeUpdated(a, a, income("a1", "40"), income("a1", "40"))
		if len(plan.Writes) != 0 {
			t.Fatalf("expected no writes, got %+v", plan.Writes)
		}
	})

	t.Run("account changed", func(t *testing.T) {
		plan := IncomeUpdated(acct("a1", "100"), acct("a2", "10"), income("a1", "40"), income("a2", "55"))
		wantWrite(t, plan, CollectionAccounts, "a1", "60")
		wantWrite(t, plan, CollectionAccounts, "a2", "65")
	})

	t.Run("account changed, one side missing", func(t *testing.T) {
		plan := IncomeUpdated(nil, acct("a2", "10"), income("ghost", "40"), income("a2", "55"))
		wantWrite(t, plan, CollectionAccounts, "a2", "65")
		if len(plan.Warnings) != 1 {
			t.Fatalf("expected one warning, got %+v", plan.Warnings)
		}
	})
}

func TestExpenseCreated(t *testing.T) {
	t.Run("insufficient balance aborts", func(t *testing.T) {
		plan, err := ExpenseCreated(acct("a1", "50"), nil, expense("a1", "", "100"))
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("want ErrInsufficientBalance, got %v", err)
		}
		if len(plan.Writes) != 0 {
			t.Fatalf("failed create must not produce writes, got %+v", plan.Writes)
		}
	})

	t.Run("budget may go negative", func(t *testing.T) {
		plan, err := ExpenseCreated(acct("a1", "50"), budg("b1", "30"), expense("a1", "b1", "40"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "10")
		wantWrite(t, plan, CollectionBudgets, "b1", "-10")
	})

	t.Run("missing account is fatal", func(t *testing.T) {
		if _, err := ExpenseCreated(nil, nil, expense("ghost", "", "5")); !errors.Is(err, ErrReferenceNotFound) {
			t.Fatalf("want ErrReferenceNotFound, got %v", err)
		}
	})

	t.Run("missing budget is non-fatal", func(t *testing.T) {
		plan, err := ExpenseCreated(acct("a1", "50"), nil, expense("a1", "gone", "20"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "30")
		if len(plan.Warnings) != 1 || plan.Warnings[0].Collection != CollectionBudgets {
			t.Fatalf("expected a budget warning, got %+v", plan.Warnings)
		}
	})

	t.Run("exact balance is allowed", func(t *testing.T) {
		plan, err := ExpenseCreated(acct("a1", "50"), nil, expense("a1", "", "50"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "0")
	})
}

func TestExpenseDeleted(t *testing.T) {
	plan := ExpenseDeleted(acct("a1", "10"), budg("b1", "-10"), expense("a1", "b1", "40"))
	wantWrite(t, plan, CollectionAccounts, "a1", "50")
	wantWrite(t, plan, CollectionBudgets, "b1", "30")

	plan = ExpenseDeleted(nil, nil, expense("ghost", "gone", "40"))
	if len(plan.Writes) != 0 || len(plan.Warnings) != 2 {
		t.Fatalf("expected only warnings, got writes=%+v warnings=%+v", plan.Writes, plan.Warnings)
	}
}

func TestExpenseUpdated(t *testing.T) {
	t.Run("in-place increase hits the balance floor", func(t *testing.T) {
		// Account at 10 after a 40 charge: 10+40=50 cannot cover 60.
		a := acct("a1", "10")
		_, err := ExpenseUpdated(a, a, nil, nil, expense("a1", "", "40"), expense("a1", "", "60"))
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("want ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("in-place change applies the difference", func(t *testing.T) {
		a := acct("a1", "60")
		plan, err := ExpenseUpdated(a, a, nil, nil, expense("a1", "", "40"), expense("a1", "", "55"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "45")
	})

	t.Run("account changed reverses and recharges", func(t *testing.T) {
		plan, err := ExpenseUpdated(acct("a1", "60"), acct("a2", "100"), nil, nil,
			expense("a1", "", "40"), expense("a2", "", "70"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "100")
		wantWrite(t, plan, CollectionAccounts, "a2", "30")
	})

	t.Run("new account cannot cover the new amount", func(t *testing.T) {
		_, err := ExpenseUpdated(acct("a1", "60"), acct("a2", "5"), nil, nil,
			expense("a1", "", "40"), expense("a2", "", "70"))
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("want ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("budget branch runs independently", func(t *testing.T) {
		a := acct("a1", "100")
		plan, err := ExpenseUpdated(a, a, budg("b1", "50"), budg("b2", "20"),
			expense("a1", "b1", "40"), expense("a1", "b2", "40"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Same account, same amount: no account write. Budget moved.
		wantWrite(t, plan, CollectionBudgets, "b1", "90")
		wantWrite(t, plan, CollectionBudgets, "b2", "-20")
		for _, w := range plan.Writes {
			if w.Collection == CollectionAccounts {
				t.Fatalf("unexpected account write %+v", w)
			}
		}
	})

	t.Run("same budget amount change applies the difference", func(t *testing.T) {
		a := acct("a1", "100")
		b := budg("b1", "50")
		plan, err := ExpenseUpdated(a, a, b, b,
			expense("a1", "b1", "40"), expense("a1", "b1", "55"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionAccounts, "a1", "85")
		wantWrite(t, plan, CollectionBudgets, "b1", "35")
	})

	t.Run("budget dropped refunds the old budget", func(t *testing.T) {
		a := acct("a1", "100")
		plan, err := ExpenseUpdated(a, a, budg("b1", "0"), nil,
			expense("a1", "b1", "40"), expense("a1", "", "40"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantWrite(t, plan, CollectionBudgets, "b1", "40")
	})
}

// The oracle property: after any sequence of create/update/delete, an
// account balance equals its initial value plus live incomes minus live
// expenses, computed from the transactions alone.
func TestPropagationMatchesOracle(t *testing.T) {
	account := acct("a1", "1000")
	apply := func(plan Plan) {
		for _, w := range plan.Writes {
			if w.Collection == CollectionAccounts && w.ID == account.ID {
				account.Amount = w.Amount
			}
		}
	}

	liveIncomes := map[string]Income{}
	liveExpenses := map[string]Expense{}

	inc1 := income("a1", "250.25")
	plan, err := IncomeCreated(account, inc1)
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	apply(plan)
	liveIncomes[inc1.ID] = inc1

	exp1 := expense("a1", "", "100.10")
	plan, err = ExpenseCreated(account, nil, exp1)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	apply(plan)
	liveExpenses[exp1.ID] = exp1

	upd := exp1
	upd.Amount = dec("150.60")
	plan, err = ExpenseUpdated(account, account, nil, nil, exp1, upd)
	if err != nil {
		t.Fatalf("update expense: %v", err)
	}
	apply(plan)
	liveExpenses[upd.ID] = upd

	inc2 := income("a1", "19.99")
	plan, err = IncomeCreated(account, inc2)
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	apply(plan)
	liveIncomes[inc2.ID] = inc2

	apply(IncomeDeleted(account, inc1))
	delete(liveIncomes, inc1.ID)

	oracle := dec("1000")
	for _, i := range liveIncomes {
		oracle = oracle.Add(i.Amount)
	}
	for _, e := range liveExpenses {
		oracle = oracle.Sub(e.Amount)
	}
	if !account.Amount.Equal(Round2(oracle)) {
		t.Fatalf("balance %s diverged from oracle %s", account.Amount, oracle)
	}
}

// Amounts are rounded to 2 decimals at every write, so repeated awkward
// inputs never accumulate visible floating-point error.
func TestNoDriftOverManyPropagations(t *testing.T) {
	account := acct("a1", "0")
	exact := decimal.Zero
	for i := 0; i < 1000; i++ {
		inc := income("a1", "100.005")
		// Amounts are rounded at write time, before propagation sees them.
		inc.Amount = Round2(dec("100.005").Add(dec("0.001")))
		plan, err := IncomeCreated(account, inc)
		if err != nil {
			t.Fatalf("create income: %v", err)
		}
		account.Amount = plan.Writes[0].Amount
		exact = exact.Add(inc.Amount)
	}
	diff := account.Amount.Sub(exact).Abs()
	if diff.Cmp(dec("0.01")) >= 0 {
		t.Fatalf("accumulated drift %s >= 0.01", diff)
	}
}
