package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rating classifies how justified an expense was.
type Rating string

const (
	RatingNecessary    Rating = "necessary"
	RatingAvoidable    Rating = "avoidable"
	RatingNotNecessary Rating = "not-necessary"
)

// Collection names the persisted record collections.
type Collection string

const (
	CollectionAccounts   Collection = "accounts"
	CollectionBudgets    Collection = "budgets"
	CollectionDebts      Collection = "debts"
	CollectionCategories Collection = "categories"
	CollectionTypes      Collection = "types"
	CollectionIncomes    Collection = "incomes"
	CollectionExpenses   Collection = "expenses"
)

type (
	// Account holds a running balance. The balance is mutated only through
	// transaction propagation or a direct edit of the account itself.
	Account struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"createdTimestamp"`
		UpdatedAt   time.Time       `json:"updatedTimestamp"`
	}

	// Budget tracks a remaining allowance. Expenses assigned to it decrement
	// the amount; a budget is allowed to go negative.
	Budget struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"createdTimestamp"`
		UpdatedAt   time.Time       `json:"updatedTimestamp"`
	}

	// Debt is a standalone amount with no propagation to other entities.
	Debt struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"createdTimestamp"`
		UpdatedAt   time.Time       `json:"updatedTimestamp"`
	}

	// Category classifies expenses.
	Category struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Icon        string    `json:"icon"`
		Color       string    `json:"color"`
		CreatedAt   time.Time `json:"createdTimestamp"`
		UpdatedAt   time.Time `json:"updatedTimestamp"`
	}

	// Type is a free-standing classification with no enforced relation to
	// transactions.
	Type struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdTimestamp"`
		UpdatedAt   time.Time `json:"updatedTimestamp"`
	}

	// Income is money posted to an account. AccountID is a weak reference:
	// the account may have been deleted independently.
	Income struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		AccountID   string          `json:"accountId"`
		Description string          `json:"description"`
		ActionAt    time.Time       `json:"actionTimestamp"`
		CreatedAt   time.Time       `json:"createdTimestamp"`
		UpdatedAt   time.Time       `json:"updatedTimestamp"`
	}

	// Expense is money drawn from an account, classified by a category and
	// optionally charged against a budget (empty BudgetID means none). All
	// references are weak.
	Expense struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		AccountID   string          `json:"accountId"`
		CategoryID  string          `json:"category"`
		BudgetID    string          `json:"budget"`
		Rating      Rating          `json:"rating"`
		Description string          `json:"description"`
		ActionAt    time.Time       `json:"actionTimestamp"`
		CreatedAt   time.Time       `json:"createdTimestamp"`
		UpdatedAt   time.Time       `json:"updatedTimestamp"`
	}
)

var (
	ErrEmptyName      = errors.New("empty name")
	ErrNameTooLong    = errors.New("name too long (max 200 characters)")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidRating  = errors.New("invalid rating")
	ErrMissingAccount = errors.New("missing account reference")
	ErrZeroActionDate = errors.New("action date cannot be zero")
)

// NewID returns a fresh unique record identifier.
func NewID() string {
	return uuid.NewString()
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

func (a Account) Validate() error {
	return validateName(a.Name)
}

func (b Budget) Validate() error {
	return validateName(b.Name)
}

func (d Debt) Validate() error {
	return validateName(d.Name)
}

func (c Category) Validate() error {
	return validateName(c.Name)
}

func (t Type) Validate() error {
	return validateName(t.Name)
}

func (r Rating) Validate() error {
	switch r {
	case RatingNecessary, RatingAvoidable, RatingNotNecessary:
		return nil
	}
	return ErrInvalidRating
}

func (i Income) Validate() error {
	if err := validateName(i.Name); err != nil {
		return err
	}
	if i.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(i.AccountID) == "" {
		return ErrMissingAccount
	}
	if i.ActionAt.IsZero() {
		return ErrZeroActionDate
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateName(e.Name); err != nil {
		return err
	}
	if e.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.AccountID) == "" {
		return ErrMissingAccount
	}
	if err := e.Rating.Validate(); err != nil {
		return err
	}
	if e.ActionAt.IsZero() {
		return ErrZeroActionDate
	}
	return nil
}
