package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Fallback presentation for expenses whose category id no longer resolves.
const (
	FallbackCategoryName  = "Uncategorized"
	FallbackCategoryColor = "#9e9e9e"
)

// RecentLimit caps the recent-expenses list on the dashboard.
const RecentLimit = 10

// CategoryTotal is one slice of the expense-by-category breakdown.
type CategoryTotal struct {
	CategoryID string          `json:"categoryId"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Amount     decimal.Decimal `json:"amount"`
}

// MonthSummary carries everything the dashboard shows for one month.
type MonthSummary struct {
	Year         int             `json:"year"`
	Month        time.Month      `json:"month"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
	ByCategory   []CategoryTotal `json:"expenseByCategory"`
	Recent       []Expense       `json:"recentExpenses"`
}

// YearMonth identifies one selectable dashboard month.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthBounds returns the inclusive [start, end] of a calendar month in
// local time. End is the last representable millisecond of the month,
// matching the stored timestamp resolution.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start, end
}

func inMonth(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

// Summarize computes the dashboard figures for one month from the full
// income/expense collections. Expenses whose category id does not resolve
// are grouped under a fallback label and color.
func Summarize(incomes []Income, expenses []Expense, categories []Category, year int, month time.Month) MonthSummary {
	start, end := MonthBounds(year, month)

	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	sum := MonthSummary{
		Year:         year,
		Month:        month,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}

	for _, inc := range incomes {
		if inMonth(inc.ActionAt, start, end) {
			sum.TotalIncome = sum.TotalIncome.Add(inc.Amount)
		}
	}

	perCategory := make(map[string]decimal.Decimal)
	var filtered []Expense
	for _, exp := range expenses {
		if !inMonth(exp.ActionAt, start, end) {
			continue
		}
		filtered = append(filtered, exp)
		sum.TotalExpense = sum.TotalExpense.Add(exp.Amount)
		perCategory[exp.CategoryID] = perCategory[exp.CategoryID].Add(exp.Amount)
	}

	sum.TotalIncome = Round2(sum.TotalIncome)
	sum.TotalExpense = Round2(sum.TotalExpense)
	sum.Balance = sum.TotalIncome.Sub(sum.TotalExpense)

	for id, total := range perCategory {
		ct := CategoryTotal{
			CategoryID: id,
			Name:       FallbackCategoryName,
			Color:      FallbackCategoryColor,
			Amount:     Round2(total),
		}
		if cat, ok := byID[id]; ok {
			ct.Name = cat.Name
			ct.Color = cat.Color
		}
		sum.ByCategory = append(sum.ByCategory, ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		if !sum.ByCategory[i].Amount.Equal(sum.ByCategory[j].Amount) {
			return sum.ByCategory[i].Amount.GreaterThan(sum.ByCategory[j].Amount)
		}
		return sum.ByCategory[i].Name < sum.ByCategory[j].Name
	})

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ActionAt.After(filtered[j].ActionAt)
	})
	if len(filtered) > RecentLimit {
		filtered = filtered[:RecentLimit]
	}
	sum.Recent = filtered

	return sum
}

// MonthRange lists the selectable months: from the calendar month of the
// oldest transaction through the month of now, inclusive. With no records
// the range is just the current month.
func MonthRange(incomes []Income, expenses []Expense, now time.Time) []YearMonth {
	var oldest time.Time
	for _, inc := range incomes {
		if oldest.IsZero() || inc.ActionAt.Before(oldest) {
			oldest = inc.ActionAt
		}
	}
	for _, exp := range expenses {
		if oldest.IsZero() || exp.ActionAt.Before(oldest) {
			oldest = exp.ActionAt
		}
	}
	if oldest.IsZero() || oldest.After(now) {
		oldest = now
	}

	cur := time.Date(oldest.Year(), oldest.Month(), 1, 0, 0, 0, 0, time.Local)
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	var months []YearMonth
	for !cur.After(last) {
		months = append(months, YearMonth{Year: cur.Year(), Month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
