package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

// SummaryService computes dashboard aggregates. Results are cached per
// month; the ledger service invalidates the affected months on every
// mutation, so stale reads are bounded by the TTL only when a write
// bypasses the service entirely.
type SummaryService struct {
	store SummaryStore
	cache *cache.LRUCache[core.MonthSummary]
}

func NewSummary(store SummaryStore) *SummaryService {
	return &SummaryService{
		store: store,
		cache: cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
	}
}

// Month returns the dashboard summary for one calendar month.
func (s *SummaryService) Month(ctx context.Context, year int, month time.Month) (core.MonthSummary, error) {
	key := summaryKey(year, month)
	if sum, ok := s.cache.Get(key); ok {
		slog.DebugContext(ctx, "Summary cache hit", "year", year, "month", int(month))
		return sum, nil
	}

	var (
		incomes    []core.Income
		expenses   []core.Expense
		categories []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		incomes, err = s.store.ListIncomes(gctx)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthSummary{}, err
	}

	sum := core.Summarize(incomes, expenses, categories, year, month)
	s.cache.Set(key, sum)
	return sum, nil
}

// Months lists the selectable dashboard months, oldest first.
func (s *SummaryService) Months(ctx context.Context) ([]core.YearMonth, error) {
	var (
		incomes  []core.Income
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		incomes, err = s.store.ListIncomes(gctx)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.MonthRange(incomes, expenses, time.Now()), nil
}

// Invalidate drops the cached summary for one month.
func (s *SummaryService) Invalidate(year int, month time.Month) {
	s.cache.Delete(summaryKey(year, month))
}

// CleanExpired is called periodically by the server.
func (s *SummaryService) CleanExpired() int {
	return s.cache.CleanExpired()
}

func summaryKey(year int, month time.Month) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(int(month))
}
