// Package http exposes the JSON API: entity CRUD, the transaction ledger,
// the dashboard aggregates and the export surface.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bilancio/internal/core"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// Store is the entity persistence the CRUD handlers talk to directly.
// Transactions never go through here; they pass the ledger service so
// balance propagation runs.
type Store interface {
	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]core.Account, error)

	CreateBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, id string) (*core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id string) error
	ListBudgets(ctx context.Context) ([]core.Budget, error)

	CreateDebt(ctx context.Context, d core.Debt) error
	GetDebt(ctx context.Context, id string) (*core.Debt, error)
	UpdateDebt(ctx context.Context, d core.Debt) error
	DeleteDebt(ctx context.Context, id string) error
	ListDebts(ctx context.Context) ([]core.Debt, error)

	CreateCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, id string) (*core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]core.Category, error)

	CreateType(ctx context.Context, t core.Type) error
	GetType(ctx context.Context, id string) (*core.Type, error)
	UpdateType(ctx context.Context, t core.Type) error
	DeleteType(ctx context.Context, id string) error
	ListTypes(ctx context.Context) ([]core.Type, error)

	GetIncome(ctx context.Context, id string) (*core.Income, error)
	ListIncomes(ctx context.Context) ([]core.Income, error)
	GetExpense(ctx context.Context, id string) (*core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)

	Snapshot(ctx context.Context) (storage.Snapshot, error)
	Restore(ctx context.Context, snap storage.Snapshot) error
}

// Ledger runs transaction mutations with balance propagation.
type Ledger interface {
	CreateIncome(ctx context.Context, inc core.Income) (core.Income, []core.Warning, error)
	UpdateIncome(ctx context.Context, upd core.Income) (core.Income, []core.Warning, error)
	DeleteIncome(ctx context.Context, id string) ([]core.Warning, error)
	CreateExpense(ctx context.Context, exp core.Expense) (core.Expense, []core.Warning, error)
	UpdateExpense(ctx context.Context, upd core.Expense) (core.Expense, []core.Warning, error)
	DeleteExpense(ctx context.Context, id string) ([]core.Warning, error)
}

// Summaries serves the dashboard aggregates.
type Summaries interface {
	Month(ctx context.Context, year int, month time.Month) (core.MonthSummary, error)
	Months(ctx context.Context) ([]core.YearMonth, error)
	CleanExpired() int
}

type Server struct {
	http.Server
	store   Store
	ledger  Ledger
	summary Summaries
	events  services.EventPublisher // may be nil

	rateLimiter        *rateLimiter
	cacheCleanInterval time.Duration
	stopMaintenance    chan struct{}
	shutdownOnce       sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store Store, ledger Ledger, summary Summaries, events services.EventPublisher, cacheCleanInterval time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:              store,
		ledger:             ledger,
		summary:            summary,
		events:             events,
		rateLimiter:        newRateLimiter(),
		cacheCleanInterval: cacheCleanInterval,
		stopMaintenance:    make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.registerEntityRoutes(mux)
	s.registerLedgerRoutes(mux)
	s.registerDashboardRoutes(mux)
	s.registerExportRoutes(mux)

	handler := trace.Middleware(metricsMiddleware(s.withProtection(mux)))
	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.runMaintenance()
	return s
}

// withProtection applies rate limiting to mutating requests and sets the
// standard security headers on every response.
func (s *Server) withProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			clientIP := trace.ExtractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// runMaintenance periodically evicts expired summary cache entries.
func (s *Server) runMaintenance() {
	interval := s.cacheCleanInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.summary != nil {
				if n := s.summary.CleanExpired(); n > 0 {
					slog.Debug("Summary cache cleanup completed", "entries_removed", n)
				}
			}
		case <-s.stopMaintenance:
			return
		}
	}
}

// Shutdown stops the maintenance goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopMaintenance)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListAccounts(r.Context()); err != nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
