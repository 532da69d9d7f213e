package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/core"
)

// resource binds one entity collection to its store operations. The
// closures keep the per-entity differences (id assignment, timestamp
// handling, normalization) out of the shared handler code.
type resource[T any] struct {
	collection core.Collection

	list   func(context.Context) ([]T, error)
	get    func(context.Context, string) (*T, error)
	create func(context.Context, T) error
	update func(context.Context, T) error
	remove func(context.Context, string) error

	validate func(T) error
	id       func(T) string
	// onCreate assigns the id and both timestamps.
	onCreate func(*T, string, time.Time)
	// onUpdate pins the id, preserves CreatedAt from the stored record and
	// refreshes UpdatedAt.
	onUpdate func(*T, string, T, time.Time)
}

func (s *Server) registerEntityRoutes(mux *http.ServeMux) {
	registerResource(mux, s, resource[core.Account]{
		collection: core.CollectionAccounts,
		list:       s.store.ListAccounts,
		get:        s.store.GetAccount,
		create:     s.store.CreateAccount,
		update:     s.store.UpdateAccount,
		remove:     s.store.DeleteAccount,
		validate:   core.Account.Validate,
		id:         func(a core.Account) string { return a.ID },
		onCreate: func(a *core.Account, id string, now time.Time) {
			a.ID, a.Amount, a.CreatedAt, a.UpdatedAt = id, core.Round2(a.Amount), now, now
		},
		onUpdate: func(a *core.Account, id string, old core.Account, now time.Time) {
			a.ID, a.Amount, a.CreatedAt, a.UpdatedAt = id, core.Round2(a.Amount), old.CreatedAt, now
		},
	})

	registerResource(mux, s, resource[core.Budget]{
		collection: core.CollectionBudgets,
		list:       s.store.ListBudgets,
		get:        s.store.GetBudget,
		create:     s.store.CreateBudget,
		update:     s.store.UpdateBudget,
		remove:     s.store.DeleteBudget,
		validate:   core.Budget.Validate,
		id:         func(b core.Budget) string { return b.ID },
		onCreate: func(b *core.Budget, id string, now time.Time) {
			b.ID, b.Amount, b.CreatedAt, b.UpdatedAt = id, core.Round2(b.Amount), now, now
		},
		onUpdate: func(b *core.Budget, id string, old core.Budget, now time.Time) {
			b.ID, b.Amount, b.CreatedAt, b.UpdatedAt = id, core.Round2(b.Amount), old.CreatedAt, now
		},
	})

	registerResource(mux, s, resource[core.Debt]{
		collection: core.CollectionDebts,
		list:       s.store.ListDebts,
		get:        s.store.GetDebt,
		create:     s.store.CreateDebt,
		update:     s.store.UpdateDebt,
		remove:     s.store.DeleteDebt,
		validate:   core.Debt.Validate,
		id:         func(d core.Debt) string { return d.ID },
		onCreate: func(d *core.Debt, id string, now time.Time) {
			d.ID, d.Amount, d.CreatedAt, d.UpdatedAt = id, core.Round2(d.Amount), now, now
		},
		onUpdate: func(d *core.Debt, id string, old core.Debt, now time.Time) {
			d.ID, d.Amount, d.CreatedAt, d.UpdatedAt = id, core.Round2(d.Amount), old.CreatedAt, now
		},
	})

	registerResource(mux, s, resource[core.Category]{
		collection: core.CollectionCategories,
		list:       s.store.ListCategories,
		get:        s.store.GetCategory,
		create:     s.store.CreateCategory,
		update:     s.store.UpdateCategory,
		remove:     s.store.DeleteCategory,
		validate:   core.Category.Validate,
		id:         func(c core.Category) string { return c.ID },
		onCreate: func(c *core.Category, id string, now time.Time) {
			c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
		},
		onUpdate: func(c *core.Category, id string, old core.Category, now time.Time) {
			c.ID, c.CreatedAt, c.UpdatedAt = id, old.CreatedAt, now
		},
	})

	registerResource(mux, s, resource[core.Type]{
		collection: core.CollectionTypes,
		list:       s.store.ListTypes,
		get:        s.store.GetType,
		create:     s.store.CreateType,
		update:     s.store.UpdateType,
		remove:     s.store.DeleteType,
		validate:   core.Type.Validate,
		id:         func(t core.Type) string { return t.ID },
		onCreate: func(t *core.Type, id string, now time.Time) {
			t.ID, t.CreatedAt, t.UpdatedAt = id, now, now
		},
		onUpdate: func(t *core.Type, id string, old core.Type, now time.Time) {
			t.ID, t.CreatedAt, t.UpdatedAt = id, old.CreatedAt, now
		},
	})
}

func registerResource[T any](mux *http.ServeMux, s *Server, res resource[T]) {
	base := "/api/" + string(res.collection)

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		items, err := res.list(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	})

	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		item, err := res.get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if item == nil {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var body T
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := res.validate(body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		res.onCreate(&body, core.NewID(), time.Now())
		if err := res.create(r.Context(), body); err != nil {
			writeError(w, r, err)
			return
		}
		s.publishChange(r.Context(), res.collection, res.id(body), "created")
		writeJSON(w, http.StatusCreated, body)
	})

	mux.HandleFunc("PUT "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		old, err := res.get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if old == nil {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		var body T
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := res.validate(body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		res.onUpdate(&body, id, *old, time.Now())
		if err := res.update(r.Context(), body); err != nil {
			writeError(w, r, err)
			return
		}
		s.publishChange(r.Context(), res.collection, id, "updated")
		writeJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := res.remove(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		s.publishChange(r.Context(), res.collection, id, "deleted")
		writeJSON(w, http.StatusNoContent, nil)
	})
}

func (s *Server) publishChange(ctx context.Context, collection core.Collection, id, op string) {
	if s.events == nil || id == "" {
		return
	}
	if err := s.events.PublishEntityChange(ctx, collection, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"collection", string(collection), "id", id, "op", op, "error", err)
	}
}
