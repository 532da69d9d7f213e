package http

import (
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/export"
)

func (s *Server) registerExportRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /export/csv", s.handleExportCSV)
	mux.HandleFunc("GET /export/snapshot", s.handleExportSnapshot)
	mux.HandleFunc("POST /import/snapshot", s.handleImportSnapshot)
}

var exportableCollections = map[core.Collection]bool{
	core.CollectionAccounts:   true,
	core.CollectionBudgets:    true,
	core.CollectionDebts:      true,
	core.CollectionCategories: true,
	core.CollectionTypes:      true,
	core.CollectionIncomes:    true,
	core.CollectionExpenses:   true,
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	collection := core.Collection(r.URL.Query().Get("collection"))
	if collection == "" {
		collection = core.CollectionExpenses
	}
	if !exportableCollections[collection] {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown collection"})
		return
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(collection, time.Now())+`"`)
	if err := export.WriteCSV(w, snap, collection); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed",
			"collection", string(collection), "error", err)
	}
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bilancio-snapshot.json"`)
	if err := export.WriteSnapshotJSON(w, snap); err != nil {
		slog.ErrorContext(r.Context(), "Snapshot export failed", "error", err)
	}
}

// handleImportSnapshot restores a previously exported snapshot. The store
// rejects records whose ids already exist, so importing is only meaningful
// into a fresh database.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20) // snapshots can be large
	snap, err := export.ReadSnapshotJSON(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid snapshot"})
		return
	}
	if err := s.store.Restore(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"accounts":   len(snap.Accounts),
		"budgets":    len(snap.Budgets),
		"debts":      len(snap.Debts),
		"categories": len(snap.Categories),
		"types":      len(snap.Types),
		"incomes":    len(snap.Incomes),
		"expenses":   len(snap.Expenses),
	})
}
