package http

import (
	"net/http"

	"bilancio/internal/core"
)

// Transaction responses carry the stored record plus any dangling-reference
// warnings the propagation tolerated, so the UI can surface them.
type incomeResponse struct {
	Income   core.Income   `json:"income"`
	Warnings []warningBody `json:"warnings,omitempty"`
}

type expenseResponse struct {
	Expense  core.Expense  `json:"expense"`
	Warnings []warningBody `json:"warnings,omitempty"`
}

type deleteResponse struct {
	Warnings []warningBody `json:"warnings,omitempty"`
}

func (s *Server) registerLedgerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/incomes", s.handleListIncomes)
	mux.HandleFunc("GET /api/incomes/{id}", s.handleGetIncome)
	mux.HandleFunc("POST /api/incomes", s.handleCreateIncome)
	mux.HandleFunc("PUT /api/incomes/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/incomes/{id}", s.handleDeleteIncome)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListIncomes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Income{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetIncome(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var body core.Income
	if !decodeJSON(w, r, &body) {
		return
	}
	inc, warnings, err := s.ledger.CreateIncome(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusCreated, incomeResponse{Income: inc, Warnings: warningBodies(warnings)})
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var body core.Income
	if !decodeJSON(w, r, &body) {
		return
	}
	body.ID = r.PathValue("id")
	inc, warnings, err := s.ledger.UpdateIncome(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusOK, incomeResponse{Income: inc, Warnings: warningBodies(warnings)})
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.ledger.DeleteIncome(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusOK, deleteResponse{Warnings: warningBodies(warnings)})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var body core.Expense
	if !decodeJSON(w, r, &body) {
		return
	}
	exp, warnings, err := s.ledger.CreateExpense(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusCreated, expenseResponse{Expense: exp, Warnings: warningBodies(warnings)})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var body core.Expense
	if !decodeJSON(w, r, &body) {
		return
	}
	body.ID = r.PathValue("id")
	exp, warnings, err := s.ledger.UpdateExpense(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusOK, expenseResponse{Expense: exp, Warnings: warningBodies(warnings)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.ledger.DeleteExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	countWarnings(warnings)
	writeJSON(w, http.StatusOK, deleteResponse{Warnings: warningBodies(warnings)})
}

func countWarnings(warnings []core.Warning) {
	if len(warnings) > 0 {
		propagationWarningsTotal.Add(float64(len(warnings)))
	}
}
