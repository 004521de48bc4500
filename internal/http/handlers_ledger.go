package http

import (
	"net/http"
	"strings"

	"fincore/internal/core"
	applog "fincore/internal/log"
	"fincore/internal/services"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	now := s.now()
	in, err := req.toDomain(s.defaultCurrency, core.DateOf(now))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	t, err := s.deps.Transactions.Create(r.Context(), in, now)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+t.ID)
	writeJSON(w, http.StatusCreated, newTransactionResponse(t))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	items, err := s.deps.Transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponses(items))
}

// parseTransactionFilter reads from, to, type, category_id, currency and
// recurring_id. Dates are inclusive YYYY-MM-DD.
func parseTransactionFilter(r *http.Request) (services.TransactionFilter, error) {
	q := r.URL.Query()
	var f services.TransactionFilter

	for key, dst := range map[string]**core.Date{"from": &f.From, "to": &f.To} {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return f, badRequest("%s must be YYYY-MM-DD", key)
		}
		*dst = &d
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, badRequest("to must not be before from")
	}

	if v := q.Get("type"); v != "" {
		f.Type = core.TransactionType(v)
		if !f.Type.IsValid() {
			return f, badRequest("unknown transaction type %q", v)
		}
	}
	if v := strings.TrimSpace(q.Get("category_id")); v != "" {
		f.CategoryID = &v
	}
	if v := strings.TrimSpace(q.Get("recurring_id")); v != "" {
		f.RecurringID = &v
	}
	f.Currency = core.NormalizeCurrency(q.Get("currency"))
	return f, nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Budgets.List(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]budgetResponse, 0, len(items))
	for _, b := range items {
		out = append(out, newBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateBudget stores a budget. Calendar period types without dates
// get the period containing today.
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	b, err := s.deps.Budgets.Create(r.Context(), in, core.DateOf(s.now()))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/budgets/"+b.ID)
	writeJSON(w, http.StatusCreated, newBudgetResponse(b))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Budgets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Budgets.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Projections.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]categoryResponse, 0, len(items))
	for _, c := range items {
		out = append(out, newCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	c, err := s.deps.Projections.CreateCategory(r.Context(), core.Category{
		Name:      strings.TrimSpace(req.Name),
		Type:      core.CategoryType(req.Type),
		IsPassive: req.IsPassive,
	})
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if s.deps.Categories != nil {
		s.deps.Categories.Forget(c.ID)
	}
	writeJSON(w, http.StatusCreated, newCategoryResponse(c))
}

// handleProjection projects active definitions in ?currency, defaulting to
// the configured currency.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	currency := core.NormalizeCurrency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = s.defaultCurrency
	}
	p, err := s.deps.Projections.Project(r.Context(), currency)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
