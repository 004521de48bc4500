package http

import (
	"net/http"
	"strconv"

	applog "fincore/internal/log"
	"fincore/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, applog.OpList, badRequest("active must be a boolean"))
			return
		}
		activeOnly = b
	}

	items, err := s.deps.Scheduler.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]recurringResponse, 0, len(items))
	for _, rt := range items {
		out = append(out, newRecurringResponse(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	rt, err := s.deps.Scheduler.CreateRecurring(r.Context(), in, s.now())
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/recurring/"+rt.ID)
	writeJSON(w, http.StatusCreated, newRecurringResponse(rt))
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := s.deps.Scheduler.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(rt))
}

// handleUpdateRecurring replaces the definition. Sending the version read
// earlier turns on the optimistic check; a stale version answers 409.
// Leaving out is_active keeps the stored paused state.
func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	in, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	upd := services.RecurringUpdate{Definition: in, Active: req.IsActive}
	rt, err := s.deps.Scheduler.UpdateRecurring(r.Context(), r.PathValue("id"), upd, s.now())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(rt))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	rt, err := s.deps.Scheduler.Pause(r.Context(), r.PathValue("id"), s.now())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(rt))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	rt, err := s.deps.Scheduler.Resume(r.Context(), r.PathValue("id"), s.now())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(rt))
}

// handleConfirm creates the single pending occurrence of a definition
// without auto_create.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Scheduler.ConfirmDue(r.Context(), r.PathValue("id"), s.now())
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(t))
}

// handleTick runs the scheduler for one definition. A failure after some
// occurrences were committed still reports them alongside the error.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Scheduler.Tick(r.Context(), r.PathValue("id"), s.now())
	if err != nil && len(out.Transactions) == 0 {
		writeError(w, r, applog.OpTick, err)
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Tick stopped after partial catch-up",
			applog.FieldRecurringID, out.RecurringID,
			"created", len(out.Transactions),
			applog.FieldError, err)
		writeJSON(w, http.StatusMultiStatus, newOutcomeResponse(out))
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeResponse(out))
}

func (s *Server) handleRunDue(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Scheduler.RunDue(r.Context(), s.now())
	if err != nil {
		writeError(w, r, applog.OpRunDue, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
