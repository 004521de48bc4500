// Package http serves the fincore JSON API: recurring definitions and their
// scheduler actions, manual transactions, budgets with derived status,
// categories and the monthly projection.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fincore/internal/core"
	applog "fincore/internal/log"
	"fincore/internal/middleware/ratelimit"
	"fincore/internal/middleware/security"
	"fincore/internal/middleware/trace"
	"fincore/internal/services"
)

const (
	readyTimeout = 2 * time.Second
	maxBodyBytes = 1 << 20
)

// CategoryInvalidator drops cached category lookups. The category cache
// remembers misses, so newly created ids must be forgotten.
type CategoryInvalidator interface {
	Forget(id string)
}

// Deps are the services behind the API.
type Deps struct {
	Scheduler    *services.Scheduler
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Projections  *services.ProjectionService
	// Ready reports whether the store answers; nil means always ready.
	Ready      func(ctx context.Context) error
	Categories CategoryInvalidator
}

// Config tunes the server.
type Config struct {
	Addr              string
	DefaultCurrency   string
	RequestsPerMinute int
	Logger            *applog.Logger
	// Now is the scheduler clock; nil uses time.Now.
	Now func() time.Time
}

// Server is the API server. Call Shutdown to stop it and its limiter.
type Server struct {
	http.Server

	deps            Deps
	logger          *applog.Logger
	limiter         *ratelimit.Limiter
	detector        *security.Detector
	tracer          *trace.Middleware
	defaultCurrency string
	now             func() time.Time
	shutdownOnce    sync.Once
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Logger == nil {
		cfg.Logger = applog.FromContext(context.Background())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "VND"
	}

	logger := cfg.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		deps:            deps,
		logger:          logger,
		limiter:         ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		detector:        detector,
		tracer:          trace.NewMiddleware(logger, detector.ExtractClientIP),
		defaultCurrency: core.NormalizeCurrency(cfg.DefaultCurrency),
		now:             cfg.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.rateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFrom)(h)
	h = applog.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	h = detector.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("POST /api/recurring/run", s.handleRunDue)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGetRecurring)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/recurring/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /api/recurring/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/recurring/{id}/tick", s.handleTick)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("GET /api/budgets/{id}/status", s.handleBudgetStatus)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	mux.HandleFunc("GET /api/projection", s.handleProjection)
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		m := s.tracer.GetMetrics()
		s.logger.Info("HTTP server stopped",
			"total_requests", m.TotalRequests,
			"server_failures", m.ServerFailures,
			"rate_limited", s.limiter.Rejected(),
			"tracked_clients", s.limiter.ActiveClients(),
			"suspicious_requests", s.detector.SuspiciousRequests())
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
