package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fincore/internal/core"
	applog "fincore/internal/log"
	"fincore/internal/recurrence"
)

// OutcomeKind classifies what a tick did.
type OutcomeKind string

const (
	OutcomeSkipped      OutcomeKind = "skipped"
	OutcomeNotDue       OutcomeKind = "not_due"
	OutcomeDue          OutcomeKind = "due"
	OutcomeMaterialized OutcomeKind = "materialized"
)

// SkipReason explains a skipped outcome.
type SkipReason string

const (
	SkipPaused SkipReason = "paused"
	SkipEnded  SkipReason = "ended"
)

// Outcome is the result of ticking one recurring definition. Skipped and
// due outcomes are normal results, not errors.
type Outcome struct {
	Kind         OutcomeKind
	Reason       SkipReason
	RecurringID  string
	NextRunDate  core.Date
	Transactions []core.Transaction
}

// RunReport summarizes a RunDue batch.
type RunReport struct {
	Checked      int      `json:"checked"`
	Materialized int      `json:"materialized"`
	Created      int      `json:"created"`
	Due          int      `json:"due"`
	Skipped      int      `json:"skipped"`
	NotDue       int      `json:"not_due"`
	Failed       int      `json:"failed"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
}

// SchedulerConfig tunes the scheduler.
type SchedulerConfig struct {
	// Concurrency bounds how many definitions RunDue ticks at once.
	Concurrency int
	// StrictAnchors rejects definitions missing the anchors their frequency uses.
	StrictAnchors bool
}

// Scheduler materializes due recurring definitions into transactions.
//
// Every occurrence is committed in its own store transaction together with
// the next_run_date advance, so a failure never leaves a transaction without
// its advance or the reverse. Work on one definition is serialized by an
// in-process lock; the store's version check catches writers in other
// processes.
type Scheduler struct {
	store     Store
	publisher Publisher
	cfg       SchedulerConfig
	locks     *keyedMutex
	logger    *applog.Logger
}

func NewScheduler(store Store, publisher Publisher, cfg SchedulerConfig) *Scheduler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		logger:    applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentScheduler}),
	}
}

// Tick evaluates one definition at now and catches up every missed period.
//
// Returns a partial Materialized outcome together with the error when an
// occurrence after the first one fails; the committed occurrences stay.
func (s *Scheduler) Tick(ctx context.Context, id string, now time.Time) (Outcome, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.tick(ctx, id, now)
}

func (s *Scheduler) tick(ctx context.Context, id string, now time.Time) (Outcome, error) {
	out := Outcome{RecurringID: id}
	for {
		var (
			stop    bool
			created core.Transaction
			current core.RecurringTransaction
		)
		err := s.store.WithinTx(ctx, func(tx Tx) error {
			rt, err := tx.GetRecurring(ctx, id)
			if err != nil {
				return storeErr("get recurring", err)
			}
			current = rt

			if kind, reason, due := classify(rt, now); !due || !rt.AutoCreate {
				stop = true
				if len(out.Transactions) == 0 {
					out.Kind, out.Reason = kind, reason
				}
				return nil
			}

			created, err = s.materialize(ctx, tx, &rt, now)
			if err != nil {
				return err
			}
			current = rt
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Recurring occurrence failed",
				applog.NewFields().WithRecurring(id, string(current.Frequency), current.NextRunDate.String()).WithError(err).ToSlice()...)
			if len(out.Transactions) > 0 {
				out.Kind = OutcomeMaterialized
			}
			return out, storeErr("tick "+id, err)
		}
		out.NextRunDate = current.NextRunDate

		if stop {
			if len(out.Transactions) > 0 {
				out.Kind, out.Reason = OutcomeMaterialized, ""
			}
			if out.Kind == OutcomeDue {
				s.announceDue(ctx, current)
			}
			return out, nil
		}

		out.Transactions = append(out.Transactions, created)
		s.announceCreated(ctx, created)
		s.logger.InfoContext(ctx, "Materialized recurring occurrence",
			applog.NewFields().
				WithRecurring(id, string(current.Frequency), current.NextRunDate.String()).
				WithAmount(created.Amount.Minor, created.Amount.Currency).
				ToSlice()...)
	}
}

// classify applies the tick preconditions in order: paused, ended, not due.
func classify(rt core.RecurringTransaction, now time.Time) (OutcomeKind, SkipReason, bool) {
	switch {
	case !rt.IsActive:
		return OutcomeSkipped, SkipPaused, false
	case rt.HasEnded(now):
		return OutcomeSkipped, SkipEnded, false
	case !rt.IsDue(now):
		return OutcomeNotDue, "", false
	}
	return OutcomeDue, "", true
}

// materialize writes one transaction dated rt.NextRunDate and advances rt
// by one period. Must run inside a store transaction.
func (s *Scheduler) materialize(ctx context.Context, tx Tx, rt *core.RecurringTransaction, now time.Time) (core.Transaction, error) {
	recurringID := rt.ID
	t := core.Transaction{
		ID:                     uuid.NewString(),
		AccountID:              rt.AccountID,
		CategoryID:             rt.CategoryID,
		RecurringTransactionID: &recurringID,
		Type:                   rt.Type,
		Amount:                 rt.Amount,
		TransactionDate:        rt.NextRunDate,
		Description:            rt.Name,
		Source:                 core.SourceRecurring,
		CreatedAt:              now.UTC(),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}

	next, err := recurrence.NextOccurrence(rt.Frequency, rt.Anchors, rt.NextRunDate)
	if err != nil {
		return core.Transaction{}, invalid(err)
	}

	if err := tx.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, storeErr("create transaction", err)
	}
	rt.NextRunDate = next
	rt.UpdatedAt = now.UTC()
	if err := tx.UpdateRecurring(ctx, rt); err != nil {
		return core.Transaction{}, storeErr("advance next_run_date", err)
	}
	return t, nil
}

func (s *Scheduler) announceCreated(ctx context.Context, t core.Transaction) {
	if err := s.publisher.PublishTransactionCreated(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			applog.FieldTransaction, t.ID, applog.FieldError, err)
	}
}

func (s *Scheduler) announceDue(ctx context.Context, rt core.RecurringTransaction) {
	if err := s.publisher.PublishRecurringDue(ctx, rt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish due notice",
			applog.FieldRecurringID, rt.ID, applog.FieldError, err)
	}
}

// RunDue ticks every active definition due at now. Definitions run in
// parallel up to the configured concurrency; a failing definition is
// counted and never stops the others.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) (RunReport, error) {
	today := core.DateOf(now)
	due, err := s.store.ListRecurring(ctx, RecurringFilter{ActiveOnly: true, DueOn: &today})
	if err != nil {
		return RunReport{}, storeErr("list due recurring", err)
	}

	s.logger.InfoContext(ctx, "Processing due recurring transactions",
		"total_due", len(due),
		"processing_date", today.String())

	var (
		mu     sync.Mutex
		report = RunReport{Checked: len(due)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, rt := range due {
		id := rt.ID
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, err := s.Tick(gctx, id, now)

			mu.Lock()
			defer mu.Unlock()
			report.Created += len(out.Transactions)
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, id)
				return nil
			}
			switch out.Kind {
			case OutcomeMaterialized:
				report.Materialized++
			case OutcomeDue:
				report.Due++
			case OutcomeSkipped:
				report.Skipped++
			case OutcomeNotDue:
				report.NotDue++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "Recurring processing complete",
		"checked", report.Checked,
		"materialized", report.Materialized,
		"created", report.Created,
		"due", report.Due,
		"failed", report.Failed)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Pause deactivates a definition. The scheduler skips it until resumed.
func (s *Scheduler) Pause(ctx context.Context, id string, now time.Time) (core.RecurringTransaction, error) {
	return s.setActive(ctx, id, false, now)
}

// Resume reactivates a definition. Missed periods are caught up by the
// next tick, not here.
func (s *Scheduler) Resume(ctx context.Context, id string, now time.Time) (core.RecurringTransaction, error) {
	return s.setActive(ctx, id, true, now)
}

func (s *Scheduler) setActive(ctx context.Context, id string, active bool, now time.Time) (core.RecurringTransaction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out core.RecurringTransaction
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		rt, err := tx.GetRecurring(ctx, id)
		if err != nil {
			return storeErr("get recurring", err)
		}
		if rt.IsActive == active {
			out = rt
			return nil
		}
		rt.IsActive = active
		rt.UpdatedAt = now.UTC()
		if err := tx.UpdateRecurring(ctx, &rt); err != nil {
			return storeErr("update recurring", err)
		}
		out = rt
		return nil
	})
	if err != nil {
		return core.RecurringTransaction{}, storeErr("set active", err)
	}
	return out, nil
}

// ConfirmDue is the manual path for definitions without auto_create: it
// creates exactly one transaction for the current next_run_date and
// advances once.
func (s *Scheduler) ConfirmDue(ctx context.Context, id string, now time.Time) (core.Transaction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var created core.Transaction
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		rt, err := tx.GetRecurring(ctx, id)
		if err != nil {
			return storeErr("get recurring", err)
		}
		if _, reason, due := classify(rt, now); !due {
			if reason != "" {
				return fmt.Errorf("%w: %s", ErrNotDue, reason)
			}
			return fmt.Errorf("%w: next run %s", ErrNotDue, rt.NextRunDate)
		}
		created, err = s.materialize(ctx, tx, &rt, now)
		return err
	})
	if err != nil {
		return core.Transaction{}, storeErr("confirm due", err)
	}
	s.announceCreated(ctx, created)
	return created, nil
}

// CreateRecurring validates and stores a new definition. Anchors are
// normalized from the start date and next_run_date is seeded with the first
// occurrence on or after the later of start date and today.
func (s *Scheduler) CreateRecurring(ctx context.Context, rt core.RecurringTransaction, now time.Time) (core.RecurringTransaction, error) {
	if err := s.prepare(&rt); err != nil {
		return core.RecurringTransaction{}, err
	}
	from := rt.StartDate
	if today := core.DateOf(now); today.After(from) {
		from = today
	}
	next, err := recurrence.FirstOccurrence(rt.Frequency, rt.Anchors, from)
	if err != nil {
		return core.RecurringTransaction{}, invalid(err)
	}
	rt.NextRunDate = next
	rt.ID = uuid.NewString()
	rt.CreatedAt = now.UTC()
	rt.UpdatedAt = rt.CreatedAt

	if err := s.store.CreateRecurring(ctx, &rt); err != nil {
		return core.RecurringTransaction{}, storeErr("create recurring", err)
	}
	s.logger.InfoContext(ctx, "Recurring transaction created",
		applog.NewFields().
			WithRecurring(rt.ID, string(rt.Frequency), rt.NextRunDate.String()).
			WithAmount(rt.Amount.Minor, rt.Amount.Currency).
			WithOperation(applog.OpCreate).
			ToSlice()...)
	return rt, nil
}

// RecurringUpdate is an edit of a stored definition. A nil Active keeps
// the stored paused state.
type RecurringUpdate struct {
	Definition core.RecurringTransaction
	Active     *bool
}

// UpdateRecurring replaces the editable fields of a definition. A non-zero
// Version must match the stored one. next_run_date is kept unless the
// frequency, anchors or start date changed; a reseed never lands on or
// before a date already materialized and keeps an overdue occurrence due.
func (s *Scheduler) UpdateRecurring(ctx context.Context, id string, upd RecurringUpdate, now time.Time) (core.RecurringTransaction, error) {
	in := upd.Definition
	if err := s.prepare(&in); err != nil {
		return core.RecurringTransaction{}, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var out core.RecurringTransaction
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.GetRecurring(ctx, id)
		if err != nil {
			return storeErr("get recurring", err)
		}
		if in.Version != 0 && in.Version != cur.Version {
			return fmt.Errorf("%w: version %d, stored %d", ErrConcurrentModification, in.Version, cur.Version)
		}
		in.ID = cur.ID
		in.Version = cur.Version
		in.CreatedAt = cur.CreatedAt
		in.UpdatedAt = now.UTC()
		in.IsActive = cur.IsActive
		if upd.Active != nil {
			in.IsActive = *upd.Active
		}
		if err := reseed(ctx, tx, cur, &in, now); err != nil {
			return err
		}
		if err := tx.UpdateRecurring(ctx, &in); err != nil {
			return storeErr("update recurring", err)
		}
		out = in
		return nil
	})
	if err != nil {
		return core.RecurringTransaction{}, storeErr("update recurring", err)
	}
	return out, nil
}

// reseed sets in.NextRunDate after an edit of cur.
func reseed(ctx context.Context, tx Tx, cur core.RecurringTransaction, in *core.RecurringTransaction, now time.Time) error {
	if sameSchedule(cur, *in) {
		in.NextRunDate = cur.NextRunDate
		return nil
	}

	from := cur.NextRunDate
	if today := core.DateOf(now); today.Before(from) {
		from = today
	}
	if in.StartDate.After(from) {
		from = in.StartDate
	}
	id := cur.ID
	done, err := tx.ListTransactions(ctx, TransactionFilter{From: &from, RecurringID: &id})
	if err != nil {
		return storeErr("list materialized", err)
	}
	for _, t := range done {
		if after := t.TransactionDate.AddDays(1); after.After(from) {
			from = after
		}
	}

	next, err := recurrence.FirstOccurrence(in.Frequency, in.Anchors, from)
	if err != nil {
		return invalid(err)
	}
	in.NextRunDate = next
	return nil
}

func sameSchedule(a, b core.RecurringTransaction) bool {
	return a.Frequency == b.Frequency &&
		a.StartDate.Equal(b.StartDate) &&
		sameAnchor(a.Anchors.DayOfWeek, b.Anchors.DayOfWeek) &&
		sameAnchor(a.Anchors.DayOfMonth, b.Anchors.DayOfMonth) &&
		sameAnchor(a.Anchors.MonthOfYear, b.Anchors.MonthOfYear)
}

func sameAnchor(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// prepare validates a definition and fills its anchors from the start date.
func (s *Scheduler) prepare(rt *core.RecurringTransaction) error {
	rt.Amount = core.NewMoney(rt.Amount.Minor, rt.Amount.Currency)
	if err := rt.Validate(); err != nil {
		return invalid(err)
	}
	if err := recurrence.ValidateAnchors(rt.Frequency, rt.Anchors, s.cfg.StrictAnchors); err != nil {
		return invalid(err)
	}
	rt.Anchors = recurrence.Normalize(rt.Frequency, rt.Anchors, rt.StartDate)
	return nil
}

// Get returns one definition.
func (s *Scheduler) Get(ctx context.Context, id string) (core.RecurringTransaction, error) {
	rt, err := s.store.GetRecurring(ctx, id)
	if err != nil {
		return core.RecurringTransaction{}, storeErr("get recurring", err)
	}
	return rt, nil
}

// List returns definitions, optionally only active ones.
func (s *Scheduler) List(ctx context.Context, activeOnly bool) ([]core.RecurringTransaction, error) {
	items, err := s.store.ListRecurring(ctx, RecurringFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, storeErr("list recurring", err)
	}
	return items, nil
}

// keyedMutex hands out one mutex per key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
