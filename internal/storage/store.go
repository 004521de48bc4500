// Package storage persists the ledger in SQLite or PostgreSQL through
// database/sql. Schema changes are applied with golang-migrate from the
// embedded migrations directory of each dialect.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fincore/internal/core"
	"fincore/internal/services"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements services.Store on a database/sql handle.
type SQLStore struct {
	queries
	db *sql.DB
}

var _ services.Store = (*SQLStore)(nil)

// Open connects to dsn, applies pending migrations and returns the store.
// For SQLite the dsn is a file path; its directory is created if missing.
func Open(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	if d.Name == SQLite.Name {
		dsn = sqliteDSN(dsn)
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name, err)
	}
	if d.maxOpenConns > 0 {
		db.SetMaxOpenConns(d.maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Database ready", "dialect", d.Name)
	return &SQLStore{queries: queries{db: db, d: d}, db: db}, nil
}

// sqliteDSN adds a busy timeout so concurrent workers wait for the write
// lock instead of failing with SQLITE_BUSY.
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

func sqliteDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return filepath.Dir(path)
}

func (s *SQLStore) Dialect() Dialect { return s.d }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithinTx runs fn in a database transaction, committing only when fn
// returns nil. On PostgreSQL, reads made through the Tx lock their rows.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx services.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(&queries{db: tx, d: s.d, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queries holds every statement; it runs on the pool or on an open tx.
type queries struct {
	db   querier
	d    Dialect
	inTx bool
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.d.Rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.d.Rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.Rebind(query), args...)
}

// lock returns the row-lock suffix for reads inside a transaction.
func (q *queries) lock() string {
	if q.inTx {
		return q.d.lockClause
	}
	return ""
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, services.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *queries) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	row := q.queryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`+q.lock(), id)
	rt, err := scanRecurring(row)
	if err != nil {
		return core.RecurringTransaction{}, notFound("recurring", id, err)
	}
	return rt, nil
}

func (q *queries) ListRecurring(ctx context.Context, f services.RecurringFilter) ([]core.RecurringTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if f.DueOn != nil {
		where = append(where, "next_run_date <= ?")
		args = append(args, dateArg(*f.DueOn))
	}
	rows, err := q.query(ctx, `SELECT `+recurringColumns+` FROM recurring_transactions`+
		whereClause(where)+` ORDER BY next_run_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	out, err := collect(rows, scanRecurring)
	if err != nil {
		return nil, fmt.Errorf("scan recurring: %w", err)
	}
	return out, nil
}

func (q *queries) CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	_, err := q.exec(ctx, `INSERT INTO recurring_transactions (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.AccountID, nullableString(rt.CategoryID), rt.Name, rt.Description, string(rt.Type),
		rt.Amount.Minor, rt.Amount.Currency, string(rt.Frequency),
		nullableInt(rt.Anchors.DayOfWeek), nullableInt(rt.Anchors.DayOfMonth), nullableInt(rt.Anchors.MonthOfYear),
		dateArg(rt.StartDate), nullableDate(rt.EndDate), rt.IsActive, rt.AutoCreate, dateArg(rt.NextRunDate),
		int64(1), timestampArg(rt.CreatedAt), timestampArg(rt.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert recurring %s: %w", rt.ID, err)
	}
	rt.Version = 1
	return nil
}

func (q *queries) UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	res, err := q.exec(ctx, `UPDATE recurring_transactions SET
			account_id = ?, category_id = ?, name = ?, description = ?, transaction_type = ?,
			amount_minor = ?, currency_code = ?, frequency = ?,
			day_of_week = ?, day_of_month = ?, month_of_year = ?,
			start_date = ?, end_date = ?, is_active = ?, auto_create = ?, next_run_date = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		rt.AccountID, nullableString(rt.CategoryID), rt.Name, rt.Description, string(rt.Type),
		rt.Amount.Minor, rt.Amount.Currency, string(rt.Frequency),
		nullableInt(rt.Anchors.DayOfWeek), nullableInt(rt.Anchors.DayOfMonth), nullableInt(rt.Anchors.MonthOfYear),
		dateArg(rt.StartDate), nullableDate(rt.EndDate), rt.IsActive, rt.AutoCreate, dateArg(rt.NextRunDate),
		timestampArg(rt.UpdatedAt), rt.ID, rt.Version)
	if err != nil {
		return fmt.Errorf("update recurring %s: %w", rt.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recurring %s: %w", rt.ID, err)
	}
	if n == 0 {
		var stored int64
		err := q.queryRow(ctx, `SELECT version FROM recurring_transactions WHERE id = ?`, rt.ID).Scan(&stored)
		if err != nil {
			return notFound("recurring", rt.ID, err)
		}
		return fmt.Errorf("recurring %s at version %d, stored %d: %w",
			rt.ID, rt.Version, stored, services.ErrConcurrentModification)
	}
	rt.Version++
	return nil
}

func (q *queries) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	_, err := q.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, nullableString(t.CategoryID), nullableString(t.RecurringTransactionID), string(t.Type),
		t.Amount.Minor, t.Amount.Currency, dateArg(t.TransactionDate), t.Description, t.Notes, string(t.Source),
		timestampArg(t.CreatedAt), SyncPending)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (q *queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := q.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound("transaction", id, err)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, f services.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if f.From != nil {
		add("transaction_date >= ?", dateArg(*f.From))
	}
	if f.To != nil {
		add("transaction_date <= ?", dateArg(*f.To))
	}
	if f.Type != "" {
		add("transaction_type = ?", string(f.Type))
	}
	if f.Currency != "" {
		add("currency_code = ?", f.Currency)
	}
	if f.CategoryID != nil {
		add("category_id = ?", *f.CategoryID)
	}
	if f.RecurringID != nil {
		add("recurring_transaction_id = ?", *f.RecurringID)
	}
	rows, err := q.query(ctx, `SELECT `+transactionColumns+` FROM transactions`+
		whereClause(where)+` ORDER BY transaction_date, created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return out, nil
}

func (q *queries) CreateBudget(ctx context.Context, b *core.Budget) error {
	_, err := q.exec(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Amount.Minor, b.Amount.Currency, string(b.PeriodType),
		dateArg(b.StartDate), dateArg(b.EndDate), nullableString(b.CategoryID), b.Rollover, b.IsActive)
	if err != nil {
		return fmt.Errorf("insert budget %s: %w", b.ID, err)
	}
	return nil
}

func (q *queries) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := q.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFound("budget", id, err)
	}
	return b, nil
}

func (q *queries) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := q.query(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out, err := collect(rows, scanBudget)
	if err != nil {
		return nil, fmt.Errorf("scan budgets: %w", err)
	}
	return out, nil
}

func (q *queries) CreateCategory(ctx context.Context, c *core.Category) error {
	_, err := q.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.IsPassive)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.ID, err)
	}
	return nil
}

func (q *queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := q.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	return c, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := collect(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return out, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
