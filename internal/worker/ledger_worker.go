// Package worker mirrors stored transactions into the ledger spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fincore/internal/amqp"
	"fincore/internal/core"
	"fincore/internal/services"
	"fincore/internal/sheets"
)

// SyncStore is the part of the store the worker reads and updates. Every
// created transaction starts pending; the worker moves it to synced or error.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// CategoryNamer resolves a category id to its display name.
type CategoryNamer interface {
	Name(ctx context.Context, id *string) string
}

// LedgerWorker exports transactions to a sheets.TransactionWriter.
type LedgerWorker struct {
	store      SyncStore
	writer     sheets.TransactionWriter
	categories CategoryNamer
	batchSize  int
}

// SyncResult counts the outcome of one batch.
type SyncResult struct {
	Total  int
	Synced int
	Failed int
}

func NewLedgerWorker(store SyncStore, writer sheets.TransactionWriter, categories CategoryNamer, batchSize int) *LedgerWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &LedgerWorker{
		store:      store,
		writer:     writer,
		categories: categories,
		batchSize:  batchSize,
	}
}

// HandleMessage exports the transaction named by msg. A transaction that no
// longer exists is acknowledged and dropped; any other failure is returned so
// the message is redelivered.
func (w *LedgerWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"transaction_id", msg.TransactionID,
		"recurring_id", msg.RecurringID)

	t, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, services.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction not found, dropping message", "transaction_id", msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	if err := w.export(ctx, t); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	return nil
}

// ProcessPending exports up to one batch of pending transactions. It covers
// messages that were lost or published while the worker was down.
func (w *LedgerWorker) ProcessPending(ctx context.Context) (SyncResult, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger backlog once when the worker starts.
func (w *LedgerWorker) StartupSyncCheck(ctx context.Context) error {
	res, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if res.Total == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", res.Total,
		"synced", res.Synced,
		"errors", res.Failed)
	return nil
}

func (w *LedgerWorker) processPending(ctx context.Context, limit int) (SyncResult, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("get pending transactions: %w", err)
	}

	res := SyncResult{Total: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}
	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, t := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := w.export(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "transaction_id", t.ID, "error", err)
			res.Failed++
			continue
		}
		res.Synced++
	}
	return res, nil
}

func (w *LedgerWorker) export(ctx context.Context, t core.Transaction) error {
	var category string
	if w.categories != nil {
		category = w.categories.Name(ctx, t.CategoryID)
	}

	ref, err := w.writer.Append(ctx, sheets.NewRow(t, category))
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "transaction_id", t.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is already written; Append is idempotent if this is retried.
	if err := w.store.MarkSynced(ctx, t.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "transaction_id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"transaction_id", t.ID,
		"sheets_ref", ref,
		"amount_minor", t.Amount.Minor,
		"currency", t.Amount.Currency)
	return nil
}
