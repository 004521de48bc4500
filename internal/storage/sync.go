package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fincore/internal/core"
	"fincore/internal/services"
)

// Export states of a transaction towards the spreadsheet ledger.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// PendingSync returns up to limit transactions not yet exported, oldest first.
func (s *SQLStore) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE sync_status = ? ORDER BY created_at, id LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	out, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan pending sync transactions: %w", err)
	}
	return out, nil
}

// MarkSynced marks a transaction as exported.
func (s *SQLStore) MarkSynced(ctx context.Context, id string) error {
	if err := s.setSync(ctx, id, SyncSynced); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "transaction_id", id)
	return nil
}

// MarkSyncError marks a transaction whose export failed.
func (s *SQLStore) MarkSyncError(ctx context.Context, id string) error {
	if err := s.setSync(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "transaction_id", id)
	return nil
}

// SyncStatus reports the export state of a transaction.
func (s *SQLStore) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := s.queryRow(ctx, `SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", notFound("transaction", id, err)
	}
	return status, nil
}

func (s *SQLStore) setSync(ctx context.Context, id, status string) error {
	var syncedAt any
	if status == SyncSynced {
		syncedAt = timestampArg(time.Now())
	}
	res, err := s.exec(ctx, `UPDATE transactions SET sync_status = ?, synced_at = ? WHERE id = ?`,
		status, syncedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, services.ErrNotFound)
	}
	return nil
}
