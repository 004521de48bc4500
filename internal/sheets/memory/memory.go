package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fincore/internal/sheets"
)

var _ sheets.TransactionWriter = (*Writer)(nil)

// Writer keeps exported rows in memory. It is used when no spreadsheet is
// configured and in tests.
type Writer struct {
	mu   sync.Mutex
	rows []sheets.Row
	refs map[string]string
}

func New() *Writer {
	return &Writer{refs: map[string]string{}}
}

// Append stores the row and returns a synthetic row reference. A row whose
// ID was already appended is not stored twice.
func (w *Writer) Append(_ context.Context, r sheets.Row) (string, error) {
	if r.ID == "" {
		return "", errors.New("row without id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if ref, ok := w.refs[r.ID]; ok {
		return ref, nil
	}
	w.rows = append(w.rows, r)
	ref := fmt.Sprintf("mem:%d", len(w.rows))
	w.refs[r.ID] = ref
	return ref, nil
}

// Rows returns a copy of the rows in append order.
func (w *Writer) Rows() []sheets.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sheets.Row(nil), w.rows...)
}
