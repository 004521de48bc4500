package amqp

import (
	"encoding/json"
	"time"

	"fincore/internal/core"
)

// Routing keys on the ledger exchange.
const (
	RoutingTransactionCreated = "transaction.created"
	RoutingRecurringDue       = "recurring.due"
)

// TransactionCreatedMessage announces a committed transaction. It carries
// enough to log and route; the ledger worker re-reads the row by id.
type TransactionCreatedMessage struct {
	TransactionID   string    `json:"transaction_id"`
	RecurringID     string    `json:"recurring_id,omitempty"`
	AmountMinor     int64     `json:"amount_minor"`
	Currency        string    `json:"currency"`
	TransactionDate string    `json:"transaction_date"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(t core.Transaction) *TransactionCreatedMessage {
	msg := &TransactionCreatedMessage{
		TransactionID:   t.ID,
		AmountMinor:     t.Amount.Minor,
		Currency:        t.Amount.Currency,
		TransactionDate: t.TransactionDate.String(),
		Timestamp:       time.Now(),
	}
	if t.RecurringTransactionID != nil {
		msg.RecurringID = *t.RecurringTransactionID
	}
	return msg
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecurringDueMessage asks a human to confirm a definition that does not
// create transactions on its own.
type RecurringDueMessage struct {
	RecurringID string    `json:"recurring_id"`
	Name        string    `json:"name"`
	NextRunDate string    `json:"next_run_date"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewRecurringDueMessage(rt core.RecurringTransaction) *RecurringDueMessage {
	return &RecurringDueMessage{
		RecurringID: rt.ID,
		Name:        rt.Name,
		NextRunDate: rt.NextRunDate.String(),
		AmountMinor: rt.Amount.Minor,
		Currency:    rt.Amount.Currency,
		Timestamp:   time.Now(),
	}
}

func (m *RecurringDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
