package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledgerbook/internal/core"

	"github.com/google/uuid"
)

// Operation names the change that produced a LedgerEvent.
type Operation string

const (
	OpTransactionCreated Operation = "transaction.created"
	OpTransactionUpdated Operation = "transaction.updated"
	OpTransactionDeleted Operation = "transaction.deleted"
	OpLedgerCreated      Operation = "ledger.created"
	OpLedgerReconciled   Operation = "ledger.reconciled"
)

// LedgerEvent announces a committed change to a ledger's totals. The
// worker re-reads the ledger, so the totals here are informational.
type LedgerEvent struct {
	ID            string          `json:"id"`
	LedgerID      int64           `json:"ledgerId"`
	UserID        int64           `json:"userId"`
	Type          core.LedgerType `json:"type"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	TotalCredits  core.Money      `json:"totalCredits"`
	TotalDebits   core.Money      `json:"totalDebits"`
	Operation     Operation       `json:"operation"`
	TransactionID int64           `json:"transactionId,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewLedgerEvent builds an event for l after op. transactionID is zero for
// ledger-level operations.
func NewLedgerEvent(op Operation, l core.Ledger, transactionID int64, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		ID:            uuid.NewString(),
		LedgerID:      l.ID,
		UserID:        l.UserID,
		Type:          l.Type,
		Year:          l.Year,
		Month:         l.Month,
		TotalCredits:  l.TotalCredits,
		TotalDebits:   l.TotalDebits,
		Operation:     op,
		TransactionID: transactionID,
		OccurredAt:    at,
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks it names a ledger.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.LedgerID <= 0 {
		return nil, fmt.Errorf("ledger event %q has no ledger id", e.ID)
	}
	return &e, nil
}
