package log

import "ledgerbook/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldLedgerID      = "ledger_id"
	FieldLedgerType    = "ledger_type"
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldDelta         = "delta"
	FieldVersion       = "version"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldEventID       = "event_id"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRecurring = "recurring"
	ComponentSheets    = "sheets"
	ComponentMetrics   = "metrics"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithLedger adds the ledger's identity and position.
func (f LogFields) WithLedger(l core.Ledger) LogFields {
	f[FieldLedgerID] = l.ID
	f[FieldUserID] = l.UserID
	f[FieldLedgerType] = string(l.Type)
	f[FieldVersion] = l.Version
	if l.Year > 0 {
		f[FieldYear] = l.Year
		f[FieldMonth] = l.Month
	}
	return f
}

// WithTransaction adds the transaction id and amount.
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	f[FieldTransactionID] = t.ID
	f[FieldAmount] = t.Amount.String()
	return f
}

// WithDelta adds the signed change applied to a total.
func (f LogFields) WithDelta(delta core.Money) LogFields {
	f[FieldDelta] = delta.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
