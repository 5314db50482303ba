package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/core"
	ledgerlog "ledgerbook/internal/log"
	"ledgerbook/internal/storage"
)

// TransactionService writes transactions and keeps the running totals of
// their ledgers in step. Every write is one unit of work: the ledger is
// locked, the transaction row changes, and the affected total moves by the
// exact difference.
type TransactionService struct {
	store     storage.Store
	validator *core.Validator
	commit    *committer
	publisher EventPublisher
	now       func() time.Time
}

func NewTransactionService(store storage.Store, opts Options) *TransactionService {
	opts = opts.withDefaults()
	return &TransactionService{
		store:     store,
		validator: opts.Validator,
		commit:    newCommitter(store, opts),
		publisher: opts.Publisher,
		now:       opts.Now,
	}
}

func checkLedgerType(t core.LedgerType) error {
	if t.IsValid() {
		return nil
	}
	return &core.ValidationError{Errors: []core.FieldError{
		{Field: "ledgerType", Message: "Type is not a valid ledger type"},
	}}
}

// CreateTransaction adds a transaction to a ledger of type ledgerType.
func (s *TransactionService) CreateTransaction(ctx context.Context, ledgerType core.LedgerType, p core.TransactionParams) (core.Transaction, error) {
	if err := checkLedgerType(ledgerType); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.validator.ValidateTransaction(ledgerType, p)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now

	var created core.Transaction
	var ledger core.Ledger
	err = s.commit.run(ctx, "create_transaction", func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, t.LedgerID, ledgerType)
		if err != nil {
			return err
		}
		created, err = tx.InsertTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		ledger, err = applyTransactionDelta(ctx, tx, l, core.Zero, created.Amount, created.Type.Column(), now)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID,
		"ledger_id", created.LedgerID,
		"type", created.Type,
		"amount", created.Amount.String())
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.OpTransactionCreated, ledger, created.ID, now))
	return created, nil
}

// UpdateTransaction replaces the mutable fields of a transaction. Its type
// cannot change.
func (s *TransactionService) UpdateTransaction(ctx context.Context, ledgerID int64, ledgerType core.LedgerType, transactionID int64, u core.TransactionUpdate) (core.Transaction, error) {
	if err := checkLedgerType(ledgerType); err != nil {
		return core.Transaction{}, err
	}
	next, err := s.validator.ValidateTransactionUpdate(ledgerType, u)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now()

	var updated core.Transaction
	var ledger core.Ledger
	var previous core.Money
	err = s.commit.run(ctx, "update_transaction", func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, ledgerID, ledgerType)
		if err != nil {
			return err
		}
		existing, err := tx.FindTransaction(ctx, ledgerID, transactionID)
		if err != nil {
			return err
		}
		if next.Type != "" && existing.Type != next.Type {
			return &core.ImmutableFieldError{Field: "type"}
		}

		row := next
		row.Type = existing.Type
		row.ID = existing.ID
		row.LedgerID = existing.LedgerID
		row.CreatedAt = existing.CreatedAt
		row.UpdatedAt = now
		updated, err = tx.UpdateTransaction(ctx, row)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		previous = existing.Amount
		ledger, err = applyTransactionDelta(ctx, tx, l, existing.Amount, updated.Amount, existing.Type.Column(), now)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	fields := ledgerlog.NewFields().
		WithLedger(ledger).
		WithTransaction(updated).
		WithDelta(updated.Amount.Sub(previous))
	slog.InfoContext(ctx, "Transaction updated", fields.ToSlice()...)
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.OpTransactionUpdated, ledger, updated.ID, now))
	return updated, nil
}

// DeleteTransaction removes a transaction and returns it as it was.
func (s *TransactionService) DeleteTransaction(ctx context.Context, ledgerID int64, ledgerType core.LedgerType, transactionID int64) (core.Transaction, error) {
	if err := checkLedgerType(ledgerType); err != nil {
		return core.Transaction{}, err
	}
	now := s.now()

	var deleted core.Transaction
	var ledger core.Ledger
	err := s.commit.run(ctx, "delete_transaction", func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, ledgerID, ledgerType)
		if err != nil {
			return err
		}
		existing, err := tx.FindTransaction(ctx, ledgerID, transactionID)
		if err != nil {
			return err
		}
		deleted, err = tx.DeleteTransaction(ctx, ledgerID, existing.ID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		ledger, err = applyTransactionDelta(ctx, tx, l, existing.Amount, core.Zero, existing.Type.Column(), now)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", deleted.ID,
		"ledger_id", deleted.LedgerID,
		"amount", deleted.Amount.String())
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.OpTransactionDeleted, ledger, deleted.ID, now))
	return deleted, nil
}

// ListTransactions lists the transactions of a ledger of type ledgerType,
// newest first.
func (s *TransactionService) ListTransactions(ctx context.Context, ledgerID int64, ledgerType core.LedgerType) ([]core.Transaction, error) {
	l, err := s.store.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, storeError("get ledger", err)
	}
	if l.Type != ledgerType {
		return nil, &core.NotFoundError{Entity: "ledger", ID: ledgerID}
	}
	txs, err := s.store.ListTransactions(ctx, ledgerID)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return txs, nil
}
