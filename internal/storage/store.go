package storage

import (
	"context"
	"time"

	"ledgerbook/internal/core"
)

// Queries are the reads and writes available both on the store and inside
// a unit of work. Missing rows are reported as *core.NotFoundError and
// uniqueness violations as *core.ConstraintViolationError.
type Queries interface {
	CreateLedger(ctx context.Context, l core.Ledger) (core.Ledger, error)
	GetLedger(ctx context.Context, id int64) (core.Ledger, error)
	// FindLedger matches by owner too. An empty typ matches any type.
	FindLedger(ctx context.Context, userID, ledgerID int64, typ core.LedgerType) (core.Ledger, error)
	FindBudget(ctx context.Context, userID int64, year, month int) (core.Ledger, error)
	ListLedgers(ctx context.Context, userID int64, typ core.LedgerType) ([]core.Ledger, error)

	FindTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, ledgerID int64) ([]core.Transaction, error)

	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByLogin(ctx context.Context, login string) (core.User, error)

	CreateSession(ctx context.Context, s core.Session) (core.Session, error)
	GetSession(ctx context.Context, id string) (core.Session, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt, now time.Time) error
	DeleteSession(ctx context.Context, id string) error

	CreateRecurrent(ctx context.Context, r core.RecurrentTransaction) (core.RecurrentTransaction, error)
	ListRecurrent(ctx context.Context) ([]core.RecurrentTransaction, error)
	MarkRecurrentExecuted(ctx context.Context, id int64, at time.Time) error
}

// Tx is a unit of work. Everything written through it commits or rolls
// back together.
type Tx interface {
	Queries

	// LockLedger reads a ledger and holds its row until the unit of work
	// ends. An empty typ matches any type.
	LockLedger(ctx context.Context, ledgerID int64, typ core.LedgerType) (core.Ledger, error)
	// UpdateLedgerTotals writes both totals and bumps version and updated_at,
	// provided the stored version still equals l.Version. Otherwise it
	// returns core.ErrConflict.
	UpdateLedgerTotals(ctx context.Context, l core.Ledger, now time.Time) (core.Ledger, error)

	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error)
}

// Store is a persistent ledger store.
type Store interface {
	Queries

	// WithTx runs fn in a unit of work and commits if fn returns nil.
	// Lock contention surfaces as an error wrapping core.ErrConflict.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}
