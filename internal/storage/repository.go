package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"ledgerbook/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the SQLite Store. Units of work begin with
// BEGIN IMMEDIATE, so at most one writer runs at a time and LockLedger is a
// plain read.
type SQLiteRepository struct {
	db *sql.DB
	*queries
}

var _ Store = (*SQLiteRepository)(nil)

// DSN builds the connection string used for every connection to dbPath.
func DSN(dbPath string) string {
	v := url.Values{}
	v.Add("_pragma", "busy_timeout(5000)")
	v.Add("_pragma", "foreign_keys(1)")
	v.Add("_pragma", "journal_mode(WAL)")
	v.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + v.Encode()
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: &queries{db: db}}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx implements Store.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", translateError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqliteTx{queries: &queries{db: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateError(err))
	}
	return nil
}

type sqliteTx struct {
	*queries
}

func (t *sqliteTx) LockLedger(ctx context.Context, ledgerID int64, typ core.LedgerType) (core.Ledger, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id = ? AND (? = '' OR type = ?)`,
		ledgerID, typ, typ)
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", ledgerID)
	}
	return l, nil
}

// translateError maps driver failures onto the core error taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch code := serr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &core.ConstraintViolationError{Constraint: constraintName(serr.Error()), Err: err}
	case code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return err
}

// SQLite reports the offending columns rather than the index name.
func constraintName(msg string) string {
	switch {
	case strings.Contains(msg, "ledgers.user_id"):
		return "user_budget_month_year_unique_idx"
	case strings.Contains(msg, "users.email"):
		return "users_email_key"
	case strings.Contains(msg, "users.username"):
		return "users_username_key"
	case strings.Contains(msg, "sessions.id"):
		return "sessions_pkey"
	}
	return ""
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return translateError(err)
}
