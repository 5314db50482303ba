// Package postgres is the PostgreSQL Store, built on pgx.
//
// Ledger rows are locked with SELECT ... FOR UPDATE for the length of a
// unit of work; totals are numeric(10,2).
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	*queries
}

var _ storage.Store = (*Store)(nil)

// Open connects to databaseURL and runs migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, queries: &queries{db: pool}}, nil
}

// RunMigrations applies the embedded migrations through the pgx5 driver.
func RunMigrations(databaseURL string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", translateError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgTx{queries: &queries{db: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translateError(err))
	}
	return nil
}

type pgTx struct {
	*queries
}

func (t *pgTx) LockLedger(ctx context.Context, ledgerID int64, typ core.LedgerType) (core.Ledger, error) {
	row := t.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id = $1 AND ($2 = '' OR type = $2) FOR UPDATE`,
		ledgerID, string(typ))
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", ledgerID)
	}
	return l, nil
}

// translateError maps SQLSTATEs onto the core error taxonomy.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return &core.ConstraintViolationError{Constraint: pgErr.ConstraintName, Err: err}
	case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return err
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return translateError(err)
}
