package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerbook/internal/core"

	"github.com/jackc/pgx/v5"
)

type queries struct {
	db DBTX
}

const ledgerColumns = `id, user_id, title, description, year, month, type, status,
	total_credits, total_debits, version, created_at, updated_at`

const transactionColumns = `id, ledger_id, description, amount, date, category, type,
	is_estimated, created_at, updated_at`

const userColumns = `id, email, username, password_hash, created_at, updated_at`

const sessionColumns = `id, user_id, expires_at, created_at, updated_at`

const recurrentColumns = `id, user_id, description, amount, start_date, every, category, type,
	is_estimated, last_execution_at, created_at, updated_at`

func scanLedger(row pgx.Row) (core.Ledger, error) {
	var (
		l                  core.Ledger
		title, description *string
	)
	err := row.Scan(&l.ID, &l.UserID, &title, &description, &l.Year, &l.Month, &l.Type, &l.Status,
		&l.TotalCredits, &l.TotalDebits, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return core.Ledger{}, err
	}
	if title != nil {
		l.Title = *title
	}
	if description != nil {
		l.Description = *description
	}
	return l, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var t core.Transaction
	err := row.Scan(&t.ID, &t.LedgerID, &t.Description, &t.Amount, &t.Date, &t.Category, &t.Type,
		&t.IsEstimated, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanSession(row pgx.Row) (core.Session, error) {
	var s core.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanRecurrent(row pgx.Row) (core.RecurrentTransaction, error) {
	var (
		r     core.RecurrentTransaction
		start time.Time
		last  *time.Time
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Description, &r.Amount, &start, &r.Every, &r.Category, &r.Type,
		&r.IsEstimated, &last, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return core.RecurrentTransaction{}, err
	}
	r.StartDate = core.NewDate(start.Year(), int(start.Month()), start.Day())
	if last != nil {
		r.LastExecutionAt = *last
	}
	return r, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (q *queries) CreateLedger(ctx context.Context, l core.Ledger) (core.Ledger, error) {
	now := stamp(l.CreatedAt)
	row := q.db.QueryRow(ctx, `
		INSERT INTO ledgers (user_id, title, description, year, month, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+ledgerColumns,
		l.UserID, optional(l.Title), optional(l.Description), l.Year, l.Month, string(l.Type), string(l.Status), now)
	created, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("insert ledger: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) GetLedger(ctx context.Context, id int64) (core.Ledger, error) {
	l, err := scanLedger(q.db.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE id = $1`, id))
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", id)
	}
	return l, nil
}

func (q *queries) FindLedger(ctx context.Context, userID, ledgerID int64, typ core.LedgerType) (core.Ledger, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id = $1 AND user_id = $2 AND ($3 = '' OR type = $3)`,
		ledgerID, userID, string(typ))
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", ledgerID)
	}
	return l, nil
}

func (q *queries) FindBudget(ctx context.Context, userID int64, year, month int) (core.Ledger, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1 AND type = 'budget' AND year = $2 AND month = $3`,
		userID, year, month)
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "budget", fmt.Sprintf("%d/%04d-%02d", userID, year, month))
	}
	return l, nil
}

func (q *queries) ListLedgers(ctx context.Context, userID int64, typ core.LedgerType) ([]core.Ledger, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY year DESC, month DESC, id DESC`,
		userID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", translateError(err))
	}
	return collect(rows, scanLedger)
}

func (q *queries) UpdateLedgerTotals(ctx context.Context, l core.Ledger, now time.Time) (core.Ledger, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE ledgers
		SET total_credits = $1, total_debits = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
		RETURNING `+ledgerColumns,
		l.TotalCredits, l.TotalDebits, stamp(now), l.ID, l.Version)
	updated, err := scanLedger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Ledger{}, fmt.Errorf("ledger %d version %d: %w", l.ID, l.Version, core.ErrConflict)
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("update ledger totals: %w", translateError(err))
	}
	return updated, nil
}

func (q *queries) FindTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE ledger_id = $1 AND id = $2`,
		ledgerID, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", transactionID)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, ledgerID int64) ([]core.Transaction, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE ledger_id = $1 ORDER BY date DESC, id DESC`,
		ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", translateError(err))
	}
	return collect(rows, scanTransaction)
}

func (q *queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := stamp(t.CreatedAt)
	row := q.db.QueryRow(ctx, `
		INSERT INTO transactions (ledger_id, description, amount, date, category, type, is_estimated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+transactionColumns,
		t.LedgerID, t.Description, t.Amount, t.Date, string(t.Category), string(t.Type), t.IsEstimated, now)
	created, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE transactions
		SET description = $1, amount = $2, date = $3, category = $4, is_estimated = $5, updated_at = $6
		WHERE ledger_id = $7 AND id = $8
		RETURNING `+transactionColumns,
		t.Description, t.Amount, t.Date, string(t.Category), t.IsEstimated, stamp(t.UpdatedAt), t.LedgerID, t.ID)
	updated, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", t.ID)
	}
	return updated, nil
}

func (q *queries) DeleteTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error) {
	row := q.db.QueryRow(ctx,
		`DELETE FROM transactions WHERE ledger_id = $1 AND id = $2 RETURNING `+transactionColumns,
		ledgerID, transactionID)
	deleted, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", transactionID)
	}
	return deleted, nil
}

func (q *queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := stamp(u.CreatedAt)
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, now)
	created, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (q *queries) GetUserByLogin(ctx context.Context, login string) (core.User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $1 LIMIT 1`, login)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", login)
	}
	return u, nil
}

func (q *queries) CreateSession(ctx context.Context, s core.Session) (core.Session, error) {
	now := stamp(s.CreatedAt)
	row := q.db.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+sessionColumns,
		s.ID, s.UserID, s.ExpiresAt, now)
	created, err := scanSession(row)
	if err != nil {
		return core.Session{}, fmt.Errorf("insert session: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) GetSession(ctx context.Context, id string) (core.Session, error) {
	s, err := scanSession(q.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return core.Session{}, notFound(err, "session", id)
	}
	return s, nil
}

func (q *queries) UpdateSessionExpiry(ctx context.Context, id string, expiresAt, now time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE sessions SET expires_at = $1, updated_at = $2 WHERE id = $3`, expiresAt, stamp(now), id)
	if err != nil {
		return fmt.Errorf("update session: %w", translateError(err))
	}
	return nil
}

func (q *queries) DeleteSession(ctx context.Context, id string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", translateError(err))
	}
	return nil
}

func (q *queries) CreateRecurrent(ctx context.Context, r core.RecurrentTransaction) (core.RecurrentTransaction, error) {
	now := stamp(r.CreatedAt)
	row := q.db.QueryRow(ctx, `
		INSERT INTO recurrent_transactions (user_id, description, amount, start_date, every, category, type,
			is_estimated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+recurrentColumns,
		r.UserID, r.Description, r.Amount, r.StartDate.Time, string(r.Every), string(r.Category), string(r.Type),
		r.IsEstimated, now)
	created, err := scanRecurrent(row)
	if err != nil {
		return core.RecurrentTransaction{}, fmt.Errorf("insert recurrent transaction: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) ListRecurrent(ctx context.Context) ([]core.RecurrentTransaction, error) {
	rows, err := q.db.Query(ctx, `SELECT `+recurrentColumns+` FROM recurrent_transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recurrent transactions: %w", translateError(err))
	}
	return collect(rows, scanRecurrent)
}

func (q *queries) MarkRecurrentExecuted(ctx context.Context, id int64, at time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE recurrent_transactions SET last_execution_at = $1, updated_at = now() WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark recurrent transaction: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "recurrent transaction", ID: id}
	}
	return nil
}
