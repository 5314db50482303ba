package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db DBTX
}

type scanner interface {
	Scan(dest ...any) error
}

const ledgerColumns = `id, user_id, title, description, year, month, type, status,
	total_credits, total_debits, version, created_at, updated_at`

const transactionColumns = `id, ledger_id, description, amount, date, category, type,
	is_estimated, created_at, updated_at`

func scanLedger(row scanner) (core.Ledger, error) {
	var (
		l                  core.Ledger
		title, description sql.NullString
		created, updated   int64
	)
	err := row.Scan(&l.ID, &l.UserID, &title, &description, &l.Year, &l.Month, &l.Type, &l.Status,
		&l.TotalCredits, &l.TotalDebits, &l.Version, &created, &updated)
	if err != nil {
		return core.Ledger{}, err
	}
	l.Title = title.String
	l.Description = description.String
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updated)
	return l, nil
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                      core.Transaction
		date, created, updated int64
	)
	err := row.Scan(&t.ID, &t.LedgerID, &t.Description, &t.Amount, &date, &t.Category, &t.Type,
		&t.IsEstimated, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = fromMillis(date)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

func (q *queries) CreateLedger(ctx context.Context, l core.Ledger) (core.Ledger, error) {
	now := stamp(l.CreatedAt)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO ledgers (user_id, title, description, year, month, type, status,
			total_credits, total_debits, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '0.00', '0.00', 0, ?, ?)
		RETURNING `+ledgerColumns,
		l.UserID, nullString(l.Title), nullString(l.Description), l.Year, l.Month, l.Type, l.Status,
		toMillis(now), toMillis(now))
	created, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("insert ledger: %w", translateError(err))
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite",
		"ledger_id", created.ID,
		"user_id", created.UserID,
		"type", created.Type,
		"year", created.Year,
		"month", created.Month)

	return created, nil
}

func (q *queries) GetLedger(ctx context.Context, id int64) (core.Ledger, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE id = ?`, id)
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", id)
	}
	return l, nil
}

func (q *queries) FindLedger(ctx context.Context, userID, ledgerID int64, typ core.LedgerType) (core.Ledger, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id = ? AND user_id = ? AND (? = '' OR type = ?)`,
		ledgerID, userID, typ, typ)
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "ledger", ledgerID)
	}
	return l, nil
}

func (q *queries) FindBudget(ctx context.Context, userID int64, year, month int) (core.Ledger, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = ? AND type = 'budget' AND year = ? AND month = ?`,
		userID, year, month)
	l, err := scanLedger(row)
	if err != nil {
		return core.Ledger{}, notFound(err, "budget", fmt.Sprintf("%d/%04d-%02d", userID, year, month))
	}
	return l, nil
}

func (q *queries) ListLedgers(ctx context.Context, userID int64, typ core.LedgerType) ([]core.Ledger, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = ? AND (? = '' OR type = ?)
		ORDER BY year DESC, month DESC, id DESC`,
		userID, typ, typ)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", translateError(err))
	}
	defer rows.Close()

	var out []core.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *queries) UpdateLedgerTotals(ctx context.Context, l core.Ledger, now time.Time) (core.Ledger, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE ledgers
		SET total_credits = ?, total_debits = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
		RETURNING `+ledgerColumns,
		l.TotalCredits, l.TotalDebits, toMillis(stamp(now)), l.ID, l.Version)
	updated, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, fmt.Errorf("ledger %d version %d: %w", l.ID, l.Version, core.ErrConflict)
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("update ledger totals: %w", translateError(err))
	}
	return updated, nil
}

func (q *queries) FindTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE ledger_id = ? AND id = ?`,
		ledgerID, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", transactionID)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, ledgerID int64) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE ledger_id = ? ORDER BY date DESC, id DESC`,
		ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", translateError(err))
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := stamp(t.CreatedAt)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO transactions (ledger_id, description, amount, date, category, type, is_estimated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transactionColumns,
		t.LedgerID, t.Description, t.Amount, toMillis(t.Date), t.Category, t.Type, t.IsEstimated,
		toMillis(now), toMillis(now))
	created, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", translateError(err))
	}
	return created, nil
}

// UpdateTransaction rewrites the mutable fields. The type column is never written.
func (q *queries) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET description = ?, amount = ?, date = ?, category = ?, is_estimated = ?, updated_at = ?
		WHERE ledger_id = ? AND id = ?
		RETURNING `+transactionColumns,
		t.Description, t.Amount, toMillis(t.Date), t.Category, t.IsEstimated, toMillis(stamp(t.UpdatedAt)),
		t.LedgerID, t.ID)
	updated, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", t.ID)
	}
	return updated, nil
}

func (q *queries) DeleteTransaction(ctx context.Context, ledgerID, transactionID int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`DELETE FROM transactions WHERE ledger_id = ? AND id = ? RETURNING `+transactionColumns,
		ledgerID, transactionID)
	deleted, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", transactionID)
	}
	return deleted, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
