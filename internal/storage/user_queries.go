package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledgerbook/internal/core"
)

const userColumns = `id, email, username, password_hash, created_at, updated_at`

const sessionColumns = `id, user_id, expires_at, created_at, updated_at`

const recurrentColumns = `id, user_id, description, amount, start_date, every, category, type,
	is_estimated, last_execution_at, created_at, updated_at`

func scanUser(row scanner) (core.User, error) {
	var (
		u                core.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func scanSession(row scanner) (core.Session, error) {
	var (
		s                         core.Session
		expires, created, updated int64
	)
	if err := row.Scan(&s.ID, &s.UserID, &expires, &created, &updated); err != nil {
		return core.Session{}, err
	}
	s.ExpiresAt = fromMillis(expires)
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

func scanRecurrent(row scanner) (core.RecurrentTransaction, error) {
	var (
		r                       core.RecurrentTransaction
		start, created, updated int64
		last                    sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Description, &r.Amount, &start, &r.Every, &r.Category, &r.Type,
		&r.IsEstimated, &last, &created, &updated)
	if err != nil {
		return core.RecurrentTransaction{}, err
	}
	r.StartDate = core.Date{Time: fromMillis(start)}
	if last.Valid {
		r.LastExecutionAt = fromMillis(last.Int64)
	}
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updated)
	return r, nil
}

func (q *queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := stamp(u.CreatedAt)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, toMillis(now), toMillis(now))
	created, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByLogin matches either the email or the username.
func (q *queries) GetUserByLogin(ctx context.Context, login string) (core.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR username = ? LIMIT 1`, login, login)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", login)
	}
	return u, nil
}

func (q *queries) CreateSession(ctx context.Context, s core.Session) (core.Session, error) {
	now := stamp(s.CreatedAt)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+sessionColumns,
		s.ID, s.UserID, toMillis(s.ExpiresAt), toMillis(now), toMillis(now))
	created, err := scanSession(row)
	if err != nil {
		return core.Session{}, fmt.Errorf("insert session: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) GetSession(ctx context.Context, id string) (core.Session, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return core.Session{}, notFound(err, "session", id)
	}
	return s, nil
}

func (q *queries) UpdateSessionExpiry(ctx context.Context, id string, expiresAt, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(expiresAt), toMillis(stamp(now)), id)
	if err != nil {
		return fmt.Errorf("update session: %w", translateError(err))
	}
	return nil
}

func (q *queries) DeleteSession(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", translateError(err))
	}
	return nil
}

func (q *queries) CreateRecurrent(ctx context.Context, r core.RecurrentTransaction) (core.RecurrentTransaction, error) {
	now := stamp(r.CreatedAt)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO recurrent_transactions (user_id, description, amount, start_date, every, category, type,
			is_estimated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+recurrentColumns,
		r.UserID, r.Description, r.Amount, toMillis(r.StartDate.Time), r.Every, r.Category, r.Type,
		r.IsEstimated, toMillis(now), toMillis(now))
	created, err := scanRecurrent(row)
	if err != nil {
		return core.RecurrentTransaction{}, fmt.Errorf("insert recurrent transaction: %w", translateError(err))
	}
	return created, nil
}

func (q *queries) ListRecurrent(ctx context.Context) ([]core.RecurrentTransaction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+recurrentColumns+` FROM recurrent_transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recurrent transactions: %w", translateError(err))
	}
	defer rows.Close()

	var out []core.RecurrentTransaction
	for rows.Next() {
		r, err := scanRecurrent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurrent transaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) MarkRecurrentExecuted(ctx context.Context, id int64, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurrent_transactions SET last_execution_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("mark recurrent transaction: %w", translateError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "recurrent transaction", ID: id}
	}
	return nil
}
