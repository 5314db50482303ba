package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/cache"
	"ledgerbook/internal/core"
	"ledgerbook/internal/metrics"
	"ledgerbook/internal/storage"

	"golang.org/x/sync/singleflight"
)

// BudgetResolver finds the budget of a user's calendar month, creating it
// on first use. At most one budget exists per (user, year, month).
type BudgetResolver struct {
	store     storage.Store
	validator *core.Validator
	cache     cache.Cache[int64]
	metrics   *metrics.Metrics
	publisher EventPublisher
	now       func() time.Time
	loc       *time.Location

	group singleflight.Group
}

func NewBudgetResolver(store storage.Store, opts Options) *BudgetResolver {
	opts = opts.withDefaults()
	return &BudgetResolver{
		store:     store,
		validator: opts.Validator,
		cache:     opts.BudgetCache,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		now:       opts.Now,
		loc:       opts.Location,
	}
}

func budgetKey(userID int64, t time.Time) string {
	return fmt.Sprintf("%d:%04d-%02d", userID, t.Year(), int(t.Month()))
}

// Resolve returns the budget for the month of date. Callers resolving the
// same month concurrently in this process share one lookup; callers in
// other processes are reconciled by the unique budget index.
func (r *BudgetResolver) Resolve(ctx context.Context, userID int64, date time.Time) (core.Ledger, error) {
	local := date.In(r.loc)
	key := budgetKey(userID, local)

	if l, ok, err := r.cached(ctx, key, userID); err != nil || ok {
		return l, err
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.findOrCreate(ctx, userID, local)
	})
	if err != nil {
		return core.Ledger{}, err
	}
	l := v.(core.Ledger)
	if shared {
		slog.DebugContext(ctx, "Budget lookup shared", "key", key, "ledger_id", l.ID)
	}
	if r.cache != nil {
		r.cache.Set(key, l.ID)
	}
	return l, nil
}

// cached re-reads the ledger behind a cached id so totals are current.
func (r *BudgetResolver) cached(ctx context.Context, key string, userID int64) (core.Ledger, bool, error) {
	if r.cache == nil {
		return core.Ledger{}, false, nil
	}
	id, ok := r.cache.Get(key)
	if !ok {
		return core.Ledger{}, false, nil
	}
	l, err := r.store.FindLedger(ctx, userID, id, core.BudgetLedger)
	if errors.Is(err, core.ErrNotFound) {
		r.cache.Delete(key)
		return core.Ledger{}, false, nil
	}
	if err != nil {
		return core.Ledger{}, false, &core.IntegrityError{Op: "resolve budget", Err: err}
	}
	r.metrics.RecordBudget(metrics.BudgetCached)
	return l, true, nil
}

func (r *BudgetResolver) findOrCreate(ctx context.Context, userID int64, local time.Time) (core.Ledger, error) {
	year, month := local.Year(), int(local.Month())

	l, err := r.store.FindBudget(ctx, userID, year, month)
	if err == nil {
		r.metrics.RecordBudget(metrics.BudgetFound)
		return l, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Ledger{}, &core.IntegrityError{Op: "resolve budget", Err: err}
	}

	draft, err := r.validator.ValidateLedger(core.BudgetParams{
		UserID: userID,
		Date:   core.MonthStart(local),
	})
	if err != nil {
		return core.Ledger{}, err
	}
	now := r.now()
	draft.CreatedAt, draft.UpdatedAt = now, now

	created, err := r.store.CreateLedger(ctx, draft)
	if err == nil {
		r.metrics.RecordBudget(metrics.BudgetCreated)
		slog.InfoContext(ctx, "Budget created",
			"ledger_id", created.ID,
			"user_id", userID,
			"year", year,
			"month", month)
		publish(ctx, r.publisher, amqp.NewLedgerEvent(amqp.OpLedgerCreated, created, 0, now))
		return created, nil
	}
	if !errors.Is(err, core.ErrConstraintViolation) {
		if core.IsDomainError(err) {
			return core.Ledger{}, err
		}
		return core.Ledger{}, &core.IntegrityError{Op: "resolve budget", Err: err}
	}

	// Another process created it between our read and insert.
	r.metrics.RecordBudget(metrics.BudgetRaced)
	l, err = r.store.FindBudget(ctx, userID, year, month)
	if err != nil {
		return core.Ledger{}, &core.IntegrityError{Op: "resolve budget", Err: err}
	}
	return l, nil
}
