package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/metrics"
	"ledgerbook/internal/storage"
)

const (
	retryBaseDelay = 5 * time.Millisecond
	retryMaxDelay  = 200 * time.Millisecond
)

// committer runs units of work against the store. A unit that loses a
// race (version mismatch, busy database, serialization failure) is rolled
// back and run again from the start, up to maxAttempts times.
type committer struct {
	store       storage.Store
	metrics     *metrics.Metrics
	maxAttempts int
}

func newCommitter(store storage.Store, opts Options) *committer {
	return &committer{
		store:       store,
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxAttempts,
	}
}

// run executes fn in a unit of work. Domain errors returned by fn are passed
// through; anything else becomes a *core.IntegrityError.
func (c *committer) run(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	start := time.Now()

	var err error
	for attempt := 1; ; attempt++ {
		err = c.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, core.ErrConflict) || attempt >= c.maxAttempts {
			break
		}

		c.metrics.RecordRetry(op)
		slog.DebugContext(ctx, "Retrying unit of work after conflict",
			"op", op,
			"attempt", attempt,
			"error", err)

		if werr := sleep(ctx, retryDelay(attempt)); werr != nil {
			err = werr
			break
		}
	}

	elapsed := time.Since(start)
	switch {
	case err == nil:
		c.metrics.RecordCommit(op, metrics.OutcomeOK, elapsed)
		return nil
	case errors.Is(err, core.ErrIntegrity):
		c.metrics.RecordCommit(op, metrics.OutcomeIntegrity, elapsed)
		return err
	case core.IsDomainError(err):
		c.metrics.RecordCommit(op, metrics.OutcomeRejected, elapsed)
		return err
	case errors.Is(err, core.ErrConflict):
		c.metrics.RecordCommit(op, metrics.OutcomeConflict, elapsed)
		slog.WarnContext(ctx, "Unit of work kept conflicting",
			"op", op,
			"attempts", c.maxAttempts,
			"error", err)
		return &core.IntegrityError{Op: op, Err: err}
	default:
		c.metrics.RecordCommit(op, metrics.OutcomeIntegrity, elapsed)
		slog.ErrorContext(ctx, "Unit of work failed", "op", op, "error", err)
		return &core.IntegrityError{Op: op, Err: err}
	}
}

// retryDelay doubles from retryBaseDelay up to retryMaxDelay, with the upper
// half randomised so colliding writers spread out.
func retryDelay(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d <= 0 || d > retryMaxDelay {
		d = retryMaxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// applyTransactionDelta moves one running total of a locked ledger by
// next - previous and writes it back under the ledger's version guard.
// A create is (zero, amount), a delete is (amount, zero).
func applyTransactionDelta(ctx context.Context, tx storage.Tx, l core.Ledger, previous, next core.Money, col core.TotalColumn, now time.Time) (core.Ledger, error) {
	delta := next.Sub(previous)
	total := l.Total(col).Add(delta)
	if total.IsNegative() {
		return core.Ledger{}, &core.IntegrityError{
			Op:  "apply transaction delta",
			Err: fmt.Errorf("%s of ledger %d would become %s", col, l.ID, total),
		}
	}

	updated, err := tx.UpdateLedgerTotals(ctx, l.WithTotal(col, total), now)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("update %s of ledger %d: %w", col, l.ID, err)
	}

	slog.DebugContext(ctx, "Applied transaction delta",
		"ledger_id", l.ID,
		"column", string(col),
		"delta", delta.String(),
		"total", total.String(),
		"version", updated.Version)
	return updated, nil
}
