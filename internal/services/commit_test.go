package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/metrics"
	"ledgerbook/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first n units of work with err.
type flakyStore struct {
	storage.Store
	n     int
	err   error
	calls int
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	s.calls++
	if s.calls <= s.n {
		return s.err
	}
	return s.Store.WithTx(ctx, fn)
}

func newTestCommitter(t *testing.T, store storage.Store, attempts int) (*committer, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return newCommitter(store, Options{Metrics: m, MaxAttempts: attempts}), m
}

func TestCommitterRetriesConflicts(t *testing.T) {
	store := &flakyStore{Store: newTestRepo(t), n: 2, err: fmt.Errorf("busy: %w", core.ErrConflict)}
	c, _ := newTestCommitter(t, store, 5)

	ran := 0
	err := c.run(context.Background(), "test", func(storage.Tx) error {
		ran++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, store.calls)
	require.Equal(t, 1, ran)
}

func TestCommitterGivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyStore{Store: newTestRepo(t), n: 10, err: core.ErrConflict}
	c, _ := newTestCommitter(t, store, 3)

	err := c.run(context.Background(), "test", func(storage.Tx) error { return nil })
	require.ErrorIs(t, err, core.ErrIntegrity)
	require.ErrorIs(t, err, core.ErrConflict)
	require.Equal(t, 3, store.calls)
}

func TestCommitterClassifiesErrors(t *testing.T) {
	repo := newTestRepo(t)
	c, _ := newTestCommitter(t, repo, 3)
	ctx := context.Background()

	notFound := &core.NotFoundError{Entity: "ledger", ID: 1}
	err := c.run(ctx, "test", func(storage.Tx) error { return notFound })
	require.Same(t, notFound, err)

	wrapped := fmt.Errorf("insert: %w", &core.ValidationError{})
	err = c.run(ctx, "test", func(storage.Tx) error { return wrapped })
	require.Equal(t, wrapped, err)

	boom := errors.New("disk on fire")
	err = c.run(ctx, "test", func(storage.Tx) error { return boom })
	var ierr *core.IntegrityError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, "test", ierr.Op)
	require.ErrorIs(t, err, boom)
}

func TestCommitterRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	c, _ := newTestCommitter(t, env.repo, 1)

	err = c.run(ctx, "test", func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, budget.ID, core.BudgetLedger)
		if err != nil {
			return err
		}
		if _, err := applyTransactionDelta(ctx, tx, l, core.Zero, core.MustMoney("5.00"), core.TotalCreditsColumn, env.clock.Now()); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.ErrorIs(t, err, core.ErrIntegrity)
	requireTotals(t, env.ledger(t, budget.ID), "0.00", "0.00")
}

func TestApplyTransactionDeltaRejectsNegativeTotal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	err = env.repo.WithTx(ctx, func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, budget.ID, "")
		if err != nil {
			return err
		}
		_, err = applyTransactionDelta(ctx, tx, l, core.MustMoney("1.00"), core.Zero, core.TotalDebitsColumn, env.clock.Now())
		return err
	})
	require.ErrorIs(t, err, core.ErrIntegrity)
}

func TestApplyTransactionDeltaDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	stale := budget
	stale.Version--
	err = env.repo.WithTx(ctx, func(tx storage.Tx) error {
		_, err := applyTransactionDelta(ctx, tx, stale, core.Zero, core.MustMoney("1.00"), core.TotalCreditsColumn, env.clock.Now())
		return err
	})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestRetryDelayBounds(t *testing.T) {
	for attempt := 1; attempt < 70; attempt++ {
		d := retryDelay(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, retryMaxDelay)
	}
	require.GreaterOrEqual(t, retryDelay(1), retryBaseDelay/2)
}

func TestCommitterStopsOnCancelledContext(t *testing.T) {
	store := &flakyStore{Store: newTestRepo(t), n: 10, err: core.ErrConflict}
	c, _ := newTestCommitter(t, store, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.run(ctx, "test", func(storage.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, store.calls)
}
