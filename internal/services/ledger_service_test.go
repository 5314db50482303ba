package services

import (
	"context"
	"testing"
	"time"

	"ledgerbook/internal/cache"
	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestResolveBudgetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	first, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	second, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, core.BudgetLedger, first.Type)
	require.Equal(t, core.StatusNA, first.Status)
	require.Equal(t, 2025, first.Year)
	require.Equal(t, 3, first.Month)
	require.Empty(t, first.Title)
	requireTotals(t, first, "0.00", "0.00")

	// A different day of the same month resolves to the same budget.
	sameMonth, err := env.ledgers.ResolveBudget(ctx, u.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, first.ID, sameMonth.ID)

	april, err := env.ledgers.ResolveBudget(ctx, u.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, april.ID)
}

func TestConcurrentResolveBudgetCreatesOne(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	envA := newTestEnvWithRepo(t, repo)
	// A second service on the same database stands in for another process.
	envB := newTestEnvWithRepo(t, repo)
	u := envA.seedUser(t, "ann")

	const callers = 10
	ids := make([]int64, 2*callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			l, err := envA.ledgers.FindOrCreateBudget(ctx, u.ID)
			ids[i] = l.ID
			return err
		})
		g.Go(func() error {
			l, err := envB.ledgers.FindOrCreateBudget(ctx, u.ID)
			ids[callers+i] = l.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	budgets, err := repo.ListLedgers(ctx, u.ID, core.BudgetLedger)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
}

func TestResolveBudgetUsesLocation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	loc := time.FixedZone("UTC+2", 2*60*60)
	opts := env.opts
	opts.Location = loc
	ledgers := NewLedgerService(env.repo, opts)

	// 23:30 UTC on 31 March is already April at UTC+2.
	l, err := ledgers.ResolveBudget(ctx, u.ID, time.Date(2025, 3, 31, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 4, l.Month)
}

func TestResolveBudgetCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	ids := cache.NewLRUCache[int64](10, 0)
	opts := env.opts
	opts.BudgetCache = ids
	ledgers := NewLedgerService(env.repo, opts)
	transactions := NewTransactionService(env.repo, opts)

	budget, err := ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	cached, ok := ids.Get(budgetKey(u.ID, env.clock.Now()))
	require.True(t, ok)
	require.Equal(t, budget.ID, cached)

	// Cached lookups still return current totals.
	_, err = transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "12.50"))
	require.NoError(t, err)
	again, err := ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	requireTotals(t, again, "12.50", "0.00")

	// A stale id is dropped and the budget looked up again.
	ids.Set(budgetKey(u.ID, env.clock.Now()), budget.ID+1000)
	again, err = ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, budget.ID, again.ID)
}

func TestCreateBudgetTwiceIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	_, err := env.ledgers.CreateBudget(ctx, u.ID, env.clock.Now())
	require.NoError(t, err)

	_, err = env.ledgers.CreateBudget(ctx, u.ID, env.clock.Now())
	var cerr *core.ConstraintViolationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "user_budget_month_year_unique_idx", cerr.Constraint)
}

func TestCreateLedgerVariants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	date := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)

	loan, err := env.ledgers.CreateLoan(ctx, core.LoanParams{
		UserID: u.ID, Title: "  Car  ", Description: "Five years", Date: date, Status: core.StatusPending,
	})
	require.NoError(t, err)
	require.Equal(t, "Car", loan.Title)
	require.Equal(t, core.StatusPending, loan.Status)
	require.Equal(t, 2024, loan.Year)
	require.Equal(t, 11, loan.Month)

	savings, err := env.ledgers.CreateSavings(ctx, core.SavingsParams{UserID: u.ID, Title: "Holiday", Date: date})
	require.NoError(t, err)
	require.Equal(t, core.SavingsLedger, savings.Type)
	require.Equal(t, core.StatusNA, savings.Status)

	payable, err := env.ledgers.CreatePayableReceivable(ctx, core.PayableReceivableParams{
		UserID: u.ID, Type: core.ReceivableLedger, Title: "Bob owes me", Date: date,
	})
	require.NoError(t, err)
	require.Equal(t, core.ReceivableLedger, payable.Type)

	_, err = env.ledgers.CreatePayableReceivable(ctx, core.PayableReceivableParams{
		UserID: u.ID, Type: core.LoanLedger, Title: "x", Date: date,
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"Type must be of type payable or receivable"}, verr.Messages("type"))

	_, err = env.ledgers.CreateLoan(ctx, core.LoanParams{UserID: 0, Date: date})
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("title"))
	require.True(t, verr.Has("userId"))

	loans, err := env.ledgers.FindLedgers(ctx, u.ID, core.LoanLedger)
	require.NoError(t, err)
	require.Len(t, loans, 1)
}

func TestFindLedgerChecksOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.seedUser(t, "ann")
	bob := env.seedUser(t, "bob")

	budget, err := env.ledgers.FindOrCreateBudget(ctx, ann.ID)
	require.NoError(t, err)

	got, err := env.ledgers.FindLedger(ctx, ann.ID, budget.ID, core.BudgetLedger)
	require.NoError(t, err)
	require.Equal(t, budget.ID, got.ID)

	_, err = env.ledgers.FindLedger(ctx, bob.ID, budget.ID, core.BudgetLedger)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestReconcileRepairsDrift(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "30.00"))
	require.NoError(t, err)
	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.debit(budget.ID, "12.34"))
	require.NoError(t, err)

	report, err := env.ledgers.Reconcile(ctx, budget.ID, false)
	require.NoError(t, err)
	require.False(t, report.Drift)

	// Corrupt the stored totals behind the engine's back.
	err = env.repo.WithTx(ctx, func(tx storage.Tx) error {
		l, err := tx.LockLedger(ctx, budget.ID, "")
		if err != nil {
			return err
		}
		l.TotalCredits = core.MustMoney("99.99")
		_, err = tx.UpdateLedgerTotals(ctx, l, env.clock.Now())
		return err
	})
	require.NoError(t, err)

	report, err = env.ledgers.Reconcile(ctx, budget.ID, false)
	require.NoError(t, err)
	require.True(t, report.Drift)
	require.False(t, report.Repaired)
	require.Equal(t, "30.00", report.ComputedCredits.String())
	requireTotals(t, env.ledger(t, budget.ID), "99.99", "12.34")

	report, err = env.ledgers.Reconcile(ctx, budget.ID, true)
	require.NoError(t, err)
	require.True(t, report.Repaired)
	requireTotals(t, report.Ledger, "30.00", "12.34")
	requireTotals(t, env.ledger(t, budget.ID), "30.00", "12.34")

	_, err = env.ledgers.Reconcile(ctx, budget.ID+100, false)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestReadsWrapStoreFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.ledgers.FindLedger(ctx, u.ID, budget.ID+100, core.BudgetLedger)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NotErrorIs(t, err, core.ErrIntegrity)

	require.NoError(t, env.repo.Close())

	_, err = env.ledgers.FindLedger(ctx, u.ID, budget.ID, core.BudgetLedger)
	var integrity *core.IntegrityError
	require.ErrorAs(t, err, &integrity)
	require.Equal(t, "find ledger", integrity.Op)

	_, err = env.ledgers.FindLedgers(ctx, u.ID, core.BudgetLedger)
	require.ErrorIs(t, err, core.ErrIntegrity)

	_, err = env.transactions.ListTransactions(ctx, budget.ID, core.BudgetLedger)
	require.ErrorIs(t, err, core.ErrIntegrity)
}
