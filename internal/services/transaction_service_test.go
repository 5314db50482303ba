package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/core"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestTransactionLifecycleKeepsTotals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	// Create a credit of 100.00.
	tx, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "100.00"))
	require.NoError(t, err)
	requireTotals(t, env.ledger(t, budget.ID), "100.00", "0.00")

	// Update it to 60.00.
	update := core.TransactionUpdate{
		Description: tx.Description,
		Amount:      "60.00",
		Date:        tx.Date,
		Category:    tx.Category,
		Type:        tx.Type,
	}
	updated, err := env.transactions.UpdateTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID, update)
	require.NoError(t, err)
	require.Equal(t, "60.00", updated.Amount.String())
	requireTotals(t, env.ledger(t, budget.ID), "60.00", "0.00")

	// Delete it.
	deleted, err := env.transactions.DeleteTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.ID, deleted.ID)
	requireTotals(t, env.ledger(t, budget.ID), "0.00", "0.00")

	_, err = env.repo.FindTransaction(ctx, budget.ID, tx.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.Equal(t, []amqp.Operation{
		amqp.OpLedgerCreated,
		amqp.OpTransactionCreated,
		amqp.OpTransactionUpdated,
		amqp.OpTransactionDeleted,
	}, env.events.Operations())
}

func TestDebitsMoveDebitTotal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "1000.00"))
	require.NoError(t, err)
	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.debit(budget.ID, "0.10"))
	require.NoError(t, err)
	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.debit(budget.ID, "0.20"))
	require.NoError(t, err)

	l := env.ledger(t, budget.ID)
	requireTotals(t, l, "1000.00", "0.30")
	require.Equal(t, "999.70", l.Balance().String())
	require.Equal(t, int64(3), l.Version)
}

func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	var g errgroup.Group
	for _, amount := range []string{"10.00", "15.00"} {
		g.Go(func() error {
			_, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, amount))
			return err
		})
	}
	require.NoError(t, g.Wait())

	requireTotals(t, env.ledger(t, budget.ID), "25.00", "0.00")
}

func TestInterleavedWritesPreserveInvariant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	const workers = 8
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < 5; i++ {
				amount := fmt.Sprintf("%d.%02d", w+1, i*7)
				params := env.credit(budget.ID, amount)
				if i%2 == 1 {
					params = env.debit(budget.ID, amount)
				}
				tx, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, params)
				if err != nil {
					return err
				}
				switch i % 3 {
				case 1:
					_, err = env.transactions.UpdateTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID, core.TransactionUpdate{
						Description: tx.Description,
						Amount:      "3.33",
						Date:        tx.Date,
						Category:    tx.Category,
						Type:        tx.Type,
					})
				case 2:
					_, err = env.transactions.DeleteTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	report, err := env.ledgers.Reconcile(ctx, budget.ID, false)
	require.NoError(t, err)
	require.False(t, report.Drift, "credits %s/%s debits %s/%s",
		report.Ledger.TotalCredits, report.ComputedCredits, report.Ledger.TotalDebits, report.ComputedDebits)
}

func TestTypeIsImmutable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	tx, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "40.00"))
	require.NoError(t, err)
	before := env.ledger(t, budget.ID)

	_, err = env.transactions.UpdateTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID, core.TransactionUpdate{
		Description: tx.Description,
		Amount:      "80.00",
		Date:        tx.Date,
		Category:    core.Groceries,
		Type:        core.Debit,
	})
	var immutable *core.ImmutableFieldError
	require.ErrorAs(t, err, &immutable)
	require.Equal(t, "type", immutable.Field)

	after := env.ledger(t, budget.ID)
	requireTotals(t, after, "40.00", "0.00")
	require.Equal(t, before.Version, after.Version)

	stored, err := env.repo.FindTransaction(ctx, budget.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, "40.00", stored.Amount.String())
	require.Equal(t, core.Credit, stored.Type)
}

func TestUpdateWithoutTypeKeepsStoredType(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	tx, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "100.00"))
	require.NoError(t, err)

	updated, err := env.transactions.UpdateTransaction(ctx, budget.ID, core.BudgetLedger, tx.ID, core.TransactionUpdate{
		Description: tx.Description,
		Amount:      "60.00",
		Date:        tx.Date,
		Category:    tx.Category,
	})
	require.NoError(t, err)
	require.Equal(t, core.Credit, updated.Type)
	requireTotals(t, env.ledger(t, budget.ID), "60.00", "0.00")

	stored, err := env.repo.FindTransaction(ctx, budget.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, core.Credit, stored.Type)
	require.Equal(t, "60.00", stored.Amount.String())
}

func TestUpdateAndDeleteCheckOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	march, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	feb, err := env.ledgers.ResolveBudget(ctx, u.ID, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	tx, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(march.ID, "20.00"))
	require.NoError(t, err)

	_, err = env.transactions.UpdateTransaction(ctx, feb.ID, core.BudgetLedger, tx.ID, core.TransactionUpdate{
		Description: "moved",
		Amount:      "5.00",
		Date:        tx.Date,
		Category:    tx.Category,
		Type:        tx.Type,
	})
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.transactions.DeleteTransaction(ctx, feb.ID, core.BudgetLedger, tx.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	requireTotals(t, env.ledger(t, march.ID), "20.00", "0.00")
	requireTotals(t, env.ledger(t, feb.ID), "0.00", "0.00")
	stored, err := env.repo.FindTransaction(ctx, march.ID, tx.ID)
	require.NoError(t, err)
	require.Equal(t, "Salary", stored.Description)
}

func TestLoanLedgerCategories(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	loan, err := env.ledgers.CreateLoan(ctx, core.LoanParams{
		UserID: u.ID,
		Title:  "Car",
		Date:   env.clock.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, core.LoanLedger, loan.Type)

	payment := env.debit(loan.ID, "250.00")
	payment.Category = core.Payment
	_, err = env.transactions.CreateTransaction(ctx, core.LoanLedger, payment)
	require.NoError(t, err)

	housing := env.debit(loan.ID, "250.00")
	housing.Category = core.Housing
	_, err = env.transactions.CreateTransaction(ctx, core.LoanLedger, housing)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("category"))

	requireTotals(t, env.ledger(t, loan.ID), "0.00", "250.00")
}

func TestCreateTransactionRejectsMismatchedLedger(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	// Groceries is legal on savings ledgers, so only the type lookup fails.
	_, err = env.transactions.CreateTransaction(ctx, core.SavingsLedger, env.debit(budget.ID, "5.00"))
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.debit(budget.ID+100, "5.00"))
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.transactions.CreateTransaction(ctx, "", env.debit(budget.ID, "5.00"))
	require.ErrorIs(t, err, core.ErrValidation)

	requireTotals(t, env.ledger(t, budget.ID), "0.00", "0.00")
}

func TestCreateTransactionValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	future := env.credit(budget.ID, "10.00")
	future.Date = env.clock.Now().Add(24 * time.Hour)
	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, future)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"Date cannot be in the future"}, verr.Messages("date"))

	negative := env.credit(budget.ID, "-1.00")
	_, err = env.transactions.CreateTransaction(ctx, core.BudgetLedger, negative)
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("amount"))

	require.Len(t, env.events.Operations(), 1)
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	budget, err := env.ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)

	for _, amount := range []string{"1.00", "2.00", "3.00"} {
		_, err := env.transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, amount))
		require.NoError(t, err)
	}

	txs, err := env.transactions.ListTransactions(ctx, budget.ID, core.BudgetLedger)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	_, err = env.transactions.ListTransactions(ctx, budget.ID, core.LoanLedger)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestPublishFailureDoesNotFailCommit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")

	opts := env.opts
	opts.Publisher = failingPublisher{}
	ledgers := NewLedgerService(env.repo, opts)
	transactions := NewTransactionService(env.repo, opts)

	budget, err := ledgers.FindOrCreateBudget(ctx, u.ID)
	require.NoError(t, err)
	_, err = transactions.CreateTransaction(ctx, core.BudgetLedger, env.credit(budget.ID, "7.00"))
	require.NoError(t, err)
	requireTotals(t, env.ledger(t, budget.ID), "7.00", "0.00")
}

type failingPublisher struct{}

func (failingPublisher) PublishLedgerEvent(context.Context, *amqp.LedgerEvent) error {
	return errors.New("broker down")
}
