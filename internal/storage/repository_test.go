package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ledgerbook/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, name string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "ann")

	created, err := repo.CreateLedger(ctx, core.Ledger{
		UserID: u.ID, Title: "Car", Year: 2025, Month: 3,
		Type: core.LoanLedger, Status: core.StatusPending,
	})
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	if created.ID == 0 || created.Version != 0 || !created.TotalCredits.IsZero() {
		t.Fatalf("unexpected ledger %+v", created)
	}

	got, err := repo.FindLedger(ctx, u.ID, created.ID, core.LoanLedger)
	if err != nil {
		t.Fatalf("find ledger: %v", err)
	}
	if got.Title != "Car" || got.Description != "" || got.Status != core.StatusPending {
		t.Fatalf("unexpected ledger %+v", got)
	}

	// Wrong owner and wrong type are both absent.
	if _, err := repo.FindLedger(ctx, u.ID+1, created.ID, ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if _, err := repo.FindLedger(ctx, u.ID, created.ID, core.BudgetLedger); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other type, got %v", err)
	}

	list, err := repo.ListLedgers(ctx, u.ID, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one ledger, got %d (err=%v)", len(list), err)
	}
}

func TestDuplicateBudgetIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "bob")

	budget := core.Ledger{UserID: u.ID, Year: 2025, Month: 4, Type: core.BudgetLedger, Status: core.StatusNA}
	if _, err := repo.CreateLedger(ctx, budget); err != nil {
		t.Fatalf("create budget: %v", err)
	}
	_, err := repo.CreateLedger(ctx, budget)
	var cv *core.ConstraintViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if cv.Constraint != "user_budget_month_year_unique_idx" {
		t.Fatalf("unexpected constraint %q", cv.Constraint)
	}

	// The index only covers budgets.
	savings := budget
	savings.Type = core.SavingsLedger
	savings.Title = "Trip"
	for i := 0; i < 2; i++ {
		if _, err := repo.CreateLedger(ctx, savings); err != nil {
			t.Fatalf("create savings %d: %v", i, err)
		}
	}

	found, err := repo.FindBudget(ctx, u.ID, 2025, 4)
	if err != nil || found.Type != core.BudgetLedger {
		t.Fatalf("find budget: %+v %v", found, err)
	}
	if _, err := repo.FindBudget(ctx, u.ID, 2025, 5); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateLedgerTotalsVersionGuard(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "cy")
	l, err := repo.CreateLedger(ctx, core.Ledger{UserID: u.ID, Year: 2025, Month: 1, Type: core.BudgetLedger, Status: core.StatusNA})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.LockLedger(ctx, l.ID, core.BudgetLedger)
		if err != nil {
			return err
		}
		locked.TotalCredits = core.MustMoney("10.10")
		updated, err := tx.UpdateLedgerTotals(ctx, locked, time.Now())
		if err != nil {
			return err
		}
		if updated.Version != 1 || updated.TotalCredits.String() != "10.10" {
			t.Errorf("unexpected ledger after update %+v", updated)
		}

		// Writing with the stale version must not apply.
		_, err = tx.UpdateLedgerTotals(ctx, locked, time.Now())
		if !errors.Is(err, core.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetLedger(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalCredits.String() != "10.10" || got.Version != 1 {
		t.Fatalf("unexpected stored ledger %+v", got)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "dee")
	l, err := repo.CreateLedger(ctx, core.Ledger{UserID: u.ID, Year: 2025, Month: 1, Type: core.BudgetLedger, Status: core.StatusNA})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = repo.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertTransaction(ctx, core.Transaction{
			LedgerID: l.ID, Description: "coffee", Amount: core.MustMoney("3.50"),
			Date: time.Now(), Category: core.Restaurants, Type: core.Debit,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	txs, err := repo.ListTransactions(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected rollback, found %d transactions", len(txs))
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "eve")
	l, err := repo.CreateLedger(ctx, core.Ledger{UserID: u.ID, Year: 2025, Month: 1, Type: core.BudgetLedger, Status: core.StatusNA})
	if err != nil {
		t.Fatal(err)
	}
	other, err := repo.CreateLedger(ctx, core.Ledger{UserID: u.ID, Title: "x", Year: 2025, Month: 1, Type: core.SavingsLedger, Status: core.StatusNA})
	if err != nil {
		t.Fatal(err)
	}

	date := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	var created core.Transaction
	err = repo.WithTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertTransaction(ctx, core.Transaction{
			LedgerID: l.ID, Description: "salary", Amount: core.MustMoney("1500.25"),
			Date: date, Category: core.Income, Type: core.Credit, IsEstimated: true,
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created.Date.Equal(date) || created.Amount.String() != "1500.25" || !created.IsEstimated {
		t.Fatalf("unexpected transaction %+v", created)
	}

	if _, err := repo.FindTransaction(ctx, other.ID, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("transaction must not be visible through another ledger, got %v", err)
	}

	err = repo.WithTx(ctx, func(tx Tx) error {
		created.Amount = core.MustMoney("1400")
		created.Type = core.Debit // ignored by the store
		updated, err := tx.UpdateTransaction(ctx, created)
		if err != nil {
			return err
		}
		if updated.Type != core.Credit || updated.Amount.String() != "1400.00" {
			t.Errorf("unexpected update %+v", updated)
		}
		deleted, err := tx.DeleteTransaction(ctx, l.ID, created.ID)
		if err != nil {
			return err
		}
		if deleted.ID != created.ID {
			t.Errorf("deleted wrong row %+v", deleted)
		}
		_, err = tx.DeleteTransaction(ctx, l.ID, created.ID)
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected not found on second delete, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSessionsAndRecurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "fay")

	if _, err := repo.CreateUser(ctx, core.User{Email: "fay@example.com", Username: "other", PasswordHash: "x"}); !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("expected duplicate email violation, got %v", err)
	}
	byName, err := repo.GetUserByLogin(ctx, "fay")
	if err != nil || byName.ID != u.ID {
		t.Fatalf("lookup by username: %+v %v", byName, err)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if _, err := repo.CreateSession(ctx, core.Session{ID: "abc", UserID: u.ID, ExpiresAt: exp}); err != nil {
		t.Fatal(err)
	}
	s, err := repo.GetSession(ctx, "abc")
	if err != nil || !s.ExpiresAt.Equal(exp) {
		t.Fatalf("get session: %+v %v", s, err)
	}
	if err := repo.DeleteSession(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetSession(ctx, "abc"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	r, err := repo.CreateRecurrent(ctx, core.RecurrentTransaction{
		UserID: u.ID, Description: "rent", Amount: core.MustMoney("800"),
		StartDate: core.NewDate(2025, 1, 31), Every: core.Monthly,
		Category: core.Housing, Type: core.Debit,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !r.LastExecutionAt.IsZero() {
		t.Fatalf("new template should not have executed")
	}
	at := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if err := repo.MarkRecurrentExecuted(ctx, r.ID, at); err != nil {
		t.Fatal(err)
	}
	all, err := repo.ListRecurrent(ctx)
	if err != nil || len(all) != 1 || !all[0].LastExecutionAt.Equal(at) || all[0].StartDate.Day() != 31 {
		t.Fatalf("unexpected templates %+v %v", all, err)
	}
}
